package router

import (
	"context"
	"sort"
	"sync"

	"github.com/gatehouse/gatehouse/pkg/client"
	"github.com/gatehouse/gatehouse/pkg/log"
	"github.com/gatehouse/gatehouse/pkg/metrics"
	"github.com/gatehouse/gatehouse/pkg/types"
	"golang.org/x/sync/errgroup"
)

// Window is the dual-routing state for one element kind during a live
// re-shard. Ranges are inclusive on both ends. TargetURL addresses the
// shard the overlap range is migrating to; the source shard is always
// whatever the configured ring resolves.
type Window struct {
	Kind        types.ElementKind `json:"data_element_kind" yaml:"data_element_kind"`
	SourceStart int32             `json:"source_range_start" yaml:"source_range_start"`
	SourceEnd   int32             `json:"source_range_end" yaml:"source_range_end"`
	TargetStart int32             `json:"target_range_start" yaml:"target_range_start"`
	TargetEnd   int32             `json:"target_range_end" yaml:"target_range_end"`
	TargetURL   string            `json:"target_url" yaml:"target_url"`
}

func (w *Window) contains(h int32, start, end int32) bool {
	return h >= start && h <= end
}

// Router dispatches keyed operations to shards. With routing off every
// operation goes to the shard the ring resolves. With routing on, hashes
// inside the window's target range go to the migration target as well as
// or instead of the source, so a re-shard can run while both shards stay
// consistent.
type Router struct {
	manager *client.Manager

	mu        sync.RWMutex
	window    Window
	routingOn bool

	// gate is closed while the router is running; Pause swaps in an
	// open channel that blocks dispatch until Resume closes it
	gateMu sync.Mutex
	gate   chan struct{}
}

// New creates a router over the given shard manager. Routing starts in
// the given state and unpaused.
func New(manager *client.Manager, window Window, routingOn bool) *Router {
	gate := make(chan struct{})
	close(gate)
	return &Router{
		manager:   manager,
		window:    window,
		routingOn: routingOn,
		gate:      gate,
	}
}

// SetRoutingOn toggles dual routing
func (r *Router) SetRoutingOn(on bool) {
	r.mu.Lock()
	r.routingOn = on
	r.mu.Unlock()
	log.WithComponent("router").Info().Bool("routing_on", on).Msg("routing state changed")
}

// RoutingOn reports whether dual routing is active
func (r *Router) RoutingOn() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.routingOn
}

// SetWindow replaces the dual-routing window
func (r *Router) SetWindow(w Window) {
	r.mu.Lock()
	r.window = w
	r.mu.Unlock()
}

// Window returns the current dual-routing window
func (r *Router) Window() Window {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.window
}

// Pause blocks all subsequent dispatches until Resume. In-flight
// operations are unaffected. Pausing an already paused router is a
// no-op.
func (r *Router) Pause() {
	r.gateMu.Lock()
	defer r.gateMu.Unlock()
	select {
	case <-r.gate:
		r.gate = make(chan struct{})
		log.WithComponent("router").Info().Msg("routing paused")
	default:
	}
}

// Resume unblocks paused dispatches
func (r *Router) Resume() {
	r.gateMu.Lock()
	defer r.gateMu.Unlock()
	select {
	case <-r.gate:
	default:
		close(r.gate)
		log.WithComponent("router").Info().Msg("routing resumed")
	}
}

// Paused reports whether the router gate is closed to new dispatches
func (r *Router) Paused() bool {
	r.gateMu.Lock()
	defer r.gateMu.Unlock()
	select {
	case <-r.gate:
		return false
	default:
		return true
	}
}

// await blocks while the router is paused. Paused operations wait, they
// do not fail; the context bounds the wait.
func (r *Router) await(ctx context.Context) error {
	r.gateMu.Lock()
	gate := r.gate
	r.gateMu.Unlock()

	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// targets resolves the shard clients an operation on (kind, hash) must
// reach, in dispatch order: source first, then the migration target
func (r *Router) targets(kind types.ElementKind, op types.OperationKind, hash int32) ([]*client.ShardClient, error) {
	r.mu.RLock()
	window := r.window
	routingOn := r.routingOn
	r.mu.RUnlock()

	if !routingOn || kind != window.Kind {
		c, err := r.manager.GetClient(kind, op, hash)
		if err != nil {
			return nil, err
		}
		metrics.RoutedOperations.WithLabelValues("source").Inc()
		return []*client.ShardClient{c}, nil
	}

	inSource := window.contains(hash, window.SourceStart, window.SourceEnd)
	inTarget := window.contains(hash, window.TargetStart, window.TargetEnd)

	if inTarget && !inSource {
		metrics.RoutedOperations.WithLabelValues("target").Inc()
		return []*client.ShardClient{r.manager.ClientFor(window.TargetURL)}, nil
	}

	source, err := r.manager.GetClient(kind, op, hash)
	if err != nil {
		return nil, err
	}
	if inSource && inTarget {
		metrics.RoutedOperations.WithLabelValues("both").Inc()
		return []*client.ShardClient{source, r.manager.ClientFor(window.TargetURL)}, nil
	}
	metrics.RoutedOperations.WithLabelValues("source").Inc()
	return []*client.ShardClient{source}, nil
}

// broadcastTargets returns one client per shard serving any of the given
// kinds, de-duplicated by URL, with the migration target included while
// routing is on
func (r *Router) broadcastTargets(op types.OperationKind, kinds ...types.ElementKind) []*client.ShardClient {
	r.mu.RLock()
	window := r.window
	routingOn := r.routingOn
	r.mu.RUnlock()

	seen := make(map[string]bool)
	var out []*client.ShardClient
	for _, kind := range kinds {
		for _, c := range r.manager.AllClients(kind, op) {
			if !seen[c.URL()] {
				seen[c.URL()] = true
				out = append(out, c)
			}
		}
	}
	if routingOn && window.TargetURL != "" && !seen[window.TargetURL] {
		out = append(out, r.manager.ClientFor(window.TargetURL))
	}
	return out
}

// Event dispatches one keyed event operation. Hashes in the overlap of
// the source and target ranges reach both shards, and both must succeed
// for the caller to see success.
func (r *Router) Event(ctx context.Context, kind types.ElementKind, hash int32, fn func(context.Context, *client.ShardClient) error) error {
	if err := r.await(ctx); err != nil {
		return err
	}
	clients, err := r.targets(kind, types.OpEvent, hash)
	if err != nil {
		return err
	}
	return fanOut(ctx, clients, fn)
}

// BroadcastEvent dispatches an unkeyed event operation to every shard
// serving the given kinds. All shards must succeed.
func (r *Router) BroadcastEvent(ctx context.Context, fn func(context.Context, *client.ShardClient) error, kinds ...types.ElementKind) error {
	if err := r.await(ctx); err != nil {
		return err
	}
	return fanOut(ctx, r.broadcastTargets(types.OpEvent, kinds...), fn)
}

// QueryStrings runs a keyed enumeration query, merging and
// de-duplicating results when the hash resolves to both shards
func (r *Router) QueryStrings(ctx context.Context, kind types.ElementKind, hash int32, path string) ([]string, error) {
	if err := r.await(ctx); err != nil {
		return nil, err
	}
	clients, err := r.targets(kind, types.OpQuery, hash)
	if err != nil {
		return nil, err
	}
	return mergeStrings(ctx, clients, path)
}

// BroadcastStrings runs an unkeyed enumeration query against every shard
// serving the given kinds, merging and de-duplicating results
func (r *Router) BroadcastStrings(ctx context.Context, path string, kinds ...types.ElementKind) ([]string, error) {
	if err := r.await(ctx); err != nil {
		return nil, err
	}
	return mergeStrings(ctx, r.broadcastTargets(types.OpQuery, kinds...), path)
}

// QueryBool runs a keyed predicate query; shards are combined with
// logical OR
func (r *Router) QueryBool(ctx context.Context, kind types.ElementKind, hash int32, path string) (bool, error) {
	if err := r.await(ctx); err != nil {
		return false, err
	}
	clients, err := r.targets(kind, types.OpQuery, hash)
	if err != nil {
		return false, err
	}
	return orBools(ctx, clients, path)
}

// BroadcastBool runs an unkeyed predicate query against every shard
// serving the given kinds, combined with logical OR
func (r *Router) BroadcastBool(ctx context.Context, path string, kinds ...types.ElementKind) (bool, error) {
	if err := r.await(ctx); err != nil {
		return false, err
	}
	return orBools(ctx, r.broadcastTargets(types.OpQuery, kinds...), path)
}

// QueryJSON runs a keyed query against the single owning shard. Queries
// whose results cannot be merged setwise (histories, structured
// decisions) resolve to one shard only: the source unless the hash has
// fully migrated.
func (r *Router) QueryJSON(ctx context.Context, kind types.ElementKind, hash int32, path string, out any) error {
	if err := r.await(ctx); err != nil {
		return err
	}
	clients, err := r.targets(kind, types.OpQuery, hash)
	if err != nil {
		return err
	}
	return clients[0].Get(ctx, path, out)
}

func fanOut(ctx context.Context, clients []*client.ShardClient, fn func(context.Context, *client.ShardClient) error) error {
	if len(clients) == 1 {
		return fn(ctx, clients[0])
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range clients {
		g.Go(func() error {
			return fn(gctx, c)
		})
	}
	return g.Wait()
}

func orBools(ctx context.Context, clients []*client.ShardClient, path string) (bool, error) {
	result := false
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range clients {
		g.Go(func() error {
			var v bool
			if err := c.Get(gctx, path, &v); err != nil {
				return err
			}
			mu.Lock()
			result = result || v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}
	return result, nil
}

func mergeStrings(ctx context.Context, clients []*client.ShardClient, path string) ([]string, error) {
	var mu sync.Mutex
	merged := make(map[string]bool)

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range clients {
		g.Go(func() error {
			var part []string
			if err := c.Get(gctx, path, &part); err != nil {
				return err
			}
			mu.Lock()
			for _, s := range part {
				merged[s] = true
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(merged))
	for s := range merged {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

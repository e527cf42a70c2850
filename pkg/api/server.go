package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gatehouse/gatehouse/pkg/client"
	"github.com/gatehouse/gatehouse/pkg/log"
	"github.com/gatehouse/gatehouse/pkg/metrics"
	"github.com/gatehouse/gatehouse/pkg/router"
	"github.com/gatehouse/gatehouse/pkg/types"
)

// Options configures the HTTP server
type Options struct {
	Backend        Backend
	Router         *router.Router
	Manager        *client.Manager
	Trip           *metrics.TripSwitch
	MetricsEnabled bool
	Version        string
}

// Server is the service's HTTP surface: writer and reader operations,
// bulk event ingestion, the event cache feed, and the control plane.
type Server struct {
	opts Options
	mux  *http.ServeMux
	http *http.Server
}

// NewServer builds the route table
func NewServer(opts Options) *Server {
	s := &Server{
		opts: opts,
		mux:  http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	// Writer surface. PUT creates, DELETE removes; both answer with the
	// accepted event id.
	s.writer("/users/{user}", types.KindUser, "user")
	s.writer("/groups/{group}", types.KindGroup, "group")
	s.writer("/userToGroupMappings/{user}/{group}", types.KindUserToGroup, "user", "group")
	s.writer("/groupToGroupMappings/{from}/{to}", types.KindGroupToGroup, "from", "to")
	s.writer("/userToApplicationComponentAndAccessLevelMappings/{user}/{component}/{access}",
		types.KindUserToComponent, "user", "component", "access")
	s.writer("/groupToApplicationComponentAndAccessLevelMappings/{group}/{component}/{access}",
		types.KindGroupToComponent, "group", "component", "access")
	s.writer("/entityTypes/{type}", types.KindEntityType, "type")
	s.writer("/entityTypes/{type}/entities/{entity}", types.KindEntity, "type", "entity")
	s.writer("/userToEntityMappings/{user}/{type}/{entity}", types.KindUserToEntity, "user", "type", "entity")
	s.writer("/groupToEntityMappings/{group}/{type}/{entity}", types.KindGroupToEntity, "group", "type", "entity")

	// Enumerations and membership
	s.mux.HandleFunc("GET /users", s.listStrings(func() ([]string, error) {
		return s.opts.Backend.GetUsers()
	}))
	s.mux.HandleFunc("GET /groups", s.listStrings(func() ([]string, error) {
		return s.opts.Backend.GetGroups()
	}))
	s.mux.HandleFunc("GET /entityTypes", s.listStrings(func() ([]string, error) {
		return s.opts.Backend.GetEntityTypes()
	}))
	s.mux.HandleFunc("GET /entityTypes/{type}/entities", s.handleGetEntities)
	s.mux.HandleFunc("GET /users/{user}", s.contains(func(r *http.Request) (bool, error) {
		return s.opts.Backend.ContainsUser(r.PathValue("user"))
	}))
	s.mux.HandleFunc("GET /groups/{group}", s.contains(func(r *http.Request) (bool, error) {
		return s.opts.Backend.ContainsGroup(r.PathValue("group"))
	}))
	s.mux.HandleFunc("GET /entityTypes/{type}", s.contains(func(r *http.Request) (bool, error) {
		return s.opts.Backend.ContainsEntityType(r.PathValue("type"))
	}))
	s.mux.HandleFunc("GET /entityTypes/{type}/entities/{entity}", s.contains(func(r *http.Request) (bool, error) {
		return s.opts.Backend.ContainsEntity(r.PathValue("type"), r.PathValue("entity"))
	}))

	// Mappings
	s.mux.HandleFunc("GET /users/{user}/groups", s.handleUserGroups)
	s.mux.HandleFunc("GET /groups/{group}/users", s.handleGroupUsers)
	s.mux.HandleFunc("GET /groupToGroupMappings/{from}", s.listStringsR(func(r *http.Request) ([]string, error) {
		return s.opts.Backend.GetGroupToGroupMappings(r.PathValue("from"))
	}))
	s.mux.HandleFunc("GET /groupToGroupReverseMappings/{to}", s.listStringsR(func(r *http.Request) ([]string, error) {
		return s.opts.Backend.GetGroupToGroupReverseMappings(r.PathValue("to"))
	}))
	s.mux.HandleFunc("GET /userToApplicationComponentAndAccessLevelMappings/{user}", s.handleUserComponents)
	s.mux.HandleFunc("GET /groupToApplicationComponentAndAccessLevelMappings/{group}", s.handleGroupComponents)
	s.mux.HandleFunc("GET /userToEntityMappings/{user}/{type}", s.handleUserEntities)
	s.mux.HandleFunc("GET /groupToEntityMappings/{group}/{type}", s.handleGroupEntities)
	s.mux.HandleFunc("GET /entityTypes/{type}/entities/{entity}/users", s.handleEntityUsers)
	s.mux.HandleFunc("GET /entityTypes/{type}/entities/{entity}/groups", s.listStringsR(func(r *http.Request) ([]string, error) {
		return s.opts.Backend.GetEntityToGroupMappings(r.PathValue("type"), r.PathValue("entity"))
	}))

	// Decisions
	s.mux.HandleFunc("GET /users/{user}/access/applicationComponent/{component}/{access}",
		s.contains(func(r *http.Request) (bool, error) {
			return s.opts.Backend.HasAccessToApplicationComponent(
				r.PathValue("user"), r.PathValue("component"), r.PathValue("access"))
		}))
	s.mux.HandleFunc("GET /users/{user}/access/entity/{type}/{entity}",
		s.contains(func(r *http.Request) (bool, error) {
			return s.opts.Backend.HasAccessToEntity(
				r.PathValue("user"), r.PathValue("type"), r.PathValue("entity"))
		}))
	s.mux.HandleFunc("GET /users/{user}/accessibleApplicationComponents", s.handleUserAccessibleComponents)
	s.mux.HandleFunc("GET /groups/{group}/accessibleApplicationComponents", s.handleGroupAccessibleComponents)
	s.mux.HandleFunc("GET /users/{user}/accessibleEntities/{type}", s.handleUserAccessibleEntities)
	s.mux.HandleFunc("GET /groups/{group}/accessibleEntities/{type}", s.handleGroupAccessibleEntities)

	// Bulk ingestion and the event cache feed
	s.mux.HandleFunc("POST /events", s.handleProcessEvents)
	s.mux.HandleFunc("POST /eventCache/events", s.handleCacheEvents)
	s.mux.HandleFunc("GET /eventCache/events/{priorID}", s.handleEventsSince)

	// Control plane
	s.mux.HandleFunc("PUT /routing/on", s.handleRoutingOn(true))
	s.mux.HandleFunc("PUT /routing/off", s.handleRoutingOn(false))
	s.mux.HandleFunc("PUT /routing/pause", s.handleRoutingPause)
	s.mux.HandleFunc("PUT /routing/resume", s.handleRoutingResume)
	s.mux.HandleFunc("PUT /routingWindow", s.handleSetWindow)
	s.mux.HandleFunc("PUT /shardConfiguration", s.handleShardConfiguration)
	s.mux.HandleFunc("PUT /tripSwitch/reset", s.handleTripReset)

	// Ops
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)
	if s.opts.MetricsEnabled {
		s.mux.Handle("GET /metrics", metrics.Handler())
	}
}

// writer registers the PUT and DELETE handlers for one element path
func (s *Server) writer(pattern string, kind types.EventKind, vars ...string) {
	submit := func(action types.EventAction, created int) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			fields := make([]string, len(vars))
			for i, v := range vars {
				fields[i] = r.PathValue(v)
			}
			id, err := s.opts.Backend.SubmitEvent(r.Context(), kind, action, fields...)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, created, map[string]string{"event_id": id.String()})
		}
	}
	s.mux.HandleFunc("PUT "+pattern, submit(types.ActionAdd, http.StatusCreated))
	s.mux.HandleFunc("DELETE "+pattern, submit(types.ActionRemove, http.StatusOK))
}

func (s *Server) listStrings(fn func() ([]string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := fn()
		if err != nil {
			writeError(w, err)
			return
		}
		if out == nil {
			out = []string{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) listStringsR(fn func(*http.Request) ([]string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := fn(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if out == nil {
			out = []string{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// contains renders predicate queries as a bare JSON boolean so shard
// results can be OR-merged without distinguishing absent from false
func (s *Server) contains(fn func(*http.Request) (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := fn(r)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func boolQuery(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// Handler returns the instrumented root handler
func (s *Server) Handler() http.Handler {
	return s.instrument(s.mux)
}

// instrument records request counts and latencies per method and status
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		timer.ObserveDurationVec(metrics.APIRequestDuration, r.Method)
		metrics.APIRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(sw.status)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Start serves HTTP on addr until Shutdown
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.WithComponent("api").Info().Str("addr", addr).Msg("http server listening")
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests within the context's deadline
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gatehouse/gatehouse/pkg/metrics"
	"github.com/gatehouse/gatehouse/pkg/types"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	// Element table buckets
	bucketUsers            = []byte("users")
	bucketGroups           = []byte("groups")
	bucketEntityTypes      = []byte("entity_types")
	bucketEntities         = []byte("entities")
	bucketComponents       = []byte("application_components")
	bucketAccessLevels     = []byte("access_levels")
	bucketUserToGroup      = []byte("user_to_group_mappings")
	bucketGroupToGroup     = []byte("group_to_group_mappings")
	bucketUserToComponent  = []byte("user_to_component_mappings")
	bucketGroupToComponent = []byte("group_to_component_mappings")
	bucketUserToEntity     = []byte("user_to_entity_mappings")
	bucketGroupToEntity    = []byte("group_to_entity_mappings")

	// Index buckets
	bucketEventIndex = []byte("event_index")
	bucketMeta       = []byte("meta")

	keyMaxTransactionTime = []byte("max_transaction_time")
)

// elementBuckets maps each event kind to the bucket holding its rows
var elementBuckets = map[types.EventKind][]byte{
	types.KindUser:             bucketUsers,
	types.KindGroup:            bucketGroups,
	types.KindEntityType:       bucketEntityTypes,
	types.KindEntity:           bucketEntities,
	types.KindUserToGroup:      bucketUserToGroup,
	types.KindGroupToGroup:     bucketGroupToGroup,
	types.KindUserToComponent:  bucketUserToComponent,
	types.KindGroupToComponent: bucketGroupToComponent,
	types.KindUserToEntity:     bucketUserToEntity,
	types.KindGroupToEntity:    bucketGroupToEntity,
}

// auditBuckets maps each event kind to its event id to row id audit bucket
var auditBuckets = map[types.EventKind][]byte{
	types.KindUser:             []byte("event_to_user_map"),
	types.KindGroup:            []byte("event_to_group_map"),
	types.KindEntityType:       []byte("event_to_entity_type_map"),
	types.KindEntity:           []byte("event_to_entity_map"),
	types.KindUserToGroup:      []byte("event_to_user_to_group_map"),
	types.KindGroupToGroup:     []byte("event_to_group_to_group_map"),
	types.KindUserToComponent:  []byte("event_to_user_to_component_map"),
	types.KindGroupToComponent: []byte("event_to_group_to_component_map"),
	types.KindUserToEntity:     []byte("event_to_user_to_entity_map"),
	types.KindGroupToEntity:    []byte("event_to_group_to_entity_map"),
}

// forever is the open-ended transaction_to of a live row
var forever = time.Date(9999, time.December, 31, 23, 59, 59, 999999999, time.UTC)

// indexEntry is the event_index row: event id to transaction time plus a
// monotone sequence recording arrival order
type indexEntry struct {
	TransactionTime time.Time `json:"transaction_time"`
	Sequence        uint64    `json:"sequence"`
}

// auditEntry is the per-kind audit row written for every applied event
type auditEntry struct {
	RowID    uint64            `json:"row_id"`
	Action   types.EventAction `json:"action"`
	HashCode int32             `json:"hash_code"`
}

// RetryPolicy bounds retries of transient store failures
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxElapsed      time.Duration
}

// DefaultRetryPolicy returns the retry policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 50 * time.Millisecond,
		MaxElapsed:      5 * time.Second,
	}
}

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db    *bolt.DB
	retry RetryPolicy
}

// NewBoltStore creates a new BoltDB-backed store with the default retry
// policy
func NewBoltStore(dataDir string) (*BoltStore, error) {
	return NewBoltStoreWithRetry(dataDir, DefaultRetryPolicy())
}

// NewBoltStoreWithRetry creates a new BoltDB-backed store
func NewBoltStoreWithRetry(dataDir string, retry RetryPolicy) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "gatehouse.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketUsers,
			bucketGroups,
			bucketEntityTypes,
			bucketEntities,
			bucketComponents,
			bucketAccessLevels,
			bucketUserToGroup,
			bucketGroupToGroup,
			bucketUserToComponent,
			bucketGroupToComponent,
			bucketUserToEntity,
			bucketGroupToEntity,
			bucketEventIndex,
			bucketMeta,
		}
		for _, kind := range auditBuckets {
			buckets = append(buckets, kind)
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, retry: retry}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// ApplyEvents applies an ordered batch in one transaction; all events
// commit or none do. Returns the number of events skipped because their
// id already existed (only possible with ignorePreexisting).
func (s *BoltStore) ApplyEvents(events []*types.Event, ignorePreexisting bool) (int, error) {
	// Validate the whole batch before any write
	for _, e := range events {
		if err := e.Validate(); err != nil {
			return 0, err
		}
	}

	timer := metrics.NewTimer()
	skipped := make([]bool, len(events))

	err := s.withRetry(func() error {
		return s.db.Update(func(tx *bolt.Tx) error {
			for i, e := range events {
				sk, err := s.applyEvent(tx, e, ignorePreexisting)
				if err != nil {
					return fmt.Errorf("failed to apply %s %s event %s: %w", e.Action, e.Kind, e.ID, err)
				}
				skipped[i] = sk
			}
			return nil
		})
	})
	timer.ObserveDurationVec(metrics.StoreTransactionDuration, "apply_events")

	if err != nil {
		return 0, err
	}

	skippedCount := 0
	for i, e := range events {
		if skipped[i] {
			skippedCount++
			continue
		}
		metrics.EventsPersisted.WithLabelValues(string(e.Kind), string(e.Action)).Inc()
	}
	if skippedCount > 0 {
		metrics.EventsSkipped.Add(float64(skippedCount))
	}
	return skippedCount, nil
}

// withRetry executes an operation with exponential backoff for transient
// errors, up to the configured attempt budget. Non-retryable errors stop
// immediately.
func (s *BoltStore) withRetry(op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retry.InitialInterval
	bo.MaxElapsedTime = s.retry.MaxElapsed

	attempts := 0
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if attempts >= s.retry.MaxAttempts || !isRetryableError(err) {
			return backoff.Permanent(err)
		}
		attempts++
		metrics.StoreRetries.Inc()
		return err
	}, bo)
}

// isRetryableError returns true for deadlock-class and timeout errors
// from the transactional store
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if types.IsTransient(err) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "deadlock") {
		return true
	}
	if strings.Contains(errStr, "timeout") {
		return true
	}
	return false
}

// applyEvent applies a single validated event inside tx. Returns true when
// the event was skipped as preexisting.
func (s *BoltStore) applyEvent(tx *bolt.Tx, e *types.Event, ignorePreexisting bool) (bool, error) {
	idx := tx.Bucket(bucketEventIndex)
	if idx.Get(e.ID[:]) != nil {
		if ignorePreexisting {
			return true, nil
		}
		return false, &types.ConflictError{Element: e.Kind, ID: e.ID.String(), Reason: "duplicate event id"}
	}

	maxT, err := s.maxTransactionTime(tx)
	if err != nil {
		return false, err
	}
	if !maxT.IsZero() && e.Occurred.Before(maxT) {
		return false, &types.ConflictError{
			Element: e.Kind,
			ID:      e.ID.String(),
			Reason: fmt.Sprintf("occurred time %s is before the maximum transaction time %s",
				e.Occurred.Format(time.RFC3339Nano), maxT.Format(time.RFC3339Nano)),
		}
	}

	var rowID uint64
	if e.Action == types.ActionAdd {
		rowID, err = s.addElement(tx, e)
	} else {
		rowID, err = s.removeElement(tx, e)
	}
	if err != nil {
		return false, err
	}

	// Register the event in the event id index with its arrival sequence
	seq, err := idx.NextSequence()
	if err != nil {
		return false, err
	}
	entry, err := json.Marshal(indexEntry{TransactionTime: e.Occurred, Sequence: seq})
	if err != nil {
		return false, err
	}
	if err := idx.Put(e.ID[:], entry); err != nil {
		return false, err
	}

	// Kind-specific audit row carrying the hash code and action
	audit, err := json.Marshal(auditEntry{RowID: rowID, Action: e.Action, HashCode: e.HashCode})
	if err != nil {
		return false, err
	}
	if err := tx.Bucket(auditBuckets[e.Kind]).Put(e.ID[:], audit); err != nil {
		return false, err
	}

	return false, s.setMaxTransactionTime(tx, e.Occurred)
}

// addElement inserts the new live row for an add event, checking parents
// and duplicates at the event's occurred time
func (s *BoltStore) addElement(tx *bolt.Tx, e *types.Event) (uint64, error) {
	at := e.Occurred
	f := e.Fields

	switch e.Kind {
	case types.KindUser, types.KindGroup, types.KindEntityType:
		return s.addUnique(tx, e.Kind, at, f...)

	case types.KindEntity:
		if err := s.requireLive(tx, types.KindEntityType, at, f[0]); err != nil {
			return 0, err
		}
		return s.addUnique(tx, e.Kind, at, f...)

	case types.KindUserToGroup:
		if err := s.requireLive(tx, types.KindUser, at, f[0]); err != nil {
			return 0, err
		}
		if err := s.requireLive(tx, types.KindGroup, at, f[1]); err != nil {
			return 0, err
		}
		return s.addUnique(tx, e.Kind, at, f...)

	case types.KindGroupToGroup:
		if f[0] == f[1] {
			return 0, &types.ValidationError{Field: "fields", Reason: fmt.Sprintf("group %q cannot be mapped to itself", f[0])}
		}
		if err := s.requireLive(tx, types.KindGroup, at, f[0]); err != nil {
			return 0, err
		}
		if err := s.requireLive(tx, types.KindGroup, at, f[1]); err != nil {
			return 0, err
		}
		if s.reachable(tx, f[1], f[0], at) {
			return 0, &types.ValidationError{
				Field:  "fields",
				Reason: fmt.Sprintf("mapping group %q to %q would create a circular reference", f[0], f[1]),
			}
		}
		return s.addUnique(tx, e.Kind, at, f...)

	case types.KindUserToComponent:
		if err := s.requireLive(tx, types.KindUser, at, f[0]); err != nil {
			return 0, err
		}
		// Components and access levels are auto-created on first use,
		// within the same transaction. This applies to these two types
		// only.
		if err := s.ensureAggregate(tx, bucketComponents, at, f[1]); err != nil {
			return 0, err
		}
		if err := s.ensureAggregate(tx, bucketAccessLevels, at, f[2]); err != nil {
			return 0, err
		}
		return s.addUnique(tx, e.Kind, at, f...)

	case types.KindGroupToComponent:
		if err := s.requireLive(tx, types.KindGroup, at, f[0]); err != nil {
			return 0, err
		}
		if err := s.ensureAggregate(tx, bucketComponents, at, f[1]); err != nil {
			return 0, err
		}
		if err := s.ensureAggregate(tx, bucketAccessLevels, at, f[2]); err != nil {
			return 0, err
		}
		return s.addUnique(tx, e.Kind, at, f...)

	case types.KindUserToEntity:
		if err := s.requireLive(tx, types.KindUser, at, f[0]); err != nil {
			return 0, err
		}
		if err := s.requireLive(tx, types.KindEntityType, at, f[1]); err != nil {
			return 0, err
		}
		if err := s.requireLive(tx, types.KindEntity, at, f[1], f[2]); err != nil {
			return 0, err
		}
		return s.addUnique(tx, e.Kind, at, f...)

	case types.KindGroupToEntity:
		if err := s.requireLive(tx, types.KindGroup, at, f[0]); err != nil {
			return 0, err
		}
		if err := s.requireLive(tx, types.KindEntityType, at, f[1]); err != nil {
			return 0, err
		}
		if err := s.requireLive(tx, types.KindEntity, at, f[1], f[2]); err != nil {
			return 0, err
		}
		return s.addUnique(tx, e.Kind, at, f...)
	}

	return 0, &types.ValidationError{Field: "event_kind", Reason: fmt.Sprintf("unknown event kind %q", e.Kind)}
}

// cascadeRef names one dependent table and which key positions reference
// the removed element
type cascadeRef struct {
	bucket    []byte
	keyAt     []int // positions in Row.Keys that must equal the removed keys
	matchKeys []string
}

// removeElement closes the element's live row and cascades over dependent
// relation rows in the documented order
func (s *BoltStore) removeElement(tx *bolt.Tx, e *types.Event) (uint64, error) {
	at := e.Occurred
	cutoff := e.Occurred.Add(-types.Epsilon)
	f := e.Fields

	var cascade []cascadeRef
	switch e.Kind {
	case types.KindUser:
		cascade = []cascadeRef{
			{bucketUserToGroup, []int{0}, []string{f[0]}},
			{bucketUserToComponent, []int{0}, []string{f[0]}},
			{bucketUserToEntity, []int{0}, []string{f[0]}},
		}
	case types.KindGroup:
		cascade = []cascadeRef{
			{bucketUserToGroup, []int{1}, []string{f[0]}},
			{bucketGroupToGroup, []int{0}, []string{f[0]}},
			{bucketGroupToGroup, []int{1}, []string{f[0]}},
			{bucketGroupToComponent, []int{0}, []string{f[0]}},
			{bucketGroupToEntity, []int{0}, []string{f[0]}},
		}
	case types.KindEntityType:
		cascade = []cascadeRef{
			{bucketUserToEntity, []int{1}, []string{f[0]}},
			{bucketGroupToEntity, []int{1}, []string{f[0]}},
			{bucketEntities, []int{0}, []string{f[0]}},
		}
	case types.KindEntity:
		cascade = []cascadeRef{
			{bucketUserToEntity, []int{1, 2}, []string{f[0], f[1]}},
			{bucketGroupToEntity, []int{1, 2}, []string{f[0], f[1]}},
		}
	case types.KindUserToGroup, types.KindGroupToGroup, types.KindUserToComponent,
		types.KindGroupToComponent, types.KindUserToEntity, types.KindGroupToEntity:
		// Relations have no dependents of their own
	default:
		return 0, &types.ValidationError{Field: "event_kind", Reason: fmt.Sprintf("unknown event kind %q", e.Kind)}
	}

	// The element's own row must be live before anything is invalidated
	bucket := elementBuckets[e.Kind]
	row, rowKey, err := s.findLive(tx, bucket, at, f...)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, &types.NotFoundError{Element: e.Kind, ID: strings.Join(f, "/")}
	}

	for _, ref := range cascade {
		if _, err := s.closeMatching(tx, ref.bucket, cutoff, at, ref.keyAt, ref.matchKeys); err != nil {
			return 0, err
		}
	}

	// Close the element's own row last
	row.TransactionTo = cutoff
	data, err := json.Marshal(row)
	if err != nil {
		return 0, err
	}
	if err := tx.Bucket(bucket).Put(rowKey, data); err != nil {
		return 0, err
	}

	// The cascade must leave no live row referencing the removed element;
	// a survivor means corrupt history and the service must not continue.
	for _, ref := range cascade {
		live, err := s.countMatching(tx, ref.bucket, at, ref.keyAt, ref.matchKeys)
		if err != nil {
			return 0, err
		}
		if live > 0 {
			return 0, &types.FatalError{
				Reason: fmt.Sprintf("remove of %s %q left %d live rows in %s", e.Kind, strings.Join(f, "/"), live, ref.bucket),
			}
		}
	}

	return row.ID, nil
}

// addUnique inserts a new live row after verifying no row for the same
// keys is live at the given instant
func (s *BoltStore) addUnique(tx *bolt.Tx, kind types.EventKind, at time.Time, keys ...string) (uint64, error) {
	bucket := elementBuckets[kind]
	existing, _, err := s.findLive(tx, bucket, at, keys...)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, &types.ConflictError{Element: kind, ID: strings.Join(keys, "/"), Reason: "already exists"}
	}
	return s.insertRow(tx, bucket, at, keys...)
}

// ensureAggregate creates the aggregate row if no live row exists at the
// given instant. Used for component and access level auto-creation only.
func (s *BoltStore) ensureAggregate(tx *bolt.Tx, bucket []byte, at time.Time, key string) error {
	existing, _, err := s.findLive(tx, bucket, at, key)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	_, err = s.insertRow(tx, bucket, at, key)
	return err
}

// insertRow appends a new live row to a bucket
func (s *BoltStore) insertRow(tx *bolt.Tx, bucket []byte, at time.Time, keys ...string) (uint64, error) {
	b := tx.Bucket(bucket)
	id, err := b.NextSequence()
	if err != nil {
		return 0, err
	}
	row := Row{ID: id, Keys: keys, TransactionFrom: at, TransactionTo: forever}
	data, err := json.Marshal(row)
	if err != nil {
		return 0, err
	}
	return id, b.Put(itob(id), data)
}

// requireLive fails with NotFoundError unless a row for keys is live at
// the given instant
func (s *BoltStore) requireLive(tx *bolt.Tx, kind types.EventKind, at time.Time, keys ...string) error {
	row, _, err := s.findLive(tx, elementBuckets[kind], at, keys...)
	if err != nil {
		return err
	}
	if row == nil {
		return &types.NotFoundError{Element: kind, ID: strings.Join(keys, "/")}
	}
	return nil
}

// findLive scans a bucket for the row matching all keys that is live at
// the given instant. Returns nil when none exists.
func (s *BoltStore) findLive(tx *bolt.Tx, bucket []byte, at time.Time, keys ...string) (*Row, []byte, error) {
	var found *Row
	var foundKey []byte

	c := tx.Bucket(bucket).Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var row Row
		if err := json.Unmarshal(v, &row); err != nil {
			return nil, nil, err
		}
		if !row.LiveAt(at) || !keysEqual(row.Keys, keys) {
			continue
		}
		found = &row
		foundKey = append([]byte(nil), k...)
		break
	}
	return found, foundKey, nil
}

// closeMatching sets transaction_to on every row live at the given
// instant whose keys match at the given positions. Returns the number of
// rows closed.
func (s *BoltStore) closeMatching(tx *bolt.Tx, bucket []byte, cutoff, at time.Time, keyAt []int, matchKeys []string) (int, error) {
	b := tx.Bucket(bucket)
	closed := 0

	// Collect first: bolt cursors do not tolerate writes mid-iteration
	type pending struct {
		key []byte
		row Row
	}
	var toClose []pending

	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var row Row
		if err := json.Unmarshal(v, &row); err != nil {
			return 0, err
		}
		if !row.LiveAt(at) || !matchesAt(row.Keys, keyAt, matchKeys) {
			continue
		}
		toClose = append(toClose, pending{key: append([]byte(nil), k...), row: row})
	}

	for _, p := range toClose {
		p.row.TransactionTo = cutoff
		data, err := json.Marshal(p.row)
		if err != nil {
			return closed, err
		}
		if err := b.Put(p.key, data); err != nil {
			return closed, err
		}
		closed++
	}
	return closed, nil
}

// countMatching counts rows live at the given instant whose keys match at
// the given positions
func (s *BoltStore) countMatching(tx *bolt.Tx, bucket []byte, at time.Time, keyAt []int, matchKeys []string) (int, error) {
	count := 0
	c := tx.Bucket(bucket).Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var row Row
		if err := json.Unmarshal(v, &row); err != nil {
			return 0, err
		}
		if row.LiveAt(at) && matchesAt(row.Keys, keyAt, matchKeys) {
			count++
		}
	}
	return count, nil
}

// reachable reports whether `target` is reachable from `start` by walking
// live group-to-group mappings from their from side
func (s *BoltStore) reachable(tx *bolt.Tx, start, target string, at time.Time) bool {
	visited := make(map[string]bool)
	stack := []string{start}

	for len(stack) > 0 {
		g := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if g == target {
			return true
		}
		if visited[g] {
			continue
		}
		visited[g] = true

		c := tx.Bucket(bucketGroupToGroup).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var row Row
			if err := json.Unmarshal(v, &row); err != nil {
				continue
			}
			if row.LiveAt(at) && row.Keys[0] == g {
				stack = append(stack, row.Keys[1])
			}
		}
	}
	return false
}

// maxTransactionTime reads the greatest transaction time ever recorded,
// zero when the store is empty
func (s *BoltStore) maxTransactionTime(tx *bolt.Tx) (time.Time, error) {
	data := tx.Bucket(bucketMeta).Get(keyMaxTransactionTime)
	if data == nil {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, string(data))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse max transaction time: %w", err)
	}
	return t, nil
}

func (s *BoltStore) setMaxTransactionTime(tx *bolt.Tx, t time.Time) error {
	return tx.Bucket(bucketMeta).Put(keyMaxTransactionTime, []byte(t.Format(time.RFC3339Nano)))
}

// History returns every row ever recorded for the logical element, in row
// id order
func (s *BoltStore) History(kind types.EventKind, keys ...string) ([]Row, error) {
	bucket, ok := elementBuckets[kind]
	if !ok {
		return nil, &types.ValidationError{Field: "event_kind", Reason: fmt.Sprintf("unknown event kind %q", kind)}
	}

	var rows []Row
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var row Row
			if err := json.Unmarshal(v, &row); err != nil {
				return err
			}
			if keysEqual(row.Keys, keys) {
				rows = append(rows, row)
			}
		}
		return nil
	})
	return rows, err
}

func keysEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func matchesAt(keys []string, keyAt []int, matchKeys []string) bool {
	for i, pos := range keyAt {
		if pos >= len(keys) || keys[pos] != matchKeys[i] {
			return false
		}
	}
	return true
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// --- Per-kind writer operations ---

func (s *BoltStore) applyOne(e *types.Event) error {
	_, err := s.ApplyEvents([]*types.Event{e}, false)
	return err
}

func (s *BoltStore) AddUser(user string, eventID uuid.UUID, occurred time.Time, hashCode int32) error {
	return s.applyOne(types.NewEvent(eventID, types.KindUser, types.ActionAdd, occurred, hashCode, user))
}

func (s *BoltStore) RemoveUser(user string, eventID uuid.UUID, occurred time.Time, hashCode int32) error {
	return s.applyOne(types.NewEvent(eventID, types.KindUser, types.ActionRemove, occurred, hashCode, user))
}

func (s *BoltStore) AddGroup(group string, eventID uuid.UUID, occurred time.Time, hashCode int32) error {
	return s.applyOne(types.NewEvent(eventID, types.KindGroup, types.ActionAdd, occurred, hashCode, group))
}

func (s *BoltStore) RemoveGroup(group string, eventID uuid.UUID, occurred time.Time, hashCode int32) error {
	return s.applyOne(types.NewEvent(eventID, types.KindGroup, types.ActionRemove, occurred, hashCode, group))
}

func (s *BoltStore) AddUserToGroupMapping(user, group string, eventID uuid.UUID, occurred time.Time, hashCode int32) error {
	return s.applyOne(types.NewEvent(eventID, types.KindUserToGroup, types.ActionAdd, occurred, hashCode, user, group))
}

func (s *BoltStore) RemoveUserToGroupMapping(user, group string, eventID uuid.UUID, occurred time.Time, hashCode int32) error {
	return s.applyOne(types.NewEvent(eventID, types.KindUserToGroup, types.ActionRemove, occurred, hashCode, user, group))
}

func (s *BoltStore) AddGroupToGroupMapping(fromGroup, toGroup string, eventID uuid.UUID, occurred time.Time, hashCode int32) error {
	return s.applyOne(types.NewEvent(eventID, types.KindGroupToGroup, types.ActionAdd, occurred, hashCode, fromGroup, toGroup))
}

func (s *BoltStore) RemoveGroupToGroupMapping(fromGroup, toGroup string, eventID uuid.UUID, occurred time.Time, hashCode int32) error {
	return s.applyOne(types.NewEvent(eventID, types.KindGroupToGroup, types.ActionRemove, occurred, hashCode, fromGroup, toGroup))
}

func (s *BoltStore) AddUserToComponentMapping(user, component, access string, eventID uuid.UUID, occurred time.Time, hashCode int32) error {
	return s.applyOne(types.NewEvent(eventID, types.KindUserToComponent, types.ActionAdd, occurred, hashCode, user, component, access))
}

func (s *BoltStore) RemoveUserToComponentMapping(user, component, access string, eventID uuid.UUID, occurred time.Time, hashCode int32) error {
	return s.applyOne(types.NewEvent(eventID, types.KindUserToComponent, types.ActionRemove, occurred, hashCode, user, component, access))
}

func (s *BoltStore) AddGroupToComponentMapping(group, component, access string, eventID uuid.UUID, occurred time.Time, hashCode int32) error {
	return s.applyOne(types.NewEvent(eventID, types.KindGroupToComponent, types.ActionAdd, occurred, hashCode, group, component, access))
}

func (s *BoltStore) RemoveGroupToComponentMapping(group, component, access string, eventID uuid.UUID, occurred time.Time, hashCode int32) error {
	return s.applyOne(types.NewEvent(eventID, types.KindGroupToComponent, types.ActionRemove, occurred, hashCode, group, component, access))
}

func (s *BoltStore) AddEntityType(entityType string, eventID uuid.UUID, occurred time.Time, hashCode int32) error {
	return s.applyOne(types.NewEvent(eventID, types.KindEntityType, types.ActionAdd, occurred, hashCode, entityType))
}

func (s *BoltStore) RemoveEntityType(entityType string, eventID uuid.UUID, occurred time.Time, hashCode int32) error {
	return s.applyOne(types.NewEvent(eventID, types.KindEntityType, types.ActionRemove, occurred, hashCode, entityType))
}

func (s *BoltStore) AddEntity(entityType, entity string, eventID uuid.UUID, occurred time.Time, hashCode int32) error {
	return s.applyOne(types.NewEvent(eventID, types.KindEntity, types.ActionAdd, occurred, hashCode, entityType, entity))
}

func (s *BoltStore) RemoveEntity(entityType, entity string, eventID uuid.UUID, occurred time.Time, hashCode int32) error {
	return s.applyOne(types.NewEvent(eventID, types.KindEntity, types.ActionRemove, occurred, hashCode, entityType, entity))
}

func (s *BoltStore) AddUserToEntityMapping(user, entityType, entity string, eventID uuid.UUID, occurred time.Time, hashCode int32) error {
	return s.applyOne(types.NewEvent(eventID, types.KindUserToEntity, types.ActionAdd, occurred, hashCode, user, entityType, entity))
}

func (s *BoltStore) RemoveUserToEntityMapping(user, entityType, entity string, eventID uuid.UUID, occurred time.Time, hashCode int32) error {
	return s.applyOne(types.NewEvent(eventID, types.KindUserToEntity, types.ActionRemove, occurred, hashCode, user, entityType, entity))
}

func (s *BoltStore) AddGroupToEntityMapping(group, entityType, entity string, eventID uuid.UUID, occurred time.Time, hashCode int32) error {
	return s.applyOne(types.NewEvent(eventID, types.KindGroupToEntity, types.ActionAdd, occurred, hashCode, group, entityType, entity))
}

func (s *BoltStore) RemoveGroupToEntityMapping(group, entityType, entity string, eventID uuid.UUID, occurred time.Time, hashCode int32) error {
	return s.applyOne(types.NewEvent(eventID, types.KindGroupToEntity, types.ActionRemove, occurred, hashCode, group, entityType, entity))
}

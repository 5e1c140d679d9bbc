// Package livequery keeps an ordered in-memory snapshot of a remote table
// current via realtime change events. A Store loads an initial bulk query,
// then splices INSERT/UPDATE/DELETE events into the snapshot by primary key,
// preserving the configured ordering and filters. The snapshot converges to
// the remote table's visible rows; delivery is best-effort, not transactional.
package livequery

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/supabase"
)

// Querier is the bulk-read side of the remote data client.
type Querier interface {
	Select(ctx context.Context, q supabase.Query) ([]supabase.Row, error)
}

// Subscriber is the realtime side of the remote data client.
type Subscriber interface {
	Subscribe(table string) (*supabase.Subscription, error)
}

// Option configures a Store before it loads its snapshot.
type Option func(*Store)

// WithOrder keeps the snapshot sorted by the given column.
func WithOrder(column string, descending bool) Option {
	return func(s *Store) {
		s.order = &supabase.Order{Column: column, Descending: descending}
	}
}

// WithFilter restricts the snapshot to rows matching the filter. Filters are
// fixed for the store's lifetime; open a new store to change them.
func WithFilter(column, op, value string) Option {
	return func(s *Store) {
		s.filters = append(s.filters, supabase.Filter{Column: column, Op: op, Value: value})
	}
}

// WithEvents limits which change types the store applies. Some consumers only
// want value refreshes and subscribe to updates alone.
func WithEvents(types ...supabase.ChangeType) Option {
	return func(s *Store) {
		s.events = make(map[supabase.ChangeType]bool, len(types))
		for _, t := range types {
			s.events[t] = true
		}
	}
}

// WithPrimaryKey overrides the primary key column, which defaults to "id".
func WithPrimaryKey(column string) Option {
	return func(s *Store) { s.pk = column }
}

// Store is a thread-safe realtime snapshot of one table.
type Store struct {
	table   string
	pk      string
	filters []supabase.Filter
	order   *supabase.Order
	events  map[supabase.ChangeType]bool // nil means all
	log     zerolog.Logger

	mu        sync.RWMutex
	rows      []supabase.Row
	observers []func()

	sub    *supabase.Subscription
	cancel context.CancelFunc
	once   sync.Once
}

// Open loads the initial snapshot and starts applying realtime changes. The
// caller owns the store and must Close it to release the subscription.
func Open(ctx context.Context, q Querier, sub Subscriber, table string, logger zerolog.Logger, opts ...Option) (*Store, error) {
	s := &Store{
		table: table,
		pk:    "id",
		log:   logger.With().Str("component", "livequery").Str("table", table).Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	rows, err := q.Select(ctx, supabase.Query{
		Table:   table,
		Filters: s.filters,
		Order:   s.order,
	})
	if err != nil {
		return nil, fmt.Errorf("initial snapshot of %s: %w", table, err)
	}
	s.rows = rows

	subscription, err := sub.Subscribe(table)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", table, err)
	}
	s.sub = subscription

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.run(runCtx)

	return s, nil
}

func (s *Store) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-s.sub.Changes():
			if !ok {
				return
			}
			// Never apply results after the owner is gone.
			if ctx.Err() != nil {
				return
			}
			s.Apply(change)
		}
	}
}

// Close releases the subscription and stops the apply loop.
func (s *Store) Close() {
	s.once.Do(func() {
		s.cancel()
		s.sub.Close()
	})
}

// Table returns the table name this store mirrors.
func (s *Store) Table() string { return s.table }

// Snapshot returns a copy of the current rows in configured order.
func (s *Store) Snapshot() []supabase.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]supabase.Row, len(s.rows))
	copy(out, s.rows)
	return out
}

// Len returns the current snapshot size.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Get returns the row with the given primary key, if present.
func (s *Store) Get(pk string) (supabase.Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(pk); i >= 0 {
		return s.rows[i], true
	}
	return nil, false
}

// OnChange registers an observer invoked after every applied change. The
// observer runs outside the store lock and must not block for long.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Apply folds one change event into the snapshot. Exposed so consumers that
// multiplex a shared subscription can feed stores directly.
func (s *Store) Apply(change supabase.Change) {
	if change.Table != s.table {
		return
	}
	if s.events != nil && !s.events[change.Type] {
		return
	}

	s.mu.Lock()
	switch change.Type {
	case supabase.ChangeInsert:
		s.upsertLocked(change.New)
	case supabase.ChangeUpdate:
		if matches(s.filters, change.New) {
			s.upsertLocked(change.New)
		} else {
			// Row left the filtered set.
			s.removeLocked(s.keyOf(change.New))
		}
	case supabase.ChangeDelete:
		key := s.keyOf(change.Old)
		if key == "" {
			key = s.keyOf(change.New)
		}
		s.removeLocked(key)
	}
	observers := make([]func(), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
}

func (s *Store) keyOf(row supabase.Row) string {
	if row == nil {
		return ""
	}
	v, ok := row[s.pk]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func (s *Store) indexOf(pk string) int {
	for i, row := range s.rows {
		if s.keyOf(row) == pk {
			return i
		}
	}
	return -1
}

func (s *Store) upsertLocked(row supabase.Row) {
	if row == nil || !matches(s.filters, row) {
		return
	}
	key := s.keyOf(row)
	if key == "" {
		s.log.Warn().Msg("change row without primary key, ignoring")
		return
	}
	if i := s.indexOf(key); i >= 0 {
		s.rows = append(s.rows[:i], s.rows[i+1:]...)
	}
	s.rows = insertOrdered(s.rows, row, s.order)
}

func (s *Store) removeLocked(pk string) {
	if pk == "" {
		return
	}
	if i := s.indexOf(pk); i >= 0 {
		s.rows = append(s.rows[:i], s.rows[i+1:]...)
	}
}

// insertOrdered splices row into rows at the position dictated by order, or
// appends when no ordering is configured.
func insertOrdered(rows []supabase.Row, row supabase.Row, order *supabase.Order) []supabase.Row {
	if order == nil {
		return append(rows, row)
	}
	pos := len(rows)
	for i, existing := range rows {
		// Ascending: insert before the first greater row. Descending: before
		// the first lesser row. Equal keys keep arrival order.
		before := less(row[order.Column], existing[order.Column])
		if order.Descending {
			before = less(existing[order.Column], row[order.Column])
		}
		if before {
			pos = i
			break
		}
	}
	rows = append(rows, nil)
	copy(rows[pos+1:], rows[pos:])
	rows[pos] = row
	return rows
}

// less compares two loosely-typed column values: numbers numerically, booleans
// false<true, everything else as strings.
func less(a, b interface{}) bool {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		return af < bf
	}
	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		return !ab && bb
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

// matches reports whether a row satisfies every filter. Operators mirror the
// subset of PostgREST operators the dashboard uses.
func matches(filters []supabase.Filter, row supabase.Row) bool {
	if row == nil {
		return false
	}
	for _, f := range filters {
		v, ok := row[f.Column]
		if !ok {
			return false
		}
		sv := fmt.Sprint(v)
		switch f.Op {
		case "eq":
			if sv != f.Value {
				return false
			}
		case "neq":
			if sv == f.Value {
				return false
			}
		case "gt", "gte", "lt", "lte":
			if !compareOrdered(v, f.Value, f.Op) {
				return false
			}
		case "like", "ilike":
			pattern := strings.ReplaceAll(f.Value, "%", "")
			hay, needle := sv, pattern
			if f.Op == "ilike" {
				hay, needle = strings.ToLower(sv), strings.ToLower(pattern)
			}
			if !strings.Contains(hay, needle) {
				return false
			}
		case "in":
			set := strings.Trim(f.Value, "()")
			found := false
			for _, candidate := range strings.Split(set, ",") {
				if strings.TrimSpace(candidate) == sv {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case "is":
			if f.Value == "null" && v != nil {
				return false
			}
		default:
			// Unknown operator: fail closed so the snapshot never widens.
			return false
		}
	}
	return true
}

func compareOrdered(v interface{}, bound, op string) bool {
	if f, ok := v.(float64); ok {
		var b float64
		if _, err := fmt.Sscanf(bound, "%g", &b); err == nil {
			switch op {
			case "gt":
				return f > b
			case "gte":
				return f >= b
			case "lt":
				return f < b
			case "lte":
				return f <= b
			}
		}
	}
	sv := fmt.Sprint(v)
	switch op {
	case "gt":
		return sv > bound
	case "gte":
		return sv >= bound
	case "lt":
		return sv < bound
	case "lte":
		return sv <= bound
	}
	return false
}

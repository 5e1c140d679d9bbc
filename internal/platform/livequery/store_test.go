package livequery

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/supabase"
)

// fakeSource serves a canned snapshot and hands out real subscriptions whose
// channels the test feeds directly.
type fakeSource struct {
	rows []supabase.Row
	rc   *supabase.RealtimeClient
}

func (f *fakeSource) Select(_ context.Context, q supabase.Query) ([]supabase.Row, error) {
	return f.rows, nil
}

func (f *fakeSource) Subscribe(table string) (*supabase.Subscription, error) {
	return f.rc.Subscribe(table)
}

func openTestStore(t *testing.T, initial []supabase.Row, opts ...Option) *Store {
	t.Helper()
	src := &fakeSource{
		rows: initial,
		rc:   supabase.NewRealtimeClient("https://example.supabase.co", "key", zerolog.Nop()),
	}
	store, err := Open(context.Background(), src, src, "patients", zerolog.Nop(), opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestInsertGrowsSnapshotByOne(t *testing.T) {
	store := openTestStore(t, []supabase.Row{{"id": "p1", "name": "Ana"}})

	store.Apply(supabase.Change{
		Table: "patients",
		Type:  supabase.ChangeInsert,
		New:   supabase.Row{"id": "p2", "name": "Bruno"},
	})

	if store.Len() != 2 {
		t.Fatalf("Len = %d, want 2", store.Len())
	}
	count := 0
	for _, row := range store.Snapshot() {
		if row["id"] == "p2" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("p2 appears %d times, want exactly once", count)
	}
}

func TestDuplicateInsertDoesNotDuplicateRow(t *testing.T) {
	store := openTestStore(t, nil)

	row := supabase.Row{"id": "p1", "name": "Ana"}
	store.Apply(supabase.Change{Table: "patients", Type: supabase.ChangeInsert, New: row})
	store.Apply(supabase.Change{Table: "patients", Type: supabase.ChangeInsert, New: row})

	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", store.Len())
	}
}

func TestDeleteRemovesPrimaryKey(t *testing.T) {
	store := openTestStore(t, []supabase.Row{{"id": "p1"}, {"id": "p2"}})

	store.Apply(supabase.Change{
		Table: "patients",
		Type:  supabase.ChangeDelete,
		Old:   supabase.Row{"id": "p1"},
	})

	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", store.Len())
	}
	if _, ok := store.Get("p1"); ok {
		t.Error("p1 still present after delete")
	}
}

func TestInsertRespectsFilter(t *testing.T) {
	store := openTestStore(t, nil, WithFilter("doctor_id", "eq", "d1"))

	store.Apply(supabase.Change{
		Table: "patients",
		Type:  supabase.ChangeInsert,
		New:   supabase.Row{"id": "p1", "doctor_id": "d2"},
	})
	if store.Len() != 0 {
		t.Fatalf("non-matching insert applied, Len = %d", store.Len())
	}

	store.Apply(supabase.Change{
		Table: "patients",
		Type:  supabase.ChangeInsert,
		New:   supabase.Row{"id": "p2", "doctor_id": "d1"},
	})
	if store.Len() != 1 {
		t.Fatalf("matching insert missed, Len = %d", store.Len())
	}
}

func TestUpdateCrossingFilterBoundary(t *testing.T) {
	store := openTestStore(t,
		[]supabase.Row{{"id": "p1", "status": "active"}},
		WithFilter("status", "eq", "active"))

	// Row leaves the filtered set.
	store.Apply(supabase.Change{
		Table: "patients",
		Type:  supabase.ChangeUpdate,
		New:   supabase.Row{"id": "p1", "status": "archived"},
		Old:   supabase.Row{"id": "p1"},
	})
	if store.Len() != 0 {
		t.Fatalf("row should leave snapshot, Len = %d", store.Len())
	}

	// Previously unseen row enters the filtered set.
	store.Apply(supabase.Change{
		Table: "patients",
		Type:  supabase.ChangeUpdate,
		New:   supabase.Row{"id": "p2", "status": "active"},
		Old:   supabase.Row{"id": "p2"},
	})
	if _, ok := store.Get("p2"); !ok {
		t.Error("updated matching row should enter snapshot")
	}
}

func TestOrderPreservedOnInsert(t *testing.T) {
	store := openTestStore(t,
		[]supabase.Row{
			{"id": "a3", "scheduled_at": "2026-08-29T09:00:00Z"},
			{"id": "a1", "scheduled_at": "2026-08-29T11:00:00Z"},
		},
		WithOrder("scheduled_at", false))

	store.Apply(supabase.Change{
		Table: "patients",
		Type:  supabase.ChangeInsert,
		New:   supabase.Row{"id": "a2", "scheduled_at": "2026-08-29T10:00:00Z"},
	})

	snapshot := store.Snapshot()
	got := []string{}
	for _, row := range snapshot {
		got = append(got, row["id"].(string))
	}
	want := []string{"a3", "a2", "a1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestEventMaskSkipsUnwantedTypes(t *testing.T) {
	store := openTestStore(t,
		[]supabase.Row{{"id": "s1", "value": "old"}},
		WithEvents(supabase.ChangeUpdate))

	store.Apply(supabase.Change{
		Table: "patients",
		Type:  supabase.ChangeInsert,
		New:   supabase.Row{"id": "s2"},
	})
	if store.Len() != 1 {
		t.Error("insert should be ignored by update-only store")
	}

	store.Apply(supabase.Change{
		Table: "patients",
		Type:  supabase.ChangeUpdate,
		New:   supabase.Row{"id": "s1", "value": "new"},
	})
	row, _ := store.Get("s1")
	if row["value"] != "new" {
		t.Errorf("update not applied: %v", row)
	}
}

func TestOnChangeObserverFires(t *testing.T) {
	store := openTestStore(t, nil)

	fired := 0
	store.OnChange(func() { fired++ })

	store.Apply(supabase.Change{
		Table: "patients",
		Type:  supabase.ChangeInsert,
		New:   supabase.Row{"id": "p1"},
	})
	if fired != 1 {
		t.Errorf("observer fired %d times, want 1", fired)
	}
}

func TestChangesForOtherTablesIgnored(t *testing.T) {
	store := openTestStore(t, nil)

	store.Apply(supabase.Change{
		Table: "appointments",
		Type:  supabase.ChangeInsert,
		New:   supabase.Row{"id": "x"},
	})
	if store.Len() != 0 {
		t.Error("change for another table was applied")
	}
}

func TestMatchesOperators(t *testing.T) {
	row := supabase.Row{"age": float64(42), "name": "Maria", "tag": "vip"}

	cases := []struct {
		filter supabase.Filter
		want   bool
	}{
		{supabase.Filter{Column: "name", Op: "eq", Value: "Maria"}, true},
		{supabase.Filter{Column: "name", Op: "neq", Value: "Maria"}, false},
		{supabase.Filter{Column: "age", Op: "gt", Value: "40"}, true},
		{supabase.Filter{Column: "age", Op: "lte", Value: "41"}, false},
		{supabase.Filter{Column: "name", Op: "ilike", Value: "%mar%"}, true},
		{supabase.Filter{Column: "tag", Op: "in", Value: "(vip,priority)"}, true},
		{supabase.Filter{Column: "tag", Op: "in", Value: "(priority)"}, false},
		{supabase.Filter{Column: "missing", Op: "eq", Value: "x"}, false},
		{supabase.Filter{Column: "name", Op: "bogus", Value: "x"}, false},
	}
	for _, tc := range cases {
		if got := matches([]supabase.Filter{tc.filter}, row); got != tc.want {
			t.Errorf("matches(%+v) = %v, want %v", tc.filter, got, tc.want)
		}
	}
}

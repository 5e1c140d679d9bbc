package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", zerolog.Nop())
}

func TestSelectBuildsPostgRESTQuery(t *testing.T) {
	var gotURL, gotKey string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.String()
		gotKey = r.Header.Get("apikey")
		json.NewEncoder(w).Encode([]Row{{"id": "p1", "name": "Ana"}})
	})

	rows, err := c.Select(context.Background(), Query{
		Table:   "patients",
		Filters: []Filter{{Column: "doctor_id", Op: "eq", Value: "d1"}},
		Order:   &Order{Column: "created_at", Descending: true},
		Limit:   50,
	})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"] != "Ana" {
		t.Fatalf("rows = %v", rows)
	}
	if gotKey != "test-key" {
		t.Errorf("apikey header = %q", gotKey)
	}

	want := "/rest/v1/patients?doctor_id=eq.d1&limit=50&order=created_at.desc"
	if gotURL != want {
		t.Errorf("url = %q, want %q", gotURL, want)
	}
}

func TestInsertReturnsRepresentation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if prefer := r.Header.Get("Prefer"); prefer != "return=representation" {
			t.Errorf("Prefer = %q", prefer)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]Row{{"id": "a1", "status": "scheduled"}})
	})

	row, err := c.Insert(context.Background(), "appointments", map[string]string{"status": "scheduled"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if row["id"] != "a1" {
		t.Errorf("row = %v", row)
	}
}

func TestUpdateRequiresFilter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	if _, err := c.Update(context.Background(), "patients", nil, Row{"name": "x"}); err == nil {
		t.Fatal("expected error for filterless update")
	}
	if err := c.Delete(context.Background(), "patients", nil); err == nil {
		t.Fatal("expected error for filterless delete")
	}
}

func TestErrorResponseDecodesAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"23505","message":"duplicate key","details":"patients_cpf_key"}`))
	})

	_, err := c.Select(context.Background(), Query{Table: "patients"})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Code != "23505" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestErrorResponseWithPlainBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	})

	_, err := c.Select(context.Background(), Query{Table: "patients"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.Message != "upstream unavailable" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestDecodeRows(t *testing.T) {
	rows := []Row{{"id": "p1", "full_name": "Ana Souza"}}
	var out []struct {
		ID       string `json:"id"`
		FullName string `json:"full_name"`
	}
	if err := DecodeRows(rows, &out); err != nil {
		t.Fatalf("DecodeRows: %v", err)
	}
	if len(out) != 1 || out[0].FullName != "Ana Souza" {
		t.Errorf("out = %+v", out)
	}
}

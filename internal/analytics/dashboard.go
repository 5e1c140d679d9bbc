package analytics

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/livequery"
	"github.com/clinicore/clinicore/internal/platform/supabase"
)

// Metrics is the full dashboard payload, recomputed from the realtime
// snapshots on demand.
type Metrics struct {
	GeneratedAt           time.Time `json:"generated_at"`
	TotalPatients         int       `json:"total_patients"`
	AppointmentsToday     int       `json:"appointments_today"`
	AppointmentsByDoctor  []Bucket  `json:"appointments_by_doctor"`
	AppointmentsByHour    [24]int   `json:"appointments_by_hour"`
	AppointmentsByWeekday [7]int    `json:"appointments_by_weekday"`
	PatientsByInsurance   []Bucket  `json:"patients_by_insurance"`
	TopDiagnoses          []Bucket  `json:"top_diagnoses"`
	AvgResponseSeconds    float64   `json:"avg_response_seconds"`
}

// Dashboard derives Metrics from the patients, appointments, medical-records
// and messages snapshots. A monotonically increasing version lets callers
// cheaply detect staleness.
type Dashboard struct {
	patients     *livequery.Store
	appointments *livequery.Store
	records      *livequery.Store
	messages     *livequery.Store
	log          zerolog.Logger

	mu      sync.Mutex
	version uint64
}

// NewDashboard wires the stores together. Each store bumps the dashboard
// version on change so pollers and push consumers know to recompute.
func NewDashboard(patients, appointments, records, messages *livequery.Store, logger zerolog.Logger) *Dashboard {
	d := &Dashboard{
		patients:     patients,
		appointments: appointments,
		records:      records,
		messages:     messages,
		log:          logger.With().Str("component", "dashboard").Logger(),
	}
	for _, store := range []*livequery.Store{patients, appointments, records, messages} {
		if store != nil {
			store.OnChange(d.bump)
		}
	}
	return d
}

func (d *Dashboard) bump() {
	d.mu.Lock()
	d.version++
	d.mu.Unlock()
}

// Version returns the current change counter.
func (d *Dashboard) Version() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version
}

func snapshot(store *livequery.Store) []supabase.Row {
	if store == nil {
		return nil
	}
	return store.Snapshot()
}

// Metrics computes the dashboard aggregate for the given reference time.
func (d *Dashboard) Metrics(now time.Time) Metrics {
	patients := snapshot(d.patients)
	appointments := snapshot(d.appointments)
	records := snapshot(d.records)
	messages := snapshot(d.messages)

	m := Metrics{
		GeneratedAt:           now,
		TotalPatients:         len(patients),
		AppointmentsByDoctor:  TopN(WithPercentOfTotal(CountBy(appointments, "doctor_id")), 10),
		AppointmentsByHour:    CountByHour(appointments, "scheduled_at"),
		AppointmentsByWeekday: CountByWeekday(appointments, "scheduled_at"),
		PatientsByInsurance:   WithPercentOfTotal(CountBy(patients, "insurance")),
		TopDiagnoses:          TopN(WithPercentOfMax(CountBy(records, "diagnosis")), 5),
	}

	today := now.Format("2006-01-02")
	for _, row := range appointments {
		if t, ok := parseTime(row["scheduled_at"]); ok && t.Format("2006-01-02") == today {
			m.AppointmentsToday++
		}
	}

	m.AvgResponseSeconds = AverageResponseTime(toConversation(messages)).Seconds()
	return m
}

// toConversation adapts raw message rows to the response-time metric's shape.
// Rows missing a parsable timestamp or type are skipped.
func toConversation(rows []supabase.Row) []ConversationMessage {
	out := make([]ConversationMessage, 0, len(rows))
	for _, row := range rows {
		kind, _ := row["message_type"].(string)
		if kind == "" {
			continue
		}
		t, ok := parseTime(row["created_at"])
		if !ok {
			continue
		}
		out = append(out, ConversationMessage{Type: kind, At: t})
	}
	return out
}

package report

import (
	"time"

	"comparison-review/core/reconcile"

	"github.com/google/uuid"
)

// Resolution is one persisted field decision.
type Resolution struct {
	RecordID             int64  `json:"record_id"`
	SubscriberIdentifier string `json:"subscriber_identifier"`
	Field                string `json:"field"`
	State                string `json:"state"`
	SelectedValue        string `json:"selected_value"`
	SelectedSource       string `json:"selected_source"`
}

// Report describes one committed save.
type Report struct {
	ID          string               `json:"id"`
	Table       string               `json:"table"`
	RunID       *int64               `json:"run_id,omitempty"`
	GeneratedAt time.Time            `json:"generated_at"`
	Save        reconcile.SaveResult `json:"save"`
	Summary     reconcile.Summary    `json:"summary"`
	Resolutions []Resolution         `json:"resolutions"`
}

// Build creates a report of the resolutions in records, as they were written by the save that produced result.
// Pending fields are left out.
func Build(table string, runID *int64, records []*reconcile.ComparisonRecord, result reconcile.SaveResult) *Report {
	r := &Report{
		ID:          uuid.New().String(),
		Table:       table,
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Save:        result,
		Summary:     reconcile.Summarize(records),
		Resolutions: make([]Resolution, 0),
	}

	for _, record := range records {
		for _, f := range record.Fields.Differing() {
			if f.State() == reconcile.StatePending {
				continue
			}
			r.Resolutions = append(r.Resolutions, Resolution{
				RecordID:             record.RecordComparisonID,
				SubscriberIdentifier: record.SubscriberIdentifier,
				Field:                f.Name(),
				State:                f.State().String(),
				SelectedValue:        f.SelectedValue(),
				SelectedSource:       f.PersistedTag(),
			})
		}
	}

	return r
}

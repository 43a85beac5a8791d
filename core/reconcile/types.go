package reconcile

import (
	"encoding/json"
	"fmt"
)

// State is the resolution state of a single field.
type State int

const (
	// StatePending is the initial state of every differing field.
	StatePending State = iota
	// StateAccepted means the source value was chosen.
	StateAccepted
	// StateRejected means the destination value was kept.
	StateRejected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAccepted:
		return "accepted"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "pending":
		*s = StatePending
	case "accepted":
		*s = StateAccepted
	case "rejected":
		*s = StateRejected
	default:
		return fmt.Errorf("unknown state %q", text)
	}
	return nil
}

// Selected-source tags. TagSource and TagDest are the in-memory tags;
// TagAccepted is the confirmed marker persisted for accepted fields.
const (
	TagSource   = "Source"
	TagDest     = "Dest"
	TagAccepted = "Accepted"
)

// ComparisonRecord is one row of the comparison table.
type ComparisonRecord struct {
	// RecordComparisonID is the primary key of the row.
	RecordComparisonID int64 `json:"record_comparison_id"`
	// PipelineExecutionID groups the records of one comparison run.
	PipelineExecutionID int64 `json:"pipeline_execution_id"`
	// SubscriberIdentifier is the business key of the compared entity.
	SubscriberIdentifier string `json:"subscriber_identifier"`

	// TotalDifferences is computed upstream; NULL reads as 0.
	TotalDifferences int64 `json:"total_differences"`
	// ChangedFieldsCount is computed upstream; nil when NULL.
	ChangedFieldsCount *int64 `json:"changed_fields_count,omitempty"`
	// HasChanges is computed upstream; nil when NULL.
	HasChanges *bool `json:"has_changes,omitempty"`
	// UserAcceptance is the record-level acceptance note, when the table carries one.
	UserAcceptance *string `json:"user_acceptance,omitempty"`

	// Fields holds one comparison per discovered field, in discovery order.
	Fields Fields `json:"fields"`
}

// Changed reports the upstream HasChanges flag, treating NULL as false.
func (r *ComparisonRecord) Changed() bool {
	return r.HasChanges != nil && *r.HasChanges
}

// Clone returns a deep copy of the record.
func (r *ComparisonRecord) Clone() *ComparisonRecord {
	cp := *r
	if r.ChangedFieldsCount != nil {
		v := *r.ChangedFieldsCount
		cp.ChangedFieldsCount = &v
	}
	if r.HasChanges != nil {
		v := *r.HasChanges
		cp.HasChanges = &v
	}
	if r.UserAcceptance != nil {
		v := *r.UserAcceptance
		cp.UserAcceptance = &v
	}
	cp.Fields = Fields{}
	for _, f := range r.Fields.All() {
		fc := *f
		cp.Fields.Set(&fc)
	}
	return &cp
}

// Fields is an insertion-ordered map from field name to comparison.
// The zero value is ready to use.
type Fields struct {
	order  []string
	byName map[string]*FieldComparison
}

// Set adds or replaces the comparison for f.Name(). A replaced entry keeps its position.
func (fs *Fields) Set(f *FieldComparison) {
	if fs.byName == nil {
		fs.byName = make(map[string]*FieldComparison)
	}
	if _, exists := fs.byName[f.name]; !exists {
		fs.order = append(fs.order, f.name)
	}
	fs.byName[f.name] = f
}

// Get returns the comparison for name.
func (fs *Fields) Get(name string) (*FieldComparison, bool) {
	f, ok := fs.byName[name]
	return f, ok
}

// Len returns the number of fields.
func (fs *Fields) Len() int {
	return len(fs.order)
}

// Names returns the field names in order.
func (fs *Fields) Names() []string {
	out := make([]string, len(fs.order))
	copy(out, fs.order)
	return out
}

// All returns every comparison in order.
func (fs *Fields) All() []*FieldComparison {
	out := make([]*FieldComparison, 0, len(fs.order))
	for _, name := range fs.order {
		out = append(out, fs.byName[name])
	}
	return out
}

// Differing returns the comparisons whose source and destination differ, in order.
func (fs *Fields) Differing() []*FieldComparison {
	var out []*FieldComparison
	for _, name := range fs.order {
		if f := fs.byName[name]; f.HasDifference() {
			out = append(out, f)
		}
	}
	return out
}

// MarshalJSON encodes the fields as an ordered array.
func (fs Fields) MarshalJSON() ([]byte, error) {
	return json.Marshal(fs.All())
}

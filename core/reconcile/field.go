package reconcile

import (
	"encoding/json"
	"strings"
)

// FieldComparison is the source/destination pair of one field of one record,
// together with its resolution.
//
// Source and destination values are fixed at construction, so HasDifference
// never changes afterwards. Selection and state change only through Accept and Reject.
type FieldComparison struct {
	name    string
	source  string
	dest    string
	differs bool

	selectedValue  string
	selectedSource string
	state          State
}

// NewFieldComparison builds a comparison from the four stored column values.
// Absent or NULL values must be passed as the empty string.
//
// A differing field is Rejected when the stored tag is "Dest", Accepted when it
// is the confirmed marker "Accepted" (both case-insensitive), and Pending
// otherwise, including the pipeline default "Source".
func NewFieldComparison(name, source, dest, selectedValue, selectedSource string) *FieldComparison {
	f := &FieldComparison{
		name:           name,
		source:         source,
		dest:           dest,
		differs:        source != dest,
		selectedValue:  selectedValue,
		selectedSource: selectedSource,
		state:          StatePending,
	}
	if !f.differs {
		return f
	}

	switch {
	case strings.EqualFold(selectedSource, TagDest):
		f.state = StateRejected
		f.selectedSource = TagDest
	case strings.EqualFold(selectedSource, TagAccepted):
		f.state = StateAccepted
		f.selectedSource = TagSource
	}
	return f
}

// Name returns the field name.
func (f *FieldComparison) Name() string { return f.name }

// SourceValue returns the value found in the source system.
func (f *FieldComparison) SourceValue() string { return f.source }

// DestValue returns the value found in the destination system.
func (f *FieldComparison) DestValue() string { return f.dest }

// SelectedValue returns the value chosen for persistence.
func (f *FieldComparison) SelectedValue() string { return f.selectedValue }

// SelectedSource returns "Source", "Dest" or "" when nothing was chosen.
func (f *FieldComparison) SelectedSource() string { return f.selectedSource }

// State returns the resolution state.
func (f *FieldComparison) State() State { return f.state }

// HasDifference reports whether source and destination differ byte-for-byte.
func (f *FieldComparison) HasDifference() bool { return f.differs }

// Accept selects the source value. Calling it again re-applies the same assignment.
func (f *FieldComparison) Accept() error {
	if !f.differs {
		return ErrNotEligible
	}
	f.selectedValue = f.source
	f.selectedSource = TagSource
	f.state = StateAccepted
	return nil
}

// Reject keeps the destination value. Calling it again re-applies the same assignment.
func (f *FieldComparison) Reject() error {
	if !f.differs {
		return ErrNotEligible
	}
	f.selectedValue = f.dest
	f.selectedSource = TagDest
	f.state = StateRejected
	return nil
}

// PersistedTag returns the value written to the F_SelectedSource column.
// Accepted fields are stored with the confirmed marker so that a reload does
// not mistake them for the pipeline default "Source".
func (f *FieldComparison) PersistedTag() string {
	switch f.state {
	case StateAccepted:
		return TagAccepted
	case StateRejected:
		return TagDest
	default:
		return f.selectedSource
	}
}

type fieldJSON struct {
	Name           string `json:"name"`
	SourceValue    string `json:"source_value"`
	DestValue      string `json:"dest_value"`
	SelectedValue  string `json:"selected_value"`
	SelectedSource string `json:"selected_source"`
	State          State  `json:"state"`
	HasDifference  bool   `json:"has_difference"`
}

// MarshalJSON encodes the comparison with its derived difference flag.
func (f *FieldComparison) MarshalJSON() ([]byte, error) {
	return json.Marshal(fieldJSON{
		Name:           f.name,
		SourceValue:    f.source,
		DestValue:      f.dest,
		SelectedValue:  f.selectedValue,
		SelectedSource: f.selectedSource,
		State:          f.state,
		HasDifference:  f.differs,
	})
}

package reconcile

// Summary provides aggregate counts for a record set.
type Summary struct {
	// Records is the number of records.
	Records int `json:"records"`

	// RecordsWithDifferences counts records with at least one differing field.
	RecordsWithDifferences int `json:"records_with_differences"`

	// DifferingFields counts differing fields across all records.
	DifferingFields int `json:"differing_fields"`

	// Pending counts differing fields not yet resolved.
	Pending int `json:"pending"`

	// Accepted counts differing fields resolved to the source value.
	Accepted int `json:"accepted"`

	// Rejected counts differing fields resolved to the destination value.
	Rejected int `json:"rejected"`
}

// Complete reports whether every differing field has been resolved.
func (s Summary) Complete() bool {
	return s.Pending == 0
}

// Summarize counts resolution states over records. Non-differing fields are not counted.
func Summarize(records []*ComparisonRecord) Summary {
	var s Summary
	s.Records = len(records)

	for _, r := range records {
		differing := r.Fields.Differing()
		if len(differing) > 0 {
			s.RecordsWithDifferences++
		}
		for _, f := range differing {
			s.DifferingFields++
			switch f.State() {
			case StateAccepted:
				s.Accepted++
			case StateRejected:
				s.Rejected++
			default:
				s.Pending++
			}
		}
	}

	return s
}

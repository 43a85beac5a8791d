package reconcile

import (
	"sync"
)

// Decision is an operator's choice for a differing field.
type Decision string

const (
	// DecisionAccept takes the source value.
	DecisionAccept Decision = "accept"
	// DecisionReject keeps the destination value.
	DecisionReject Decision = "reject"
)

// Change describes one applied resolution.
type Change struct {
	RecordID       int64  `json:"record_id"`
	Field          string `json:"field"`
	State          State  `json:"state"`
	SelectedValue  string `json:"selected_value"`
	SelectedSource string `json:"selected_source"`
}

// Engine applies operator decisions to a loaded record set.
//
// It is the only writer of the records it holds. Observers register with
// Subscribe and are called synchronously after each applied change, outside
// the engine's lock.
type Engine struct {
	mu      sync.RWMutex
	records []*ComparisonRecord
	byID    map[int64]*ComparisonRecord

	subMu       sync.Mutex
	subscribers map[int]func(Change)
	nextSub     int
}

// NewEngine takes ownership of records.
func NewEngine(records []*ComparisonRecord) *Engine {
	byID := make(map[int64]*ComparisonRecord, len(records))
	for _, r := range records {
		byID[r.RecordComparisonID] = r
	}
	return &Engine{
		records:     records,
		byID:        byID,
		subscribers: make(map[int]func(Change)),
	}
}

// Accept selects the source value of field on record recordID.
func (e *Engine) Accept(recordID int64, field string) (Change, error) {
	return e.apply(recordID, field, DecisionAccept)
}

// Reject keeps the destination value of field on record recordID.
func (e *Engine) Reject(recordID int64, field string) (Change, error) {
	return e.apply(recordID, field, DecisionReject)
}

// Resolve applies d to one field.
func (e *Engine) Resolve(recordID int64, field string, d Decision) (Change, error) {
	return e.apply(recordID, field, d)
}

// ResolveRecord applies d to every differing field of record recordID.
// Fields without a difference are skipped.
func (e *Engine) ResolveRecord(recordID int64, d Decision) ([]Change, error) {
	if err := d.validate(); err != nil {
		return nil, &ResolutionError{RecordID: recordID, Err: err}
	}

	e.mu.Lock()
	record, ok := e.byID[recordID]
	if !ok {
		e.mu.Unlock()
		return nil, &ResolutionError{RecordID: recordID, Err: ErrRecordNotFound}
	}
	var changes []Change
	for _, f := range record.Fields.Differing() {
		// Differing fields are always eligible.
		_ = d.applyTo(f)
		changes = append(changes, changeOf(recordID, f))
	}
	e.mu.Unlock()

	for _, c := range changes {
		e.notify(c)
	}
	return changes, nil
}

func (e *Engine) apply(recordID int64, field string, d Decision) (Change, error) {
	if err := d.validate(); err != nil {
		return Change{}, &ResolutionError{RecordID: recordID, Field: field, Err: err}
	}

	e.mu.Lock()
	record, ok := e.byID[recordID]
	if !ok {
		e.mu.Unlock()
		return Change{}, &ResolutionError{RecordID: recordID, Field: field, Err: ErrRecordNotFound}
	}
	f, ok := record.Fields.Get(field)
	if !ok {
		e.mu.Unlock()
		return Change{}, &ResolutionError{RecordID: recordID, Field: field, Err: ErrFieldNotFound}
	}
	if err := d.applyTo(f); err != nil {
		e.mu.Unlock()
		return Change{}, &ResolutionError{RecordID: recordID, Field: field, Err: err}
	}
	change := changeOf(recordID, f)
	e.mu.Unlock()

	e.notify(change)
	return change, nil
}

// Record returns a copy of record recordID.
func (e *Engine) Record(recordID int64) (*ComparisonRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	record, ok := e.byID[recordID]
	if !ok {
		return nil, &ResolutionError{RecordID: recordID, Err: ErrRecordNotFound}
	}
	return record.Clone(), nil
}

// Snapshot returns a deep copy of every record in load order. Saving a
// snapshot lets resolutions continue while the write is in flight.
func (e *Engine) Snapshot() []*ComparisonRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*ComparisonRecord, 0, len(e.records))
	for _, r := range e.records {
		out = append(out, r.Clone())
	}
	return out
}

// Summary counts the current resolution states.
func (e *Engine) Summary() Summary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Summarize(e.records)
}

// Subscribe registers fn to be called after every applied change.
// The returned function removes the subscription.
func (e *Engine) Subscribe(fn func(Change)) (unsubscribe func()) {
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subscribers[id] = fn
	e.subMu.Unlock()

	return func() {
		e.subMu.Lock()
		delete(e.subscribers, id)
		e.subMu.Unlock()
	}
}

func (e *Engine) notify(c Change) {
	e.subMu.Lock()
	fns := make([]func(Change), 0, len(e.subscribers))
	for _, fn := range e.subscribers {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

func changeOf(recordID int64, f *FieldComparison) Change {
	return Change{
		RecordID:       recordID,
		Field:          f.Name(),
		State:          f.State(),
		SelectedValue:  f.SelectedValue(),
		SelectedSource: f.SelectedSource(),
	}
}

func (d Decision) validate() error {
	switch d {
	case DecisionAccept, DecisionReject:
		return nil
	default:
		return ErrUnknownDecision
	}
}

func (d Decision) applyTo(f *FieldComparison) error {
	if d == DecisionAccept {
		return f.Accept()
	}
	return f.Reject()
}

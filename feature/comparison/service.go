package comparison

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"comparison-review/core/logger"
	"comparison-review/core/reconcile"
	"comparison-review/core/report"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrSessionNotFound is returned for an unknown or closed session id.
	ErrSessionNotFound = errors.New("review session not found")
	// ErrSessionLimit is returned when the maximum number of open sessions is reached.
	ErrSessionLimit = errors.New("review session limit reached")
	// ErrSaveInProgress is returned when a session is saved while its previous save is still running.
	ErrSaveInProgress = errors.New("save already in progress")
	// ErrReportsUnavailable is returned when report storage is not configured.
	ErrReportsUnavailable = errors.New("report storage not configured")
)

// Session is one loaded record set under review.
type Session struct {
	ID        string
	RunID     *int64
	CreatedAt time.Time

	engine *reconcile.Engine
	fields []string
	saving atomic.Bool
}

// SessionInfo describes a session without its records.
type SessionInfo struct {
	ID        string            `json:"id"`
	RunID     *int64            `json:"run_id,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Fields    []string          `json:"fields"`
	Summary   reconcile.Summary `json:"summary"`
	Complete  bool              `json:"complete"`
}

// Info returns the current session summary.
func (s *Session) Info() SessionInfo {
	summary := s.engine.Summary()
	return SessionInfo{
		ID:        s.ID,
		RunID:     s.RunID,
		CreatedAt: s.CreatedAt,
		Fields:    s.fields,
		Summary:   summary,
		Complete:  summary.Complete(),
	}
}

// SaveOutcome is the result of saving a session.
type SaveOutcome struct {
	reconcile.SaveResult
	// Report is the object key of the published report, empty when publishing is off or failed.
	Report string `json:"report,omitempty"`
}

// Service holds review sessions over the comparison table.
type Service struct {
	cfg       reconcile.Config
	schema    *reconcile.Discoverer
	loader    *reconcile.Loader
	writer    *reconcile.Writer
	publisher *report.Publisher
	logger    *zap.Logger
	limit     int

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewService creates a new comparison review service. A limit of zero or less
// leaves the number of sessions unbounded.
func NewService(db *gorm.DB, cfg reconcile.Config, publisher *report.Publisher, log *zap.Logger, limit int) *Service {
	log = logger.OrNop(log)
	schema := reconcile.NewDiscoverer(db, cfg, log)
	return &Service{
		cfg:       cfg,
		schema:    schema,
		loader:    reconcile.NewLoader(db, schema, cfg, log),
		writer:    reconcile.NewWriter(db, cfg, log),
		publisher: publisher,
		logger:    log,
		limit:     limit,
		sessions:  make(map[string]*Session),
	}
}

// Table returns the comparison table name.
func (s *Service) Table() string {
	return s.cfg.Table
}

// Fields returns the discovered field names. refresh bypasses the schema cache.
func (s *Service) Fields(ctx context.Context, refresh bool) ([]string, error) {
	if refresh {
		s.schema.Invalidate()
	}
	return s.schema.Discover(ctx)
}

// Open loads the records of runID (all runs when nil) into a new session.
func (s *Service) Open(ctx context.Context, runID *int64) (*Session, error) {
	if err := s.checkLimit(); err != nil {
		return nil, err
	}

	records, err := s.loader.Load(ctx, runID)
	if err != nil {
		return nil, err
	}
	fields, err := s.schema.Discover(ctx)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:        uuid.New().String(),
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
		engine:    reconcile.NewEngine(records),
		fields:    fields,
	}

	s.mu.Lock()
	if s.limit > 0 && len(s.sessions) >= s.limit {
		s.mu.Unlock()
		return nil, ErrSessionLimit
	}
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Info("Opened review session",
		zap.String("session", sess.ID),
		zap.Int("records", len(records)),
	)
	return sess, nil
}

func (s *Service) checkLimit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limit > 0 && len(s.sessions) >= s.limit {
		return ErrSessionLimit
	}
	return nil
}

// Session returns the open session id.
func (s *Service) Session(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Sessions returns every open session, oldest first.
func (s *Service) Sessions() []SessionInfo {
	s.mu.Lock()
	list := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	infos := make([]SessionInfo, 0, len(list))
	for _, sess := range list {
		infos = append(infos, sess.Info())
	}
	return infos
}

// Close discards session id and its unsaved resolutions.
func (s *Service) Close(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Records returns a copy of the session's records. With differingOnly set,
// records without any differing field are left out.
func (s *Service) Records(id string, differingOnly bool) ([]*reconcile.ComparisonRecord, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	records := sess.engine.Snapshot()
	if !differingOnly {
		return records, nil
	}
	out := make([]*reconcile.ComparisonRecord, 0, len(records))
	for _, r := range records {
		if len(r.Fields.Differing()) > 0 {
			out = append(out, r)
		}
	}
	return out, nil
}

// Record returns a copy of one record of the session.
func (s *Service) Record(id string, recordID int64) (*reconcile.ComparisonRecord, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	return sess.engine.Record(recordID)
}

// Resolve applies d to one field of one record.
func (s *Service) Resolve(id string, recordID int64, field string, d reconcile.Decision) (reconcile.Change, error) {
	sess, err := s.Session(id)
	if err != nil {
		return reconcile.Change{}, err
	}
	return sess.engine.Resolve(recordID, field, d)
}

// ResolveRecord applies d to every differing field of one record.
func (s *Service) ResolveRecord(id string, recordID int64, d reconcile.Decision) ([]reconcile.Change, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	return sess.engine.ResolveRecord(recordID, d)
}

// Save persists the session's current resolutions. Resolutions made while
// the save runs are not part of it. After a successful commit a report is
// published when enabled; a publishing failure is logged only.
func (s *Service) Save(ctx context.Context, id string) (SaveOutcome, error) {
	sess, err := s.Session(id)
	if err != nil {
		return SaveOutcome{}, err
	}
	if !sess.saving.CompareAndSwap(false, true) {
		return SaveOutcome{}, ErrSaveInProgress
	}
	defer sess.saving.Store(false)

	snapshot := sess.engine.Snapshot()
	result, err := s.writer.Save(ctx, snapshot)
	if err != nil {
		return SaveOutcome{}, err
	}

	outcome := SaveOutcome{SaveResult: result}
	if s.publisher.Enabled() {
		rep := report.Build(s.cfg.Table, sess.RunID, snapshot, result)
		key, err := s.publisher.Publish(ctx, rep)
		if err != nil {
			s.logger.Warn("Failed to publish review report",
				zap.String("session", id),
				zap.Error(err),
			)
		} else {
			outcome.Report = key
		}
	}

	return outcome, nil
}

// Reports lists the stored report keys of runID.
func (s *Service) Reports(ctx context.Context, runID *int64) ([]string, error) {
	if s.publisher == nil {
		return nil, ErrReportsUnavailable
	}
	return s.publisher.List(ctx, runID)
}

// Report fetches one stored report by id.
func (s *Service) Report(ctx context.Context, runID *int64, reportID string) (*report.Report, error) {
	if s.publisher == nil {
		return nil, ErrReportsUnavailable
	}
	return s.publisher.Fetch(ctx, s.publisher.RunPrefix(runID)+reportID+".json")
}

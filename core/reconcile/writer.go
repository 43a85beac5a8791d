package reconcile

import (
	"context"
	"errors"

	"comparison-review/core/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SaveResult summarises a committed save.
type SaveResult struct {
	// Statements is the number of UPDATE statements issued (one per record with differences).
	Statements int `json:"statements"`
	// Fields is the number of field resolutions written.
	Fields int `json:"fields"`
	// Skipped is the number of records without any differing field.
	Skipped int `json:"skipped"`
}

// Writer persists field resolutions back to the comparison table.
type Writer struct {
	db     *gorm.DB
	cfg    Config
	logger *zap.Logger
}

// NewWriter creates a persistence writer for cfg.Table.
func NewWriter(db *gorm.DB, cfg Config, log *zap.Logger) *Writer {
	return &Writer{
		db:     db,
		cfg:    cfg,
		logger: logger.OrNop(log),
	}
}

// UpdateSet returns the column assignments persisted for record: the
// F_Selected and F_SelectedSource columns of every differing field.
// Empty strings are written as NULL.
func UpdateSet(record *ComparisonRecord) map[string]interface{} {
	updates := make(map[string]interface{})
	for _, f := range record.Fields.Differing() {
		updates[f.Name()+SuffixSelected] = nullable(f.SelectedValue())
		updates[f.Name()+SuffixSelectedSource] = nullable(f.PersistedTag())
	}
	return updates
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Save writes the resolutions of every differing field of records in a single
// transaction. Records are updated in slice order, each keyed by its id. If
// any statement fails, or ctx is cancelled before commit, the whole batch is
// rolled back and a *PersistenceError is returned. records are never modified.
func (w *Writer) Save(ctx context.Context, records []*ComparisonRecord) (SaveResult, error) {
	var result SaveResult

	if w.db == nil {
		return result, &PersistenceError{Err: errors.New("database connection not available")}
	}

	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := w.cfg.Scope().Apply(tx); err != nil {
			return err
		}

		for _, record := range records {
			if err := ctx.Err(); err != nil {
				return err
			}

			updates := UpdateSet(record)
			if len(updates) == 0 {
				result.Skipped++
				continue
			}

			res := tx.Table(w.cfg.Table).
				Where(ColRecordComparisonID+" = ?", record.RecordComparisonID).
				Updates(updates)
			if res.Error != nil {
				return &PersistenceError{RecordID: record.RecordComparisonID, Err: res.Error}
			}
			if res.RowsAffected == 0 {
				w.logger.Debug("Update matched no changed row",
					zap.Int64("record_id", record.RecordComparisonID))
			}

			result.Statements++
			result.Fields += len(updates) / 2
		}

		// A cancelled context must not commit.
		return ctx.Err()
	})
	if err != nil {
		var pe *PersistenceError
		if !errors.As(err, &pe) {
			pe = &PersistenceError{Err: err}
		}
		w.logger.Error("Save rolled back",
			zap.String("table", w.cfg.Table),
			zap.Int64("record_id", pe.RecordID),
			zap.Error(pe.Err),
		)
		return SaveResult{}, pe
	}

	w.logger.Info("Saved resolutions",
		zap.String("table", w.cfg.Table),
		zap.Int("statements", result.Statements),
		zap.Int("fields", result.Fields),
	)
	return result, nil
}

package reconcile

import (
	"context"
	"fmt"

	"comparison-review/core/database"
	"comparison-review/core/logger"
	"comparison-review/core/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Loader reads comparison records from the comparison table.
type Loader struct {
	db     *gorm.DB
	schema *Discoverer
	cfg    Config
	logger *zap.Logger
}

// NewLoader creates a record loader that takes its field list from schema.
func NewLoader(db *gorm.DB, schema *Discoverer, cfg Config, log *zap.Logger) *Loader {
	return &Loader{
		db:     db,
		schema: schema,
		cfg:    cfg,
		logger: logger.OrNop(log),
	}
}

// Load returns one record per matching row, ordered by record id.
// A nil runID loads every run. Loading is all-or-nothing: on any error,
// including context cancellation, no records are returned.
func (l *Loader) Load(ctx context.Context, runID *int64) ([]*ComparisonRecord, error) {
	fields, err := l.schema.Discover(ctx)
	if err != nil {
		return nil, err
	}

	var records []*ComparisonRecord
	err = database.WithScope(ctx, l.db, l.cfg.Scope(), func(conn *gorm.DB) error {
		query := conn.Table(l.cfg.Table)
		if runID != nil {
			query = query.Where(ColPipelineExecutionID+" = ?", *runID)
		}

		rows, err := query.Order(ColRecordComparisonID).Rows()
		if err != nil {
			return fmt.Errorf("failed to query %s: %w", l.cfg.Table, err)
		}
		defer rows.Close()

		columns, err := rows.Columns()
		if err != nil {
			return fmt.Errorf("failed to read columns of %s: %w", l.cfg.Table, err)
		}
		index := make(map[string]int, len(columns))
		for i, col := range columns {
			index[col] = i
		}

		ordinal := 0
		for rows.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			ordinal++

			values := make([]any, len(columns))
			ptrs := make([]any, len(columns))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return fmt.Errorf("failed to scan row %d: %w", ordinal, err)
			}

			record, err := buildRecord(row{index: index, values: values}, ordinal, fields)
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to iterate %s: %w", l.cfg.Table, err)
		}
		return ctx.Err()
	})
	if err != nil {
		l.logger.Error("Load failed", zap.String("table", l.cfg.Table), zap.Error(err))
		return nil, err
	}

	l.logger.Info("Loaded comparison records",
		zap.String("table", l.cfg.Table),
		zap.Int("records", len(records)),
		zap.Int("fields", len(fields)),
	)
	return records, nil
}

// row is one scanned result row addressed by column name.
type row struct {
	index  map[string]int
	values []any
}

// lookup returns the raw value of col; present is false when the result set has no such column.
func (r row) lookup(col string) (value any, present bool) {
	i, ok := r.index[col]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

// text returns the value of col as a string; NULL and absent columns read as "".
func (r row) text(col string) string {
	v, _ := r.lookup(col)
	return utils.ToString(v)
}

func buildRecord(r row, ordinal int, fields []string) (*ComparisonRecord, error) {
	raw, present := r.lookup(ColRecordComparisonID)
	if !present {
		return nil, &MalformedRowError{Ordinal: ordinal, Column: ColRecordComparisonID, Reason: "is missing"}
	}
	id, ok := utils.ToInt64(raw)
	if !ok {
		return nil, &MalformedRowError{Ordinal: ordinal, Column: ColRecordComparisonID, Reason: "is NULL or not an integer"}
	}
	malformed := func(col, reason string) error {
		return &MalformedRowError{RecordID: &id, Ordinal: ordinal, Column: col, Reason: reason}
	}

	record := &ComparisonRecord{RecordComparisonID: id}

	raw, present = r.lookup(ColPipelineExecutionID)
	if !present {
		return nil, malformed(ColPipelineExecutionID, "is missing")
	}
	if record.PipelineExecutionID, ok = utils.ToInt64(raw); !ok {
		return nil, malformed(ColPipelineExecutionID, "is NULL or not an integer")
	}

	raw, present = r.lookup(ColSubscriberIdentifier)
	if !present {
		return nil, malformed(ColSubscriberIdentifier, "is missing")
	}
	if raw == nil {
		return nil, malformed(ColSubscriberIdentifier, "is NULL")
	}
	record.SubscriberIdentifier = utils.ToString(raw)

	// Metrics are nullable and optional.
	if raw, _ = r.lookup(ColTotalDifferences); raw != nil {
		if record.TotalDifferences, ok = utils.ToInt64(raw); !ok {
			return nil, malformed(ColTotalDifferences, "is not an integer")
		}
	}
	if raw, _ = r.lookup(ColChangedFieldsCount); raw != nil {
		v, ok := utils.ToInt64(raw)
		if !ok {
			return nil, malformed(ColChangedFieldsCount, "is not an integer")
		}
		record.ChangedFieldsCount = &v
	}
	if raw, _ = r.lookup(ColHasChanges); raw != nil {
		if v, ok := utils.ToBool(raw); ok {
			record.HasChanges = &v
		}
	}
	if raw, _ = r.lookup(ColUserAcceptance); raw != nil {
		v := utils.ToString(raw)
		record.UserAcceptance = &v
	}

	for _, name := range fields {
		record.Fields.Set(NewFieldComparison(
			name,
			r.text(name+SuffixSource),
			r.text(name+SuffixDest),
			r.text(name+SuffixSelected),
			r.text(name+SuffixSelectedSource),
		))
	}

	return record, nil
}

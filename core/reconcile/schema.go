package reconcile

import (
	"context"
	"errors"
	"sort"
	"strings"

	"comparison-review/core/database"
	"comparison-review/core/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ParseFieldNames derives the field list from column names.
// A field F exists iff a column named F_Source exists (case-sensitive). The
// result is deduplicated and sorted lexically.
func ParseFieldNames(columns []string) []string {
	seen := make(map[string]struct{})
	fields := make([]string, 0)
	for _, col := range columns {
		if !strings.HasSuffix(col, SuffixSource) {
			continue
		}
		name := strings.TrimSuffix(col, SuffixSource)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

// Discoverer lists the fields of the comparison table.
type Discoverer struct {
	db     *gorm.DB
	cfg    Config
	logger *zap.Logger
	cache  *cacheStore
}

// NewDiscoverer creates a schema discoverer for cfg.Table.
func NewDiscoverer(db *gorm.DB, cfg Config, log *zap.Logger) *Discoverer {
	return &Discoverer{
		db:     db,
		cfg:    cfg,
		logger: logger.OrNop(log),
		cache:  newCacheStore(),
	}
}

// Discover returns the sorted field names of the comparison table.
// It fails with ErrSchemaUnavailable when the table is missing or unreadable.
func (d *Discoverer) Discover(ctx context.Context) ([]string, error) {
	return d.cache.getOrBuild(ctx, d.cfg.Table, d.cfg.SchemaTTL(), d.discover)
}

// Invalidate drops the cached field list so the next Discover reads the table again.
func (d *Discoverer) Invalidate() {
	d.cache.invalidate(d.cfg.Table)
}

func (d *Discoverer) discover(ctx context.Context) ([]string, error) {
	if d.db == nil {
		return nil, &SchemaError{Table: d.cfg.Table, Err: errors.New("database connection not available")}
	}

	var columns []database.ColumnInfo
	err := database.WithScope(ctx, d.db, d.cfg.Scope(), func(conn *gorm.DB) error {
		var err error
		columns, err = database.GetTableColumns(ctx, conn, d.cfg.Table)
		return err
	})
	if err != nil {
		return nil, &SchemaError{Table: d.cfg.Table, Err: err}
	}
	if len(columns) == 0 {
		return nil, &SchemaError{Table: d.cfg.Table, Err: errors.New("table has no columns or does not exist")}
	}

	fields := ParseFieldNames(database.ColumnNames(columns))
	d.logger.Debug("Discovered comparison fields",
		zap.String("table", d.cfg.Table),
		zap.Int("columns", len(columns)),
		zap.Int("fields", len(fields)),
	)
	return fields, nil
}

package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// ColumnInfo matches the output of SHOW COLUMNS
type ColumnInfo struct {
	Field   string
	Type    string
	Null    string
	Key     string
	Default *string // Pointer because NULL default is possible
	Extra   string
}

// GetTableColumns retrieves the column definitions for a given table.
// Column names keep their original case; callers match naming conventions on them.
func GetTableColumns(ctx context.Context, db *gorm.DB, tableName string) ([]ColumnInfo, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection not available")
	}

	var columns []ColumnInfo
	quoted := db.Statement.Quote(tableName)

	if db.Dialector.Name() == DriverSQLite {
		// SQLite uses PRAGMA table_info
		type SQLiteColumn struct {
			Cid        int
			Name       string
			Type       string
			Notnull    int
			DefaultVal *string `gorm:"column:dflt_value"`
			Pk         int
		}
		var sqliteCols []SQLiteColumn
		if err := db.WithContext(ctx).Raw(fmt.Sprintf("PRAGMA table_info(%s)", quoted)).Scan(&sqliteCols).Error; err != nil {
			return nil, fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
		}
		for _, col := range sqliteCols {
			null := "YES"
			if col.Notnull == 1 {
				null = "NO"
			}
			columns = append(columns, ColumnInfo{
				Field:   col.Name,
				Type:    col.Type,
				Null:    null,
				Default: col.DefaultVal,
			})
		}
		return columns, nil
	}

	err := db.WithContext(ctx).Raw(fmt.Sprintf("SHOW COLUMNS FROM %s", quoted)).Scan(&columns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
	}
	return columns, nil
}

// ColumnNames returns the Field of every column, in table order.
func ColumnNames(columns []ColumnInfo) []string {
	names := make([]string, 0, len(columns))
	for _, col := range columns {
		names = append(names, col.Field)
	}
	return names
}

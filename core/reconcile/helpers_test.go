package reconcile

import (
	"fmt"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testTable = "comparison"

func testConfig() Config {
	return Config{Table: testTable}
}

// setupMockDB opens a gorm MySQL connection backed by sqlmock.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}

	return gormDB, mock
}

// setupTestDB creates an in-memory SQLite DB holding the comparison table.
func setupTestDB(t *testing.T) *gorm.DB {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	err = db.Exec(`CREATE TABLE comparison (
		RecordComparisonId INTEGER PRIMARY KEY,
		PipelineExecutionId INTEGER,
		SubscriberIdentifier TEXT,
		TotalDifferences INTEGER,
		ChangedFieldsCount INTEGER,
		HasChanges BOOLEAN,
		UserAcceptance TEXT,
		Email_Source TEXT,
		Email_Dest TEXT,
		Email_Selected TEXT,
		Email_SelectedSource TEXT,
		Phone_Source TEXT,
		Phone_Dest TEXT,
		Phone_Selected TEXT,
		Phone_SelectedSource TEXT
	)`).Error
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Exec("DROP TABLE comparison")
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// insertRow inserts one comparison row. Fields not in values are NULL.
func insertRow(t *testing.T, db *gorm.DB, values map[string]interface{}) {
	require.NoError(t, db.Table(testTable).Create(values).Error)
}

// newRecord builds a record from name -> {source, dest} pairs with no stored selection.
func newRecord(id int64, pairs ...[3]string) *ComparisonRecord {
	r := &ComparisonRecord{RecordComparisonID: id, PipelineExecutionID: 1, SubscriberIdentifier: fmt.Sprintf("SUB-%d", id)}
	for _, p := range pairs {
		r.Fields.Set(NewFieldComparison(p[0], p[1], p[2], "", ""))
	}
	return r
}

// comparisonColumns is the SHOW COLUMNS result of the comparison table.
func comparisonColumns(fields ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"}).
		AddRow(ColRecordComparisonID, "bigint", "NO", "PRI", nil, "").
		AddRow(ColPipelineExecutionID, "bigint", "NO", "", nil, "").
		AddRow(ColSubscriberIdentifier, "varchar(64)", "NO", "", nil, "")
	for _, f := range fields {
		rows.AddRow(f+SuffixSource, "varchar(255)", "YES", "", nil, "")
		rows.AddRow(f+SuffixDest, "varchar(255)", "YES", "", nil, "")
		rows.AddRow(f+SuffixSelected, "varchar(255)", "YES", "", nil, "")
		rows.AddRow(f+SuffixSelectedSource, "varchar(16)", "YES", "", nil, "")
	}
	return rows
}

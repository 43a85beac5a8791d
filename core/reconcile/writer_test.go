package reconcile

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const updateEmail = "UPDATE `comparison` SET `Email_Selected`=?,`Email_SelectedSource`=? WHERE RecordComparisonId = ?"

func TestUpdateSet(t *testing.T) {
	r := newRecord(1,
		[3]string{"Email", "new@x.com", "old@x.com"},
		[3]string{"Phone", "555", "555"},
		[3]string{"Zip", "", "1000"},
	)

	t.Run("Pending Writes Empty As Null", func(t *testing.T) {
		updates := UpdateSet(r)
		assert.Len(t, updates, 4, "only differing fields are written")
		assert.Nil(t, updates["Email_Selected"])
		assert.Nil(t, updates["Email_SelectedSource"])
		assert.NotContains(t, updates, "Phone_Selected")
	})

	t.Run("Resolved", func(t *testing.T) {
		email, _ := r.Fields.Get("Email")
		zip, _ := r.Fields.Get("Zip")
		require.NoError(t, email.Accept())
		require.NoError(t, zip.Accept())

		updates := UpdateSet(r)
		assert.Equal(t, "new@x.com", updates["Email_Selected"])
		assert.Equal(t, TagAccepted, updates["Email_SelectedSource"])
		assert.Nil(t, updates["Zip_Selected"], "accepting an empty source writes NULL")
		assert.Equal(t, TagAccepted, updates["Zip_SelectedSource"])

		require.NoError(t, email.Reject())
		updates = UpdateSet(r)
		assert.Equal(t, "old@x.com", updates["Email_Selected"])
		assert.Equal(t, TagDest, updates["Email_SelectedSource"])
	})

	t.Run("No Differences", func(t *testing.T) {
		assert.Empty(t, UpdateSet(newRecord(2, [3]string{"Phone", "1", "1"})))
	})
}

func TestWriter_Save_Statements(t *testing.T) {
	db, mock := setupMockDB(t)

	r1 := newRecord(1, [3]string{"Email", "new", "old"})
	r2 := newRecord(2, [3]string{"Email", "new2", "old2"})
	f1, _ := r1.Fields.Get("Email")
	f2, _ := r2.Fields.Get("Email")
	require.NoError(t, f1.Accept())
	require.NoError(t, f2.Reject())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(updateEmail)).
		WithArgs("new", TagAccepted, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(updateEmail)).
		WithArgs("old2", TagDest, int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := NewWriter(db, testConfig(), nil).Save(context.Background(), []*ComparisonRecord{r1, r2})
	require.NoError(t, err)
	assert.Equal(t, SaveResult{Statements: 2, Fields: 2}, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_Save_NoDifferences(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := NewWriter(db, testConfig(), nil).Save(context.Background(), []*ComparisonRecord{
		newRecord(1, [3]string{"Phone", "555", "555"}),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Statements)
	assert.Equal(t, 1, result.Skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_Save_ZeroRowsAffected(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(updateEmail)).
		WithArgs(nil, nil, int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	result, err := NewWriter(db, testConfig(), nil).Save(context.Background(), []*ComparisonRecord{
		newRecord(404, [3]string{"Email", "a", "b"}),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Statements)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_Save_MidBatchFailure(t *testing.T) {
	db, mock := setupMockDB(t)

	records := []*ComparisonRecord{
		newRecord(1, [3]string{"Email", "a1", "b1"}),
		newRecord(2, [3]string{"Email", "a2", "b2"}),
		newRecord(3, [3]string{"Email", "a3", "b3"}),
	}
	for _, r := range records {
		f, _ := r.Fields.Get("Email")
		require.NoError(t, f.Accept())
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(updateEmail)).
		WithArgs("a1", TagAccepted, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(updateEmail)).
		WithArgs("a2", TagAccepted, int64(2)).
		WillReturnError(errors.New("lock wait timeout exceeded"))
	mock.ExpectRollback()

	result, err := NewWriter(db, testConfig(), nil).Save(context.Background(), records)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistenceFailed)
	assert.Equal(t, SaveResult{}, result)

	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, int64(2), pe.RecordID)
	assert.Contains(t, pe.Err.Error(), "lock wait timeout")

	// Record 3 was never attempted and no commit happened
	assert.NoError(t, mock.ExpectationsWereMet())

	// In-memory resolutions are untouched
	for _, r := range records {
		f, _ := r.Fields.Get("Email")
		assert.Equal(t, StateAccepted, f.State())
	}
}

func TestWriter_Save_CommitFailure(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(updateEmail)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	_, err := NewWriter(db, testConfig(), nil).Save(context.Background(), []*ComparisonRecord{
		newRecord(1, [3]string{"Email", "a", "b"}),
	})
	assert.ErrorIs(t, err, ErrPersistenceFailed)

	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, int64(0), pe.RecordID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_Save_Cancelled(t *testing.T) {
	db, mock := setupMockDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := []*ComparisonRecord{newRecord(1, [3]string{"Email", "a", "b"})}
	_, err := NewWriter(db, testConfig(), nil).Save(ctx, records)
	assert.ErrorIs(t, err, ErrPersistenceFailed)
	assert.ErrorIs(t, err, context.Canceled)

	// Nothing reached the database
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_Save_TenantScope(t *testing.T) {
	db, mock := setupMockDB(t)
	cfg := testConfig()
	cfg.TenantStatement = "SET @tenant_id = ?"
	cfg.TenantID = "42"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET @tenant_id = ?")).
		WithArgs("42").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(updateEmail)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := NewWriter(db, cfg, nil).Save(context.Background(), []*ComparisonRecord{
		newRecord(1, [3]string{"Email", "a", "b"}),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_Save_TenantScopeFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	cfg := testConfig()
	cfg.TenantStatement = "SET @tenant_id = ?"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET @tenant_id = ?")).
		WillReturnError(errors.New("access denied"))
	mock.ExpectRollback()

	_, err := NewWriter(db, cfg, nil).Save(context.Background(), []*ComparisonRecord{
		newRecord(1, [3]string{"Email", "a", "b"}),
	})
	assert.ErrorIs(t, err, ErrPersistenceFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriter_Save_NilDB(t *testing.T) {
	_, err := NewWriter(nil, testConfig(), nil).Save(context.Background(), nil)
	assert.ErrorIs(t, err, ErrPersistenceFailed)
}

type storedSelection struct {
	EmailSelected       string `gorm:"column:Email_Selected"`
	EmailSelectedSource string `gorm:"column:Email_SelectedSource"`
	PhoneSelected       string `gorm:"column:Phone_Selected"`
	PhoneSelectedSource string `gorm:"column:Phone_SelectedSource"`
}

func TestWriter_RoundTrip(t *testing.T) {
	loader, writer := newTestLoader(t)

	insertRow(t, loader.db, map[string]interface{}{
		"RecordComparisonId":   1,
		"PipelineExecutionId":  1,
		"SubscriberIdentifier": "SUB-1",
		"Email_Source":         "new@x.com",
		"Email_Dest":           "old@x.com",
		"Email_SelectedSource": "Source",
		"Phone_Source":         "555",
		"Phone_Dest":           "777",
	})
	insertRow(t, loader.db, map[string]interface{}{
		"RecordComparisonId":   2,
		"PipelineExecutionId":  1,
		"SubscriberIdentifier": "SUB-2",
		"Email_Source":         "same",
		"Email_Dest":           "same",
	})

	ctx := context.Background()
	records, err := loader.Load(ctx, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)

	engine := NewEngine(records)
	_, err = engine.Accept(1, "Email")
	require.NoError(t, err)
	_, err = engine.Reject(1, "Phone")
	require.NoError(t, err)

	result, err := writer.Save(ctx, engine.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, SaveResult{Statements: 1, Fields: 2, Skipped: 1}, result)

	var stored storedSelection
	require.NoError(t, loader.db.Table(testTable).Where("RecordComparisonId = ?", 1).Take(&stored).Error)
	assert.Equal(t, "new@x.com", stored.EmailSelected)
	assert.Equal(t, TagAccepted, stored.EmailSelectedSource)
	assert.Equal(t, "777", stored.PhoneSelected)
	assert.Equal(t, TagDest, stored.PhoneSelectedSource)

	reloaded, err := loader.Load(ctx, nil)
	require.NoError(t, err)
	email, _ := reloaded[0].Fields.Get("Email")
	assert.Equal(t, StateAccepted, email.State())
	assert.Equal(t, TagSource, email.SelectedSource())
	assert.Equal(t, "new@x.com", email.SelectedValue())

	phone, _ := reloaded[0].Fields.Get("Phone")
	assert.Equal(t, StateRejected, phone.State())
	assert.Equal(t, "777", phone.SelectedValue())

	// Saving the reloaded set again is stable
	_, err = writer.Save(ctx, reloaded)
	require.NoError(t, err)
	again, err := loader.Load(ctx, nil)
	require.NoError(t, err)
	email, _ = again[0].Fields.Get("Email")
	assert.Equal(t, StateAccepted, email.State())
}

func TestWriter_RoundTrip_PendingStaysPending(t *testing.T) {
	loader, writer := newTestLoader(t)
	insertRow(t, loader.db, map[string]interface{}{
		"RecordComparisonId":   1,
		"PipelineExecutionId":  1,
		"SubscriberIdentifier": "SUB-1",
		"Email_Source":         "a",
		"Email_Dest":           "b",
		"Email_Selected":       "a",
		"Email_SelectedSource": "Source",
	})

	ctx := context.Background()
	records, err := loader.Load(ctx, nil)
	require.NoError(t, err)

	_, err = writer.Save(ctx, records)
	require.NoError(t, err)

	reloaded, err := loader.Load(ctx, nil)
	require.NoError(t, err)
	email, _ := reloaded[0].Fields.Get("Email")
	assert.Equal(t, StatePending, email.State())
	assert.Equal(t, TagSource, email.SelectedSource())
}

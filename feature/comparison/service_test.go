package comparison

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"comparison-review/core/database"
	"comparison-review/core/reconcile"
	"comparison-review/core/report"
	"comparison-review/core/storage/mocks"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testTable = "results"

// setupDB creates an in-memory SQLite comparison table with two runs.
func setupDB(t *testing.T) *gorm.DB {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Connect(database.Config{
		Driver: database.DriverSQLite,
		Name:   fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`CREATE TABLE results (
		RecordComparisonId INTEGER PRIMARY KEY,
		PipelineExecutionId INTEGER NOT NULL,
		SubscriberIdentifier TEXT NOT NULL,
		TotalDifferences INTEGER,
		Email_Source TEXT, Email_Dest TEXT, Email_Selected TEXT, Email_SelectedSource TEXT,
		Phone_Source TEXT, Phone_Dest TEXT, Phone_Selected TEXT, Phone_SelectedSource TEXT
	)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO results VALUES
		(1, 10, 'SUB-1', 2, 'a@new', 'a@old', 'a@new', 'Source', '111', '222', '111', 'Source'),
		(2, 10, 'SUB-2', 0, 'b@x', 'b@x', NULL, NULL, '333', '333', NULL, NULL),
		(3, 11, 'SUB-3', 1, 'c@new', 'c@old', NULL, NULL, NULL, NULL, NULL, NULL)`).Error)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestService(t *testing.T, publisher *report.Publisher, limit int) (*Service, *gorm.DB) {
	db := setupDB(t)
	return NewService(db, reconcile.Config{Table: testTable}, publisher, zap.NewNop(), limit), db
}

func TestService_OpenAndResolve(t *testing.T) {
	svc, _ := newTestService(t, nil, 0)
	ctx := context.Background()

	run := int64(10)
	sess, err := svc.Open(ctx, &run)
	require.NoError(t, err)

	info := sess.Info()
	assert.Equal(t, []string{"Email", "Phone"}, info.Fields)
	assert.Equal(t, 2, info.Summary.Records)
	assert.Equal(t, 2, info.Summary.Pending)
	assert.False(t, info.Complete)

	_, err = svc.Resolve(sess.ID, 1, "Email", reconcile.DecisionAccept)
	require.NoError(t, err)
	_, err = svc.Resolve(sess.ID, 2, "Email", reconcile.DecisionAccept)
	assert.ErrorIs(t, err, reconcile.ErrNotEligible)

	changes, err := svc.ResolveRecord(sess.ID, 1, reconcile.DecisionReject)
	require.NoError(t, err)
	assert.Len(t, changes, 2)

	assert.True(t, sess.Info().Complete)

	records, err := svc.Records(sess.ID, true)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].RecordComparisonID)

	_, err = svc.Resolve("missing", 1, "Email", reconcile.DecisionAccept)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestService_SaveAndReload(t *testing.T) {
	svc, db := newTestService(t, nil, 0)
	ctx := context.Background()

	sess, err := svc.Open(ctx, nil)
	require.NoError(t, err)

	_, err = svc.Resolve(sess.ID, 1, "Email", reconcile.DecisionAccept)
	require.NoError(t, err)
	_, err = svc.Resolve(sess.ID, 3, "Email", reconcile.DecisionReject)
	require.NoError(t, err)

	outcome, err := svc.Save(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Statements)
	assert.Equal(t, 1, outcome.Skipped)
	assert.Empty(t, outcome.Report)

	var tag string
	require.NoError(t, db.Raw("SELECT Email_SelectedSource FROM results WHERE RecordComparisonId = 3").Row().Scan(&tag))
	assert.Equal(t, "Dest", tag)

	reloaded, err := svc.Open(ctx, nil)
	require.NoError(t, err)
	r1, err := svc.Record(reloaded.ID, 1)
	require.NoError(t, err)
	email, _ := r1.Fields.Get("Email")
	phone, _ := r1.Fields.Get("Phone")
	assert.Equal(t, reconcile.StateAccepted, email.State())
	assert.Equal(t, reconcile.StatePending, phone.State())
}

func TestService_SaveInProgress(t *testing.T) {
	svc, _ := newTestService(t, nil, 0)
	sess, err := svc.Open(context.Background(), nil)
	require.NoError(t, err)

	sess.saving.Store(true)
	_, err = svc.Save(context.Background(), sess.ID)
	assert.ErrorIs(t, err, ErrSaveInProgress)

	sess.saving.Store(false)
	_, err = svc.Save(context.Background(), sess.ID)
	assert.NoError(t, err)
}

func TestService_SessionLimit(t *testing.T) {
	svc, _ := newTestService(t, nil, 1)
	ctx := context.Background()

	sess, err := svc.Open(ctx, nil)
	require.NoError(t, err)
	_, err = svc.Open(ctx, nil)
	assert.ErrorIs(t, err, ErrSessionLimit)

	require.NoError(t, svc.Close(sess.ID))
	assert.ErrorIs(t, svc.Close(sess.ID), ErrSessionNotFound)

	_, err = svc.Open(ctx, nil)
	assert.NoError(t, err)
	assert.Len(t, svc.Sessions(), 1)
}

func TestService_OpenMissingTable(t *testing.T) {
	db := setupDB(t)
	svc := NewService(db, reconcile.Config{Table: "nope"}, nil, nil, 0)

	_, err := svc.Open(context.Background(), nil)
	assert.ErrorIs(t, err, reconcile.ErrSchemaUnavailable)
	assert.Empty(t, svc.Sessions())
}

func TestService_SavePublishesReport(t *testing.T) {
	client := new(mocks.Client)
	publisher := report.NewPublisher(client, "bucket", report.Config{Prefix: "reports", Publish: true}, nil)
	svc, _ := newTestService(t, publisher, 0)
	ctx := context.Background()

	client.On("PutObject", mock.Anything, "bucket", mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "reports/run-10/") && strings.HasSuffix(key, ".json")
	}), mock.Anything, mock.Anything, mock.Anything).Return(minio.UploadInfo{}, nil).Once()

	run := int64(10)
	sess, err := svc.Open(ctx, &run)
	require.NoError(t, err)
	_, err = svc.Resolve(sess.ID, 1, "Email", reconcile.DecisionAccept)
	require.NoError(t, err)

	outcome, err := svc.Save(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(outcome.Report, "reports/run-10/"))
	client.AssertExpectations(t)
}

func TestService_PublishFailureKeepsSave(t *testing.T) {
	client := new(mocks.Client)
	publisher := report.NewPublisher(client, "bucket", report.Config{Prefix: "reports", Publish: true}, nil)
	svc, db := newTestService(t, publisher, 0)
	ctx := context.Background()

	client.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, errors.New("connection refused"))

	sess, err := svc.Open(ctx, nil)
	require.NoError(t, err)
	_, err = svc.Resolve(sess.ID, 3, "Email", reconcile.DecisionAccept)
	require.NoError(t, err)

	outcome, err := svc.Save(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, outcome.Report)

	var tag string
	require.NoError(t, db.Raw("SELECT Email_SelectedSource FROM results WHERE RecordComparisonId = 3").Row().Scan(&tag))
	assert.Equal(t, "Accepted", tag)
}

func TestService_ReportsUnavailable(t *testing.T) {
	svc, _ := newTestService(t, nil, 0)
	_, err := svc.Reports(context.Background(), nil)
	assert.ErrorIs(t, err, ErrReportsUnavailable)
	_, err = svc.Report(context.Background(), nil, "x")
	assert.ErrorIs(t, err, ErrReportsUnavailable)
}

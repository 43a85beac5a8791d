package comparison

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"comparison-review/core/reconcile"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupApp(t *testing.T) (*fiber.App, *Service) {
	svc, _ := newTestService(t, nil, 0)
	app := fiber.New()
	NewHandler(svc).RegisterRoutes(app)
	return app, svc
}

func doRequest(t *testing.T, app *fiber.App, method, target string) (int, []byte) {
	req := httptest.NewRequest(method, target, nil)
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func openSession(t *testing.T, app *fiber.App, query string) SessionInfo {
	status, body := doRequest(t, app, http.MethodPost, "/comparison/sessions"+query)
	require.Equal(t, http.StatusCreated, status, string(body))
	var info SessionInfo
	require.NoError(t, json.Unmarshal(body, &info))
	return info
}

func TestHandler_Fields(t *testing.T) {
	app, _ := setupApp(t)

	status, body := doRequest(t, app, http.MethodGet, "/comparison/fields")
	assert.Equal(t, http.StatusOK, status)

	var resp struct {
		Table  string   `json:"table"`
		Fields []string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, testTable, resp.Table)
	assert.Equal(t, []string{"Email", "Phone"}, resp.Fields)
}

func TestHandler_SessionFlow(t *testing.T) {
	app, _ := setupApp(t)

	info := openSession(t, app, "?run=10")
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, 2, info.Summary.Records)
	base := "/comparison/sessions/" + info.ID

	status, body := doRequest(t, app, http.MethodPost, base+"/records/1/fields/Email/accept")
	require.Equal(t, http.StatusOK, status, string(body))
	var change reconcile.Change
	require.NoError(t, json.Unmarshal(body, &change))
	assert.Equal(t, "a@new", change.SelectedValue)
	assert.Equal(t, "Source", change.SelectedSource)

	status, body = doRequest(t, app, http.MethodGet, base+"/records/1")
	require.Equal(t, http.StatusOK, status)
	var record struct {
		RecordComparisonID int64 `json:"record_comparison_id"`
		Fields             []struct {
			Name          string `json:"name"`
			State         string `json:"state"`
			HasDifference bool   `json:"has_difference"`
		} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(body, &record))
	require.Len(t, record.Fields, 2)
	assert.Equal(t, "Email", record.Fields[0].Name)
	assert.Equal(t, "accepted", record.Fields[0].State)
	assert.Equal(t, "pending", record.Fields[1].State)

	status, body = doRequest(t, app, http.MethodPost, base+"/records/1/reject")
	require.Equal(t, http.StatusOK, status)
	var changes []reconcile.Change
	require.NoError(t, json.Unmarshal(body, &changes))
	assert.Len(t, changes, 2)

	status, body = doRequest(t, app, http.MethodPost, base+"/save")
	require.Equal(t, http.StatusOK, status, string(body))
	var outcome SaveOutcome
	require.NoError(t, json.Unmarshal(body, &outcome))
	assert.Equal(t, 1, outcome.Statements)
	assert.Equal(t, 2, outcome.Fields)

	status, body = doRequest(t, app, http.MethodGet, base)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &info))
	assert.True(t, info.Complete)

	status, _ = doRequest(t, app, http.MethodGet, base+"/records?differing=true")
	assert.Equal(t, http.StatusOK, status)

	status, _ = doRequest(t, app, http.MethodDelete, base)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = doRequest(t, app, http.MethodGet, base)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHandler_Errors(t *testing.T) {
	app, _ := setupApp(t)
	info := openSession(t, app, "")
	base := "/comparison/sessions/" + info.ID

	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{"Bad Run", http.MethodPost, "/comparison/sessions?run=abc", http.StatusBadRequest},
		{"Unknown Session", http.MethodGet, "/comparison/sessions/nope", http.StatusNotFound},
		{"Bad Record Id", http.MethodGet, base + "/records/x", http.StatusBadRequest},
		{"Unknown Record", http.MethodGet, base + "/records/99", http.StatusNotFound},
		{"Unknown Field", http.MethodPost, base + "/records/1/fields/Fax/accept", http.StatusNotFound},
		{"Not Eligible", http.MethodPost, base + "/records/2/fields/Email/accept", http.StatusUnprocessableEntity},
		{"Unknown Decision", http.MethodPost, base + "/records/1/fields/Email/maybe", http.StatusBadRequest},
		{"Unknown Bulk Decision", http.MethodPost, base + "/records/1/maybe", http.StatusBadRequest},
		{"Save Unknown Session", http.MethodPost, "/comparison/sessions/nope/save", http.StatusNotFound},
		{"Reports Unavailable", http.MethodGet, "/comparison/reports", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doRequest(t, app, tt.method, tt.target)
			assert.Equal(t, tt.want, status, string(body))

			var resp map[string]string
			require.NoError(t, json.Unmarshal(body, &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestHandler_SaveConflict(t *testing.T) {
	app, svc := setupApp(t)
	info := openSession(t, app, "")

	sess, err := svc.Session(info.ID)
	require.NoError(t, err)
	sess.saving.Store(true)

	status, _ := doRequest(t, app, http.MethodPost, "/comparison/sessions/"+info.ID+"/save")
	assert.Equal(t, http.StatusConflict, status)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, fiber.StatusNotFound, statusOf(&reconcile.ResolutionError{Err: reconcile.ErrRecordNotFound}))
	assert.Equal(t, fiber.StatusUnprocessableEntity, statusOf(&reconcile.ResolutionError{Err: reconcile.ErrNotEligible}))
	assert.Equal(t, fiber.StatusInternalServerError, statusOf(&reconcile.PersistenceError{Err: errors.New("boom")}))
	assert.Equal(t, fiber.StatusInternalServerError, statusOf(&reconcile.SchemaError{Table: "t", Err: errors.New("gone")}))
	assert.Equal(t, fiber.StatusTooManyRequests, statusOf(ErrSessionLimit))
}

func TestFeature(t *testing.T) {
	feature := NewFeature(nil, reconcile.Config{Table: testTable}, nil, nil, 0)
	assert.Equal(t, "comparison", feature.Name())
	assert.False(t, feature.IsEnabled())

	db := setupDB(t)
	feature = NewFeature(db, reconcile.Config{Table: testTable}, nil, nil, 0)
	assert.True(t, feature.IsEnabled())
	assert.NoError(t, feature.Load(fiber.New()))
}

package srvreg

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ahmadzakiakmal/dossierflow/inbox"
	"github.com/ahmadzakiakmal/dossierflow/repository"
	"github.com/ahmadzakiakmal/dossierflow/repository/models"
	"github.com/ahmadzakiakmal/dossierflow/transport"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestRegistry(t *testing.T) (*ServiceRegistry, *inbox.Inbox) {
	t.Helper()
	db, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "srvreg.db"))
	require.NoError(t, err)

	box, err := inbox.Open("", cmtlog.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = box.Close() })

	transports := transport.NewRegistry(cmtlog.NewNopLogger())
	transports.Register(models.MethodPhysicalMedia, &transport.PhysicalMedia{})

	clock := func() time.Time { return t0 }
	repo := repository.NewRepository(db, repository.Options{
		Notifier:   box,
		Dispatcher: transports,
		Clock:      clock,
	})
	require.NoError(t, repo.Migrate())
	require.NoError(t, repo.Seed())

	sr := NewServiceRegistry(repo, box, cmtlog.NewNopLogger(), clock)
	sr.RegisterDefaultServices()
	return sr, box
}

func call(t *testing.T, sr *ServiceRegistry, method, path, operatorID, body string) *Response {
	t.Helper()
	var httpReq *http.Request
	if body == "" {
		httpReq = httptest.NewRequest(method, path, nil)
	} else {
		httpReq = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if operatorID != "" {
		httpReq.Header.Set(OperatorHeader, operatorID)
	}
	req, err := ConvertHttpRequest(httpReq, "req-test")
	require.NoError(t, err)
	resp, _ := req.GenerateResponse(sr)
	require.NotNil(t, resp)
	return resp
}

func decode(t *testing.T, resp *Response, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(resp.Body), v), resp.Body)
}

func TestMatchPath(t *testing.T) {
	tests := []struct {
		pattern, path string
		want          bool
	}{
		{"/api/folders/:id", "/api/folders/abc", true},
		{"/api/folders/:id", "/api/folders/", false},
		{"/api/folders/:id/step-back", "/api/folders/abc/step-back", true},
		{"/api/folders/:id/step-back", "/api/folders/abc/deliver", false},
		{"/api/journal/:entity/:id", "/api/journal/folder/abc", true},
		{"/api/intakes/:id", "/api/intakes/abc/validate", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchPath(tt.pattern, tt.path), "%s vs %s", tt.pattern, tt.path)
	}
}

func TestConvertHttpRequest(t *testing.T) {
	httpReq := httptest.NewRequest(http.MethodPost, "/api/kpi?period=weekly", strings.NewReader(`{ "a" : 1 }`))
	httpReq.Header.Set("X-Operator-ID", " OPR-001 ")

	req, err := ConvertHttpRequest(httpReq, "abc")
	require.NoError(t, err)
	assert.Equal(t, "/api/kpi", req.Path)
	assert.Equal(t, "weekly", req.Query["period"])
	assert.Equal(t, `{"a":1}`, req.Body)
	assert.Equal(t, "OPR-001", req.OperatorID())
	assert.NotNil(t, req.Context())
}

func TestIntakeLifecycleOverHTTP(t *testing.T) {
	sr, box := newTestRegistry(t)

	resp := call(t, sr, http.MethodPost, "/api/intakes", "OPR-001",
		`{"delivery_slip":"BL-42","declared_count":3,"auto_validate":true}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, resp.Body)
	var intake models.Intake
	decode(t, resp, &intake)
	assert.Equal(t, models.IntakeValidated, intake.State)
	require.Len(t, intake.Folders, 3)

	resp = call(t, sr, http.MethodGet, "/api/folders?intake_id="+intake.ID, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var folders []models.Folder
	decode(t, resp, &folders)
	assert.Len(t, folders, 3)

	resp = call(t, sr, http.MethodPost, "/api/intakes/"+intake.ID+"/start", "OPR-001", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)
	decode(t, resp, &intake)
	assert.Equal(t, models.IntakeInProgress, intake.State)

	folderID := intake.Folders[0].ID
	resp = call(t, sr, http.MethodGet, "/api/folders/"+folderID, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var folder models.Folder
	decode(t, resp, &folder)
	assert.Equal(t, models.FolderProcessing, folder.State)

	resp = call(t, sr, http.MethodPost, "/api/folders/"+folderID+"/processing", "OPR-002",
		`{"radical":"RAD001","agency_code":"AG01","pieces_processed":12}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, resp.Body)
	var processing models.Processing
	decode(t, resp, &processing)
	assert.Equal(t, models.StageInProgress, processing.State)

	resp = call(t, sr, http.MethodPost, "/api/processing/"+processing.ID+"/pause", "OPR-002", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)
	decode(t, resp, &processing)
	assert.Equal(t, models.StagePaused, processing.State)

	resp = call(t, sr, http.MethodGet, "/api/processing/"+processing.ID, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// reverting to draft is refused once folders left reception
	resp = call(t, sr, http.MethodPost, "/api/intakes/"+intake.ID+"/draft", "OPR-001", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var body errorBody
	decode(t, resp, &body)
	assert.Equal(t, "INVALID_STATE", body.Code)

	resp = call(t, sr, http.MethodGet, "/api/inbox/OPR-002", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var mail inboxResponse
	decode(t, resp, &mail)
	assert.Len(t, mail.Messages, 3)
	assert.EqualValues(t, 3, mail.Unread)

	resp = call(t, sr, http.MethodPost, "/api/inbox/OPR-002/"+mail.Messages[0].ID+"/read", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)
	unread, err := box.Unread("OPR-002")
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)

	resp = call(t, sr, http.MethodGet, "/api/journal/folder/"+folderID, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []inbox.Entry
	decode(t, resp, &entries)
	assert.NotEmpty(t, entries)
}

func TestErrorMapping(t *testing.T) {
	sr, _ := newTestRegistry(t)

	tests := []struct {
		name, method, path, operator, body string
		status                             int
	}{
		{"unknown route", http.MethodGet, "/api/unknown", "", "", http.StatusNotFound},
		{"missing folder", http.MethodGet, "/api/folders/nope", "", "", http.StatusNotFound},
		{"missing operator", http.MethodPost, "/api/intakes", "", `{"delivery_slip":"BL-1","declared_count":1}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/intakes", "OPR-001", `{"declared_count":`, http.StatusUnprocessableEntity},
		{"missing slip", http.MethodPost, "/api/intakes", "OPR-001", `{"declared_count":2}`, http.StatusUnprocessableEntity},
		{"too many folders", http.MethodPost, "/api/intakes", "OPR-001", `{"delivery_slip":"BL-1","declared_count":1001}`, http.StatusUnprocessableEntity},
		{"oversized carton", http.MethodPost, "/api/cartons", "OPR-003", `{"capacity":500}`, http.StatusUnprocessableEntity},
		{"unknown period", http.MethodGet, "/api/kpi?period=hourly", "", "", http.StatusUnprocessableEntity},
		{"half range", http.MethodGet, "/api/kpi?from=2026-03-01", "", "", http.StatusBadRequest},
		{"unknown operator group", http.MethodPost, "/api/operators", "", `{"name":"X","group":"pilots"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, sr, tt.method, tt.path, tt.operator, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, resp.Body)
			assert.Equal(t, "application/json", resp.Headers["Content-Type"])
		})
	}
}

func TestKPIAndCartonEndpoints(t *testing.T) {
	sr, _ := newTestRegistry(t)

	resp := call(t, sr, http.MethodPost, "/api/cartons", "OPR-003", `{"number":"C-009","kind":"loan"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, resp.Body)
	var carton models.Carton
	decode(t, resp, &carton)
	assert.Equal(t, 50, carton.Capacity)

	resp = call(t, sr, http.MethodPost, "/api/cartons/"+carton.ID+"/increment", "OPR-003", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)
	decode(t, resp, &carton)
	assert.Equal(t, "C-010", carton.Number)

	resp = call(t, sr, http.MethodPost, "/api/cartons/"+carton.ID+"/folders", "OPR-003", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = call(t, sr, http.MethodGet, "/api/kpi?period=monthly", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)
	var report repository.KPIReport
	decode(t, resp, &report)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), report.Period.Start.UTC())

	resp = call(t, sr, http.MethodGet, "/api/kpi?from=2026-02-01&to=2026-02-28", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)

	resp = call(t, sr, http.MethodGet, "/api/deliveries/statistics", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)
	var stats repository.DeliveryStatistics
	decode(t, resp, &stats)
	assert.Zero(t, stats.Total)
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/garyjia/erp-workflow/internal/application/service"
	"github.com/garyjia/erp-workflow/internal/domain/entity"
	"github.com/garyjia/erp-workflow/internal/domain/form"
	"github.com/garyjia/erp-workflow/internal/infrastructure/export"
	"github.com/garyjia/erp-workflow/internal/infrastructure/persistence/memory"
	apperrors "github.com/garyjia/erp-workflow/internal/pkg/errors"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

const validExpense = `{"title":"出張費","items":[{"date":"2026-03-30","description":"新幹線","amount":14000}]}`

type testEnv struct {
	server *Server
	routes service.RouteService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	require.NoError(t, memory.SeedApplicationCodes(ctx, store))
	users := memory.NewUserRepository(store)
	for _, u := range []*entity.User{{ID: "U1", Name: "田中 部長"}, {ID: "U2", Name: "山本 社長"}, {ID: "U9", Name: "佐藤 花子"}} {
		require.NoError(t, users.Upsert(ctx, u))
	}

	logger := nopLogger{}
	apps := memory.NewApplicationRepository(store)
	routeRepo := memory.NewRouteRepository(store)
	codes := memory.NewApplicationCodeRepository(store)
	history := memory.NewHistoryRepository(store)

	routes := service.NewRouteService(routeRepo, logger)
	catalog := service.NewCatalogService(codes, form.DefaultRegistry(), logger)
	decision := service.NewDecisionService(apps, history, routes, catalog, memory.NewTxManager(store),
		nil, service.DecisionConfig{SnapshotRoutes: true}, logger)
	query := service.NewQueryService(apps, users, codes, routeRepo, history, logger)

	server := NewServer(DefaultServerConfig(), Services{
		Routes:   routes,
		Catalog:  catalog,
		Decision: decision,
		Query:    query,
		Exporter: export.NewXLSXExporter("", nil),
	}, logger)
	return &testEnv{server: server, routes: routes}
}

func (e *testEnv) do(t *testing.T, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

type decoded struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Error   string          `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) decoded {
	t.Helper()
	var d decoded
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	return d
}

func (e *testEnv) submit(t *testing.T, applicant string) entity.Application {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/applications", applicant, map[string]interface{}{
		"application_code_id": "appcode-exp",
		"form_data":           json.RawMessage(validExpense),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var app entity.Application
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &app))
	return app
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestAPI_RequiresUserHeader(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/applications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperrors.CodeUnauthenticated, decode(t, w).Code)
}

func TestSubmit_NoRoutesConfigured(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/applications", "U9", map[string]interface{}{
		"application_code_id": "appcode-exp",
		"form_data":           json.RawMessage(validExpense),
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperrors.CodeNoRoutesConfigured, decode(t, w).Code)
}

func TestSubmitApproveFlow(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.routes.CreateRoute(context.Background(), "部長→社長", []string{"U1", "U2"})
	require.NoError(t, err)

	app := env.submit(t, "U9")
	assert.Equal(t, entity.StatusPendingApproval, app.Status)
	assert.Equal(t, "U1", app.ApproverID)

	// U2 is not the current approver
	w := env.do(t, http.MethodPost, "/api/applications/"+app.ID+"/approve", "U2", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	body := decode(t, w)
	assert.Equal(t, apperrors.CodeUnauthorizedApprover, body.Code)
	assert.Equal(t, apperrors.MessageNoLongerActionable, body.Error)

	w = env.do(t, http.MethodPost, "/api/applications/"+app.ID+"/approve", "U1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/applications?view=pending", "U2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending []entity.ApplicationWithDetails
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, app.ID, pending[0].ID)

	w = env.do(t, http.MethodPost, "/api/applications/"+app.ID+"/approve", "U2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var final entity.Application
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &final))
	assert.Equal(t, entity.StatusApproved, final.Status)

	// A repeated click lands on a terminal application
	w = env.do(t, http.MethodPost, "/api/applications/"+app.ID+"/approve", "U2", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperrors.CodeInvalidState, decode(t, w).Code)

	w = env.do(t, http.MethodGet, "/api/applications/"+app.ID+"/history", "U9", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []entity.ApprovalHistory
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &history))
	assert.Len(t, history, 3)
}

func TestReject_RequiresReason(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.routes.CreateRoute(context.Background(), "部長承認", []string{"U1"})
	require.NoError(t, err)
	app := env.submit(t, "U9")

	w := env.do(t, http.MethodPost, "/api/applications/"+app.ID+"/reject", "U1", map[string]string{"reason": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidationFailed, decode(t, w).Code)

	w = env.do(t, http.MethodPost, "/api/applications/"+app.ID+"/reject", "U1", map[string]string{"reason": "領収書がありません"})
	require.Equal(t, http.StatusOK, w.Code)
	var rejected entity.Application
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &rejected))
	assert.Equal(t, entity.StatusRejected, rejected.Status)
	assert.Equal(t, "領収書がありません", rejected.RejectionReason)
}

func TestSubmit_InvalidFormReportsFields(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.routes.CreateRoute(context.Background(), "部長承認", []string{"U1"})
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/api/applications", "U9", map[string]interface{}{
		"application_code_id": "appcode-exp",
		"form_data":           json.RawMessage(`{"title":"","items":[]}`),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"details"`)
}

func TestGetApplication_NotFound(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/applications/missing", "U9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CodeApplicationNotFound, decode(t, w).Code)
}

func TestListApplications_UnknownView(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/applications?view=archive", "U9", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoutes_CreateAndLookup(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/routes", "U1", map[string]interface{}{
		"name":         "部長承認",
		"approver_ids": []string{"U1"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var route entity.ApprovalRoute
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &route))

	w = env.do(t, http.MethodGet, "/api/routes/by-name/部長承認", "U1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPut, "/api/routes/"+route.ID+"/steps", "U1", map[string]interface{}{
		"approver_ids": []string{"U1", "U2"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/routes/nope", "U1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CodeRouteNotFound, decode(t, w).Code)

	w = env.do(t, http.MethodPost, "/api/routes", "U1", map[string]interface{}{"name": "空"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportApplications(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.routes.CreateRoute(context.Background(), "部長承認", []string{"U1"})
	require.NoError(t, err)
	app := env.submit(t, "U9")
	w := env.do(t, http.MethodPost, "/api/applications/"+app.ID+"/approve", "U1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/applications/export?view=completed", "U9", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	// title, header, one data row
	assert.Len(t, rows, 3)
}

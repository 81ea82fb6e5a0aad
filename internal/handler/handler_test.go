package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/precasttrack/backend/internal/audit"
	"github.com/precasttrack/backend/internal/handler"
	"github.com/precasttrack/backend/internal/model"
	"github.com/precasttrack/backend/internal/router"
	"github.com/precasttrack/backend/internal/service"
	"github.com/precasttrack/backend/internal/sse"
	"github.com/precasttrack/backend/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "handler-test-secret"

type testServer struct {
	engine *gin.Engine
	db     *gorm.DB
	token  string
	user   *model.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Project{}, &model.Unit{}, &model.Activity{},
		&model.UnitProgress{}, &model.ChecklistTemplateItem{}, &model.Checkpoint{},
		&model.ChecklistItemInstance{}, &model.QualityIssue{}, &model.IssueComment{},
		&model.Attachment{}, &model.OperationLog{},
	))

	auditor := audit.NewRecorder(db)
	hub := sse.NewHub(nil)

	authService := service.NewAuthService(db, testSecret, 1)
	unitService := service.NewUnitService(db, auditor, "0123456789abcdef")
	catalogService := service.NewCatalogService(db, auditor)
	checkpointService := service.NewCheckpointService(db, auditor)
	reviewService := service.NewReviewService(db, auditor, model.IssueNonConformance, model.SeverityMinor)
	issueService := service.NewIssueService(db, auditor)
	gateService := service.NewGateService(db, nil, checkpointService, auditor)

	engine := gin.New()
	router.Setup(engine, router.Deps{
		DB:                db,
		JWTSecret:         testSecret,
		AuthHandler:       handler.NewAuthHandler(authService),
		UnitHandler:       handler.NewUnitHandler(unitService, gateService, hub),
		CheckpointHandler: handler.NewCheckpointHandler(checkpointService, reviewService, unitService),
		IssueHandler:      handler.NewIssueHandler(issueService),
		CatalogHandler:    handler.NewCatalogHandler(catalogService),
	})

	user, err := authService.CreateUser(service.CreateUserInput{
		Email:    "qc@example.com",
		Password: "password1",
		Name:     "Dana",
		Role:     model.RoleQC,
		IsAdmin:  true,
	})
	require.NoError(t, err)
	token, _, err := jwt.GenerateToken(testSecret, user.ID, user.Role, user.IsAdmin, 1)
	require.NoError(t, err)

	return &testServer{engine: engine, db: db, token: token, user: user}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return w, env
}

func TestLoginEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	body := bytes.NewBufferString(`{"email":"qc@example.com","password":"password1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	s.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, 0, env.Code)
	assert.Contains(t, string(env.Data), "token")

	w = httptest.NewRecorder()
	body = bytes.NewBufferString(`{"email":"qc@example.com","password":"nope"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/units/1", nil)
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/units/1", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestErrorEnvelopeMapping(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodGet, "/api/v1/checkpoints/9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, service.CodeCheckpointNotFound, env.Code)
}

func TestCheckpointReviewFlow(t *testing.T) {
	s := newTestServer(t)

	_, env := s.do(t, http.MethodPost, "/api/v1/projects", gin.H{"code": "PRJ-1", "name": "Harbor Towers"})
	require.Equal(t, 0, env.Code)
	var project struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &project))

	_, env = s.do(t, http.MethodPost, "/api/v1/projects/1/units", gin.H{"code": "PNL-001", "name": "Facade panel"})
	require.Equal(t, 0, env.Code)
	var unit struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &unit))

	_, env = s.do(t, http.MethodPost, "/api/v1/admin/catalog", gin.H{
		"category": "dimensional", "sequence": 1, "description": "cover depth 25mm",
	})
	require.Equal(t, 0, env.Code)
	var tmpl struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tmpl))

	_, env = s.do(t, http.MethodPost, "/api/v1/units/1/checkpoints", gin.H{
		"code": "WIR-1", "name": "Rebar inspection",
	})
	require.Equal(t, 0, env.Code)
	var cp struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &cp))

	_, env = s.do(t, http.MethodPost, "/api/v1/checkpoints/1/items", gin.H{
		"template_item_ids": []uint{tmpl.ID},
	})
	require.Equal(t, 0, env.Code)
	var items []struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)

	w, env := s.do(t, http.MethodPost, "/api/v1/checkpoints/1/review", gin.H{
		"items":           []gin.H{{"item_id": items[0].ID, "status": "fail", "remarks": "cover 18mm"}},
		"overall_comment": "insufficient cover",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 0, env.Code)
	var result struct {
		Status        string `json:"status"`
		StatusCode    int    `json:"status_code"`
		CreatedIssues []struct {
			ID uint `json:"id"`
		} `json:"created_issues"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "rejected", result.Status)
	assert.Len(t, result.CreatedIssues, 1)

	// a second review of the same checkpoint conflicts
	w, env = s.do(t, http.MethodPost, "/api/v1/checkpoints/1/review", gin.H{
		"items": []gin.H{{"item_id": items[0].ID, "status": "pass"}},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, service.CodeCheckpointFinalized, env.Code)

	// the failing item raised an issue that blocks nothing but is listed
	_, env = s.do(t, http.MethodGet, "/api/v1/units/1/issues", nil)
	require.Equal(t, 0, env.Code)
	var issues []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &issues))
	assert.Len(t, issues, 1)
}

func TestGateEndpoints(t *testing.T) {
	s := newTestServer(t)

	_, env := s.do(t, http.MethodPost, "/api/v1/projects", gin.H{"code": "PRJ-1", "name": "Harbor Towers"})
	require.Equal(t, 0, env.Code)
	_, env = s.do(t, http.MethodPost, "/api/v1/projects/1/units", gin.H{"code": "PNL-001"})
	require.Equal(t, 0, env.Code)
	_, env = s.do(t, http.MethodPost, "/api/v1/admin/activities", gin.H{
		"name": "Rebar fixing", "sequence": 1, "requires_inspection": true, "checkpoint_code": "WIR-1",
	})
	require.Equal(t, 0, env.Code)

	// progress at the gate auto-creates the checkpoint
	_, env = s.do(t, http.MethodPost, "/api/v1/units/1/progress", gin.H{"activity_id": 1, "position": "bed-3"})
	require.Equal(t, 0, env.Code)
	assert.Contains(t, string(env.Data), "WIR-1")

	w, env := s.do(t, http.MethodGet, "/api/v1/units/1/can-complete/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var decision struct {
		Allowed       bool     `json:"allowed"`
		BlockingCodes []string `json:"blocking_codes"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &decision))
	assert.False(t, decision.Allowed)
	assert.Equal(t, []string{"WIR-1"}, decision.BlockingCodes)

	w, env = s.do(t, http.MethodPost, "/api/v1/units/1/complete/1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, service.CodeGateBlocked, env.Code)
}

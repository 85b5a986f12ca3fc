package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/techvara/crm/internal/auth"
	"github.com/techvara/crm/internal/database/testutil"
	"github.com/techvara/crm/internal/models"
	"github.com/techvara/crm/internal/services"
	"github.com/techvara/crm/pkg/crypto"
	"github.com/techvara/crm/pkg/mail"
)

type nullMailer struct{}

func (nullMailer) Send(context.Context, mail.Message) error { return nil }

type testEnv struct {
	db     *gorm.DB
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)

	jwt, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret", Issuer: "techvara-crm"})
	require.NoError(t, err)

	mailer := nullMailer{}
	router := NewRouter(Dependencies{
		DB:         db,
		JWT:        jwt,
		Auth:       services.NewAuthService(db, jwt),
		Users:      services.NewUserService(db, mailer),
		Leads:      services.NewLeadService(db),
		Proposals:  services.NewProposalService(db, mailer, "https://crm.example.com"),
		Agreements: services.NewAgreementService(db),
		Projects:   services.NewProjectService(db),
	})

	return &testEnv{db: db, router: router}
}

func (e *testEnv) seedUser(t *testing.T, username string, role models.UserRole) *models.User {
	t.Helper()

	hash, err := crypto.HashPassword("secret12345")
	require.NoError(t, err)

	user := &models.User{
		Name:     "Test User",
		Username: username,
		Email:    username + "@example.com",
		Password: hash,
		Role:     role,
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) login(t *testing.T, username string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": username,
		"password": "secret12345",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.AccessToken)
	return body.Data.AccessToken
}

func (e *testEnv) do(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestProposalWorkflowEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", models.RoleAdmin)
	token := env.login(t, "admin")

	rec := env.do(t, http.MethodPost, "/api/leads", token, gin.H{
		"name":  "Asha Traders",
		"email": "asha@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var leadBody struct {
		Data models.Lead `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &leadBody))
	leadID := leadBody.Data.ID

	rec = env.do(t, http.MethodPost, "/api/proposals/send/"+leadID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The response token never appears in API payloads.
	require.NotContains(t, rec.Body.String(), "response_token")

	var proposal models.Proposal
	require.NoError(t, env.db.First(&proposal, "lead_id = ?", leadID).Error)
	require.Len(t, proposal.ResponseToken, 48)

	rec = env.do(t, http.MethodGet, "/proposal/view/"+proposal.ResponseToken, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/proposal/accept/"+proposal.ResponseToken, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, env.db.First(&proposal, "lead_id = ?", leadID).Error)
	require.Equal(t, models.ProposalAccepted, proposal.Status)
	require.NotNil(t, proposal.AcceptedAt)

	// The recipient can change their mind through the same link.
	rec = env.do(t, http.MethodGet, "/proposal/reject/"+proposal.ResponseToken, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, env.db.First(&proposal, "lead_id = ?", leadID).Error)
	require.Equal(t, models.ProposalRejected, proposal.Status)
	require.Nil(t, proposal.AcceptedAt)
	require.NotNil(t, proposal.RejectedAt)
}

func TestAdminCanDraftProposal(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", models.RoleAdmin)
	token := env.login(t, "admin")

	rec := env.do(t, http.MethodPost, "/api/leads", token, gin.H{
		"name":  "Asha Traders",
		"email": "asha@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var leadBody struct {
		Data models.Lead `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &leadBody))

	rec = env.do(t, http.MethodPost, "/api/proposals", token, gin.H{"lead_id": leadBody.Data.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	var proposal models.Proposal
	require.NoError(t, env.db.First(&proposal, "lead_id = ?", leadBody.Data.ID).Error)
	require.False(t, proposal.Sent)
	require.Empty(t, proposal.ResponseToken)

	// Drafting twice for the same lead conflicts.
	rec = env.do(t, http.MethodPost, "/api/proposals", token, gin.H{"lead_id": leadBody.Data.ID})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestPublicDecisionUnknownToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/proposal/accept/deadbeefdeadbeef", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIRequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/leads", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWorkerCannotReachAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "worker", models.RoleWorker)
	token := env.login(t, "worker")

	rec := env.do(t, http.MethodGet, "/api/users", token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/proposals", token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Worker-scoped routes stay reachable.
	rec = env.do(t, http.MethodGet, "/api/leads", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSendProposalWithoutLeadEmail(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", models.RoleAdmin)
	token := env.login(t, "admin")

	rec := env.do(t, http.MethodPost, "/api/leads", token, gin.H{"name": "No Email"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var leadBody struct {
		Data models.Lead `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &leadBody))

	rec = env.do(t, http.MethodPost, "/api/proposals/send/"+leadBody.Data.ID, token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var count int64
	require.NoError(t, env.db.Model(&models.Proposal{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

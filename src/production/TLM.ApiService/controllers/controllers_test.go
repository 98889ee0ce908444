package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	auth "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/implementation/auth"
	"gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/implementation/deviceauth"
	jwtservice "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/implementation/jwt"
	"gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/implementation/scope"
	"gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/middleware"
	config "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Config"
	logger "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Logger"
	api_models "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Models/api"
	implementation "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Repository/Implementation"
)

const (
	testAdminToken  = "admin-token-for-tests"
	testDeviceToken = "shared-device-token"
	testJWTSecret   = "unit-test-jwt-secret"
)

type testServer struct {
	router        *gin.Engine
	telemetryRepo *implementation.MemoryTelemetryRepository
	userRepo      *implementation.MemoryUserRepository
	authService   *auth.AuthService
}

func newTestServer(t *testing.T, defaultVisibility string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	telemetryRepo := implementation.NewMemoryTelemetryRepository()
	userRepo := implementation.NewMemoryUserRepository()

	jwtService := jwtservice.NewService(api_models.Config{
		SecretKey:     testJWTSecret,
		TokenDuration: 12 * time.Hour,
	})
	authService := auth.NewAuthService(userRepo, jwtService)
	scopeService := scope.NewService(defaultVisibility)
	deviceAuth := deviceauth.NewService(&config.AuthConfig{
		DeviceAuthMode: config.DeviceAuthShared,
		DeviceToken:    testDeviceToken,
	}, telemetryRepo)
	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	log := logger.NewLogger(&config.LoggingConfig{Level: "error", Format: "json", Output: "stderr"})

	router := gin.New()
	NewHealthController().RegisterRoutes(router)
	NewAuthController(authService, log).RegisterRoutes(router)
	NewTelemetryController(telemetryRepo, deviceAuth, scopeService, log, authMiddleware).RegisterRoutes(router)
	NewAdminController(telemetryRepo, userRepo, authService, jwtService, log, testAdminToken).RegisterRoutes(router)

	return &testServer{
		router:        router,
		telemetryRepo: telemetryRepo,
		userRepo:      userRepo,
		authService:   authService,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (s *testServer) createUser(t *testing.T, email, password, role string) {
	t.Helper()
	_, err := s.authService.UpsertUser(context.Background(), email, password, role)
	require.NoError(t, err)
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/login",
		gin.H{"email": email, "password": password}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	token, _ := decodeJSON(t, rec)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, config.VisibilityAll)

	rec := s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeJSON(t, rec)["status"])
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestServer(t, config.VisibilityAll)
	s.createUser(t, "ops@example.com", "correct horse", "")

	wrongPassword := s.do(t, http.MethodPost, "/auth/login",
		gin.H{"email": "ops@example.com", "password": "wrong"}, nil)
	unknownUser := s.do(t, http.MethodPost, "/auth/login",
		gin.H{"email": "ghost@example.com", "password": "wrong"}, nil)

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.Code)
	// Unknown account and wrong password must be indistinguishable.
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())

	missingFields := s.do(t, http.MethodPost, "/auth/login", gin.H{"email": "ops@example.com"}, nil)
	assert.Equal(t, http.StatusBadRequest, missingFields.Code)
}

func TestIngestRequiresDeviceToken(t *testing.T) {
	s := newTestServer(t, config.VisibilityAll)

	report := gin.H{"id": "dev-1", "lat": 19.07, "lon": 72.88}

	noToken := s.do(t, http.MethodPost, "/ingest", report, nil)
	assert.Equal(t, http.StatusUnauthorized, noToken.Code)

	badToken := s.do(t, http.MethodPost, "/ingest", report,
		map[string]string{"X-Device-Token": "nope"})
	assert.Equal(t, http.StatusUnauthorized, badToken.Code)

	goodToken := s.do(t, http.MethodPost, "/ingest", report,
		map[string]string{"X-Device-Token": testDeviceToken})
	assert.Equal(t, http.StatusOK, goodToken.Code)
	assert.Equal(t, true, decodeJSON(t, goodToken)["success"])
}

func TestIngestRejectsMissingDeviceID(t *testing.T) {
	s := newTestServer(t, config.VisibilityAll)

	rec := s.do(t, http.MethodPost, "/ingest", gin.H{"lat": 19.07},
		map[string]string{"X-Device-Token": testDeviceToken})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestMergesPartialReports(t *testing.T) {
	s := newTestServer(t, config.VisibilityAll)
	deviceHeaders := map[string]string{"X-Device-Token": testDeviceToken}

	first := s.do(t, http.MethodPost, "/ingest",
		gin.H{"id": "dev-1", "lat": 19.07, "lon": 72.88, "soc": 78, "ts": 1700000000}, deviceHeaders)
	require.Equal(t, http.StatusOK, first.Code)

	second := s.do(t, http.MethodPost, "/ingest",
		gin.H{"id": "dev-1", "lat": 19.08, "lon": 72.89, "ts": 1700000060}, deviceHeaders)
	require.Equal(t, http.StatusOK, second.Code)

	rec := s.do(t, http.MethodGet, "/latest", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var devices []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &devices))
	require.Len(t, devices, 1)
	assert.Equal(t, "dev-1", devices[0]["device_id"])
	assert.Equal(t, 19.08, devices[0]["lat"])
	assert.Equal(t, 72.89, devices[0]["lon"])
	assert.Equal(t, float64(78), devices[0]["soc"])
	assert.Equal(t, float64(1700000060), devices[0]["ts"])
}

func TestIngestNormalizesMillisecondTimestamps(t *testing.T) {
	s := newTestServer(t, config.VisibilityAll)

	rec := s.do(t, http.MethodPost, "/ingest",
		gin.H{"id": "dev-1", "ts": 1700000000000},
		map[string]string{"X-Device-Token": testDeviceToken})
	require.Equal(t, http.StatusOK, rec.Code)

	device, err := s.telemetryRepo.GetDevice(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), device.LastReportTS)
}

func TestLatestScopesByIdentity(t *testing.T) {
	s := newTestServer(t, config.VisibilityAll)
	adminHeaders := map[string]string{"X-Admin-Token": testAdminToken}

	s.createUser(t, "owner@example.com", "pw-owner", "")
	s.createUser(t, "other@example.com", "pw-other", "")
	s.createUser(t, "root@example.com", "pw-root", "admin")

	for _, id := range []string{"d1", "d2"} {
		rec := s.do(t, http.MethodPost, "/ingest", gin.H{"id": id},
			map[string]string{"X-Device-Token": testDeviceToken})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assign := s.do(t, http.MethodPost, "/admin/devices/assign",
		gin.H{"email": "owner@example.com", "device_id": "d1"}, adminHeaders)
	require.Equal(t, http.StatusOK, assign.Code)

	listFor := func(token string) []map[string]any {
		headers := map[string]string{}
		if token != "" {
			headers["Authorization"] = "Bearer " + token
		}
		rec := s.do(t, http.MethodGet, "/latest", nil, headers)
		require.Equal(t, http.StatusOK, rec.Code)
		var devices []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &devices))
		return devices
	}

	ownerDevices := listFor(s.login(t, "owner@example.com", "pw-owner"))
	require.Len(t, ownerDevices, 1)
	assert.Equal(t, "d1", ownerDevices[0]["device_id"])

	assert.Empty(t, listFor(s.login(t, "other@example.com", "pw-other")))
	assert.Len(t, listFor(s.login(t, "root@example.com", "pw-root")), 2)

	// Anonymous callers fall back to the default visibility.
	assert.Len(t, listFor(""), 2)

	// A garbage token is treated as no identity, not rejected.
	assert.Len(t, listFor("not.a.token"), 2)
}

func TestLatestDefaultVisibilityNone(t *testing.T) {
	s := newTestServer(t, config.VisibilityNone)

	rec := s.do(t, http.MethodPost, "/ingest", gin.H{"id": "d1"},
		map[string]string{"X-Device-Token": testDeviceToken})
	require.Equal(t, http.StatusOK, rec.Code)

	latest := s.do(t, http.MethodGet, "/latest", nil, nil)
	require.Equal(t, http.StatusOK, latest.Code)
	assert.JSONEq(t, "[]", latest.Body.String())
}

func TestAdminRoutesRequireAdminToken(t *testing.T) {
	s := newTestServer(t, config.VisibilityAll)

	missing := s.do(t, http.MethodGet, "/admin/check", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, missing.Code)

	wrong := s.do(t, http.MethodGet, "/admin/check", nil,
		map[string]string{"X-Admin-Token": "nope"})
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)

	// Surrounding whitespace in the header is tolerated.
	padded := s.do(t, http.MethodGet, "/admin/check", nil,
		map[string]string{"X-Admin-Token": "  " + testAdminToken + " "})
	assert.Equal(t, http.StatusOK, padded.Code)
}

func TestAdminVerify(t *testing.T) {
	s := newTestServer(t, config.VisibilityAll)
	adminHeaders := map[string]string{"X-Admin-Token": testAdminToken}

	s.createUser(t, "root@example.com", "pw-root", "admin")
	s.createUser(t, "ops@example.com", "pw-ops", "")

	adminToken := s.login(t, "root@example.com", "pw-root")
	memberToken := s.login(t, "ops@example.com", "pw-ops")

	ok := s.do(t, http.MethodGet, "/admin/verify", nil, map[string]string{
		"X-Admin-Token": testAdminToken,
		"Authorization": "Bearer " + adminToken,
	})
	require.Equal(t, http.StatusOK, ok.Code)
	assert.Equal(t, "root@example.com", decodeJSON(t, ok)["email"])

	memberRejected := s.do(t, http.MethodGet, "/admin/verify", nil, map[string]string{
		"X-Admin-Token": testAdminToken,
		"Authorization": "Bearer " + memberToken,
	})
	assert.Equal(t, http.StatusUnauthorized, memberRejected.Code)

	noBearer := s.do(t, http.MethodGet, "/admin/verify", nil, adminHeaders)
	assert.Equal(t, http.StatusUnauthorized, noBearer.Code)
}

func TestAdminUpsertUser(t *testing.T) {
	s := newTestServer(t, config.VisibilityAll)
	adminHeaders := map[string]string{"X-Admin-Token": testAdminToken}

	rec := s.do(t, http.MethodPost, "/admin/users",
		gin.H{"email": "new@example.com", "password": "pw-new"}, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)

	user, ok := decodeJSON(t, rec)["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "new@example.com", user["email"])
	assert.Equal(t, "member", user["role"])
	assert.NotEmpty(t, user["user_id"])

	// The created account can log in.
	s.login(t, "new@example.com", "pw-new")

	missing := s.do(t, http.MethodPost, "/admin/users", gin.H{"email": "x@example.com"}, adminHeaders)
	assert.Equal(t, http.StatusBadRequest, missing.Code)
}

func TestAdminCreateAndAssignDevice(t *testing.T) {
	s := newTestServer(t, config.VisibilityAll)
	adminHeaders := map[string]string{"X-Admin-Token": testAdminToken}

	created := s.do(t, http.MethodPost, "/admin/devices",
		gin.H{"device_id": "d1", "name": "north gate", "lat": 19.07, "lon": 72.88}, adminHeaders)
	require.Equal(t, http.StatusOK, created.Code)
	assert.Equal(t, "d1", decodeJSON(t, created)["device_id"])

	s.createUser(t, "owner@example.com", "pw-owner", "")

	assigned := s.do(t, http.MethodPost, "/admin/devices/assign",
		gin.H{"email": "owner@example.com", "device_id": "d1"}, adminHeaders)
	assert.Equal(t, http.StatusOK, assigned.Code)

	unknownUser := s.do(t, http.MethodPost, "/admin/devices/assign",
		gin.H{"email": "ghost@example.com", "device_id": "d1"}, adminHeaders)
	assert.Equal(t, http.StatusNotFound, unknownUser.Code)
	assert.Contains(t, unknownUser.Body.String(), "User not found")

	unknownDevice := s.do(t, http.MethodPost, "/admin/devices/assign",
		gin.H{"email": "owner@example.com", "device_id": "ghost"}, adminHeaders)
	assert.Equal(t, http.StatusNotFound, unknownDevice.Code)
	assert.Contains(t, unknownDevice.Body.String(), "Device not found")
}

func TestAdminSetDeviceSecret(t *testing.T) {
	s := newTestServer(t, config.VisibilityAll)
	adminHeaders := map[string]string{"X-Admin-Token": testAdminToken}

	created := s.do(t, http.MethodPost, "/admin/devices", gin.H{"device_id": "d1"}, adminHeaders)
	require.Equal(t, http.StatusOK, created.Code)

	generated := s.do(t, http.MethodPost, "/admin/devices/secret",
		gin.H{"device_id": "d1"}, adminHeaders)
	require.Equal(t, http.StatusOK, generated.Code)
	body := decodeJSON(t, generated)
	assert.Equal(t, "d1", body["device_id"])
	secret, _ := body["secret"].(string)
	assert.Len(t, secret, 32) // 16 random bytes, hex encoded

	device, err := s.telemetryRepo.GetDevice(context.Background(), "d1")
	require.NoError(t, err)
	require.NotNil(t, device.APITokenHash)
	assert.NotContains(t, *device.APITokenHash, secret)

	supplied := s.do(t, http.MethodPost, "/admin/devices/secret",
		gin.H{"device_id": "d1", "secret": "factory-secret"}, adminHeaders)
	require.Equal(t, http.StatusOK, supplied.Code)
	assert.Equal(t, "factory-secret", decodeJSON(t, supplied)["secret"])

	unknown := s.do(t, http.MethodPost, "/admin/devices/secret",
		gin.H{"device_id": "ghost"}, adminHeaders)
	assert.Equal(t, http.StatusNotFound, unknown.Code)
}

func TestPerDeviceIngestAuthorization(t *testing.T) {
	gin.SetMode(gin.TestMode)

	telemetryRepo := implementation.NewMemoryTelemetryRepository()
	deviceAuth := deviceauth.NewService(&config.AuthConfig{
		DeviceAuthMode: config.DeviceAuthPerDevice,
	}, telemetryRepo)
	jwtService := jwtservice.NewService(api_models.Config{
		SecretKey:     testJWTSecret,
		TokenDuration: 12 * time.Hour,
	})
	scopeService := scope.NewService(config.VisibilityAll)
	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	log := logger.NewLogger(&config.LoggingConfig{Level: "error", Format: "json", Output: "stderr"})

	router := gin.New()
	NewTelemetryController(telemetryRepo, deviceAuth, scopeService, log, authMiddleware).RegisterRoutes(router)
	s := &testServer{router: router, telemetryRepo: telemetryRepo}

	ctx := context.Background()
	require.NoError(t, telemetryRepo.CreateDevice(ctx, "d1", nil, nil, nil))

	// No secret provisioned yet: nothing gets in.
	rec := s.do(t, http.MethodPost, "/ingest", gin.H{"id": "d1"},
		map[string]string{"X-Device-Token": "anything"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	adminCtl := NewAdminController(telemetryRepo, implementation.NewMemoryUserRepository(),
		nil, jwtService, log, testAdminToken)
	adminCtl.RegisterRoutes(router)

	provisioned := s.do(t, http.MethodPost, "/admin/devices/secret",
		gin.H{"device_id": "d1"}, map[string]string{"X-Admin-Token": testAdminToken})
	require.Equal(t, http.StatusOK, provisioned.Code)
	secret, _ := decodeJSON(t, provisioned)["secret"].(string)
	require.NotEmpty(t, secret)

	accepted := s.do(t, http.MethodPost, "/ingest", gin.H{"id": "d1"},
		map[string]string{"X-Device-Token": secret})
	assert.Equal(t, http.StatusOK, accepted.Code)

	// The secret is bound to its device.
	require.NoError(t, telemetryRepo.CreateDevice(ctx, "d2", nil, nil, nil))
	otherDevice := s.do(t, http.MethodPost, "/ingest", gin.H{"id": "d2"},
		map[string]string{"X-Device-Token": secret})
	assert.Equal(t, http.StatusUnauthorized, otherDevice.Code)
}

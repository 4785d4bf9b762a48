package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dekont-api/internal/models"
	appErrors "github.com/noah-isme/dekont-api/pkg/errors"
)

type staticValidator struct {
	claims *models.JWTClaims
	err    error
}

func (v staticValidator) ValidateToken(string) (*models.JWTClaims, error) {
	return v.claims, v.err
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/protected", handlers...)
	return r
}

func doGet(r http.Handler, header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTRequiresBearerToken(t *testing.T) {
	r := newRouter(JWT(staticValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}}))

	assert.Equal(t, http.StatusUnauthorized, doGet(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, doGet(r, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, doGet(r, "Bearer ").Code)
	assert.Equal(t, http.StatusOK, doGet(r, "Bearer token").Code)

	rejecting := newRouter(JWT(staticValidator{err: appErrors.ErrUnauthorized}))
	assert.Equal(t, http.StatusUnauthorized, doGet(rejecting, "Bearer token").Code)
}

func TestRequireRoles(t *testing.T) {
	teacher := staticValidator{claims: &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}}
	super := staticValidator{claims: &models.JWTClaims{UserID: "s1", Role: models.RoleSuperAdmin}}

	assert.Equal(t, http.StatusForbidden, doGet(newRouter(JWT(teacher), Admins()), "Bearer x").Code)
	assert.Equal(t, http.StatusOK, doGet(newRouter(JWT(super), Admins()), "Bearer x").Code)
	assert.Equal(t, http.StatusUnauthorized, doGet(newRouter(Admins()), "").Code)
}

func TestMemoryLimiterFixedWindow(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "k", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := limiter.Allow(ctx, "k", 2, time.Minute)
	assert.False(t, ok)
	ok, _ = limiter.Allow(ctx, "other", 2, time.Minute)
	assert.True(t, ok)

	now = now.Add(61 * time.Second)
	ok, _ = limiter.Allow(ctx, "k", 2, time.Minute)
	assert.True(t, ok)
}

func TestMemoryLimiterDropsExpiredBuckets(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		_, err := limiter.Allow(ctx, "ratelimit:batch:"+ip, 5, time.Minute)
		require.NoError(t, err)
	}
	assert.Len(t, limiter.buckets, 3)

	now = now.Add(2 * time.Minute)
	ok, err := limiter.Allow(ctx, "ratelimit:batch:10.0.0.9", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, limiter.buckets, 1)
	assert.Contains(t, limiter.buckets, "ratelimit:batch:10.0.0.9")
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, errors.New("redis down")
}

func TestRateLimitPerUser(t *testing.T) {
	validator := staticValidator{claims: &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}}
	r := newRouter(JWT(validator), RateLimit(NewMemoryLimiter(), "batch", 1, time.Minute, nil))

	assert.Equal(t, http.StatusOK, doGet(r, "Bearer x").Code)
	w := doGet(r, "Bearer x")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	open := newRouter(RateLimit(failingLimiter{}, "batch", 1, time.Minute, nil))
	assert.Equal(t, http.StatusOK, doGet(open, "").Code)
	assert.Equal(t, http.StatusOK, doGet(open, "").Code)
}

type recordingWriter struct {
	logs []*models.AuditLog
}

func (w *recordingWriter) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	w.logs = append(w.logs, log)
	return nil
}

func TestAuditOnlyRecordsSuccess(t *testing.T) {
	writer := &recordingWriter{}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ok", Audit(writer, nil, models.AuditActionExport, models.AuditResourceReconciliation), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", Audit(writer, nil, models.AuditActionExport, models.AuditResourceReconciliation), func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	for _, path := range []string{"/ok", "/fail"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path+"?format=csv", nil))
	}
	require.Len(t, writer.logs, 1)
	assert.Equal(t, models.AuditActionExport, writer.logs[0].Action)
	assert.Contains(t, string(writer.logs[0].NewValues), "format=csv")
}

type observed struct {
	path   string
	status int
}

type recordingObserver struct{ calls []observed }

func (o *recordingObserver) ObserveHTTPRequest(_ string, path string, status int, _ time.Duration) {
	o.calls = append(o.calls, observed{path: path, status: status})
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	obs := &recordingObserver{}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics(obs))
	r.GET("/receipts/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/receipts/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Len(t, obs.calls, 2)
	assert.Equal(t, "/receipts/:id", obs.calls[0].path)
	assert.Equal(t, "unmatched", obs.calls[1].path)
	assert.Equal(t, http.StatusNotFound, obs.calls[1].status)
}

package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(origins []string, method, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.Any("/receipts", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, "/receipts", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestCORSAllowedOrigins(t *testing.T) {
	origins := []string{"https://admin.school.test/", "https://*.portal.test"}

	w := serve(origins, http.MethodGet, "https://admin.school.test")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://admin.school.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")

	w = serve(origins, http.MethodGet, "https://students.portal.test")
	assert.Equal(t, "https://students.portal.test", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(origins, http.MethodGet, "http://students.portal.test")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(origins, http.MethodGet, "https://evil.test")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	w := serve(nil, http.MethodOptions, "https://anywhere.test")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	w = serve([]string{"https://admin.school.test"}, http.MethodOptions, "https://evil.test")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

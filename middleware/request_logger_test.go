package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Daniromero1410/Sistema-Positiva/config"
	"github.com/gin-gonic/gin"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestRequestLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogs(t)

	router := gin.New()
	router.Use(RequestID())
	router.Use(RequestLogger())
	router.GET("/api/consolidador/progreso/:id", func(c *gin.Context) {
		if c.Param("id") == "404" {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ejecución no encontrada"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"estado": "EN_PROCESO"})
	})
	router.GET("/api/consolidador/ejecuciones", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ejecuciones": []any{}})
	})
	router.GET("/error", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
	})
	router.GET("/server-error", func(c *gin.Context) {
		c.JSON(http.StatusBadGateway, gin.H{"error": "backend unavailable"})
	})

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		logLevel       string
	}{
		{"success request", "/api/consolidador/ejecuciones", http.StatusOK, "INFO"},
		{"progress poll", "/api/consolidador/progreso/42", http.StatusOK, "DEBUG"},
		{"failed progress poll", "/api/consolidador/progreso/404", http.StatusNotFound, "WARN"},
		{"client error", "/error", http.StatusBadRequest, "WARN"},
		{"server error", "/server-error", http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()

			req := httptest.NewRequest("GET", tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			logOutput := buf.String()
			if !strings.Contains(logOutput, "request completed") {
				t.Error("Expected 'request completed' in log")
			}
			if !strings.Contains(logOutput, tt.path) {
				t.Errorf("Expected path '%s' in log", tt.path)
			}
			if !strings.Contains(logOutput, tt.logLevel) {
				t.Errorf("Expected log level '%s' in log", tt.logLevel)
			}
			if !strings.Contains(logOutput, "request_id=") {
				t.Error("Expected request_id in log")
			}
		})
	}

	buf.Reset()
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/consolidador/progreso/7", nil))
	if !strings.Contains(buf.String(), "route=/api/consolidador/progreso/:id") {
		t.Errorf("Expected route pattern in log, got %s", buf.String())
	}
}

func TestRequestLoggerWithQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogs(t)

	router := gin.New()
	router.Use(RequestLogger())
	router.GET("/api/consulta/search", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"total": 0})
	})

	req := httptest.NewRequest("GET", "/api/consulta/search?q=consulta&page=2", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), "query=") {
		t.Error("Expected query parameters in log")
	}
}

func TestRequestLoggerWithOperator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogs(t)

	cfg := &config.AuthConfig{JWTSecret: "secret", TokenExpireHours: 1}
	token, _, _ := GenerateToken("operador", "admin", cfg)

	router := gin.New()
	router.Use(RequestID())
	router.Use(RequestLogger())
	router.Use(AuthMiddleware(cfg))
	router.GET("/api/auth/me", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), "username=operador") {
		t.Errorf("Expected username in access log, got %s", buf.String())
	}
}

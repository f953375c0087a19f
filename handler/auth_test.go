package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Daniromero1410/Sistema-Positiva/config"
	"github.com/Daniromero1410/Sistema-Positiva/middleware"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testAuthConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:        "test-secret",
			TokenExpireHours: 24,
		},
		Users: []config.User{
			{Username: "operador", Password: "clave", Role: "analista"},
			{Username: "admin", Password: "admin123", Role: "admin"},
		},
	}
}

func TestAuthHandlerLogin(t *testing.T) {
	handler := NewAuthHandler(testAuthConfig())

	tests := []struct {
		name           string
		body           map[string]string
		expectedStatus int
		expectedRole   string
	}{
		{
			name:           "valid login",
			body:           map[string]string{"username": "operador", "password": "clave"},
			expectedStatus: http.StatusOK,
			expectedRole:   "analista",
		},
		{
			name:           "admin login",
			body:           map[string]string{"username": "admin", "password": "admin123"},
			expectedStatus: http.StatusOK,
			expectedRole:   "admin",
		},
		{
			name:           "invalid username",
			body:           map[string]string{"username": "nadie", "password": "clave"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid password",
			body:           map[string]string{"username": "operador", "password": "otra"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "missing fields",
			body:           map[string]string{"username": "operador"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.POST("/login", handler.Login)

			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest("POST", "/login", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			if tt.expectedStatus == http.StatusOK {
				var response LoginResponse
				if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
					t.Fatalf("Failed to parse response: %v", err)
				}
				if response.Token == "" {
					t.Error("Expected token in response")
				}
				if response.Role != tt.expectedRole {
					t.Errorf("Expected role '%s', got '%s'", tt.expectedRole, response.Role)
				}
			}
		})
	}
}

func TestAuthHandlerTokenRoundTrip(t *testing.T) {
	cfg := testAuthConfig()
	handler := NewAuthHandler(cfg)

	router := gin.New()
	router.POST("/api/auth/login", handler.Login)
	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	protected.GET("/auth/me", handler.GetCurrentUser)

	body, _ := json.Marshal(map[string]string{"username": "operador", "password": "clave"})
	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var login LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatalf("Failed to parse login: %v", err)
	}

	req = httptest.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var me map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &me); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if me["username"] != "operador" || me["role"] != "analista" {
		t.Errorf("Unexpected current user %v", me)
	}
}

func TestAuthHandlerLoginInvalidJSON(t *testing.T) {
	handler := NewAuthHandler(testAuthConfig())

	router := gin.New()
	router.POST("/login", handler.Login)

	req := httptest.NewRequest("POST", "/login", bytes.NewBufferString("invalid json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

package router

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cleanops/internal/clock"
	"github.com/cleanops/internal/db"
	"github.com/cleanops/internal/handler"
	"github.com/cleanops/internal/notify"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupRouterTest(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	hashed, err := db.HashPassword("secret")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	for _, user := range []db.User{
		{Username: "admin", Password: hashed, Role: db.RoleAdmin},
		{Username: "manager", Password: hashed, Role: db.RoleManager},
	} {
		if err := gdb.Create(&user).Error; err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
	}

	api := handler.NewAPI(gdb, clock.NewFixed(time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)), notify.Nop{}, zap.NewNop())
	return SetupRouter(api, "test-secret", zap.NewNop())
}

func login(t *testing.T, r *gin.Engine, username string) []*http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":"`+username+`","password":"secret"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rr.Code, rr.Body.String())
	}
	return rr.Result().Cookies()
}

func TestSetupRouterPing(t *testing.T) {
	r := setupRouterTest(t)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "pong") {
		t.Fatalf("unexpected body, got %q", rr.Body.String())
	}
}

func TestSetupRouterProtectsAPI(t *testing.T) {
	r := setupRouterTest(t)

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		want   int
	}{
		{name: "anonymous tasks", method: http.MethodGet, path: "/api/tasks", want: http.StatusUnauthorized},
		{name: "anonymous reconcile", method: http.MethodPost, path: "/api/maintenance/reconcile", want: http.StatusUnauthorized},
		{name: "manager tasks", method: http.MethodGet, path: "/api/tasks", user: "manager", want: http.StatusOK},
		{name: "manager reconcile", method: http.MethodPost, path: "/api/maintenance/reconcile", user: "manager", want: http.StatusForbidden},
		{name: "manager creates object", method: http.MethodPost, path: "/api/objects", user: "manager", want: http.StatusForbidden},
		{name: "admin reconcile", method: http.MethodPost, path: "/api/maintenance/reconcile", user: "admin", want: http.StatusOK},
		{name: "admin audit", method: http.MethodGet, path: "/api/techcards/frequency-audit", user: "admin", want: http.StatusOK},
		{name: "admin missing card", method: http.MethodGet, path: "/api/techcards/nope", user: "admin", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.user != "" {
				for _, cookie := range login(t, r, tt.user) {
					req.AddCookie(cookie)
				}
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("expected status %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestSetupRouterLogout(t *testing.T) {
	r := setupRouterTest(t)
	cookies := login(t, r, "manager")

	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout failed: %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	for _, cookie := range rr.Result().Cookies() {
		req.AddCookie(cookie)
	}
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rr.Code)
	}
}

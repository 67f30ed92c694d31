package frontend

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jo-hoe/imagequiz/internal/core"
	"github.com/labstack/echo/v4"
)

func newTestEcho(allowRegistration bool) *echo.Echo {
	config := &core.ServiceConfig{Auth: core.Auth{AllowRegistration: allowRegistration}}
	e := echo.New()
	NewFrontendService(config, nil).SetRoutes(e)
	return e
}

func get(e *echo.Echo, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRootRedirect(t *testing.T) {
	rec := get(newTestEcho(false), "/")
	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMovedPermanently)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "/"+MainPageName {
		t.Errorf("Location = %q", loc)
	}
}

func TestQuizPage(t *testing.T) {
	rec := get(newTestEcho(false), "/"+MainPageName)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Choose the right picture") {
		t.Error("quiz heading missing")
	}
	if !strings.Contains(body, `const SESSION_HEADER = "X-Quiz-Session"`) {
		t.Error("session header not rendered into the page script")
	}
	if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Errorf("Cache-Control = %q", cc)
	}
}

func TestAdminPage_Registration(t *testing.T) {
	closed := get(newTestEcho(false), "/"+AdminPageName).Body.String()
	if strings.Contains(closed, `id="register"`) {
		t.Error("register button shown although registration is closed")
	}

	open := get(newTestEcho(true), "/"+AdminPageName).Body.String()
	if !strings.Contains(open, `id="register"`) {
		t.Error("register button missing although registration is open")
	}
}

func TestIcon(t *testing.T) {
	rec := get(newTestEcho(false), "/icon.svg")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "<svg") {
		t.Error("body is not an svg document")
	}
}

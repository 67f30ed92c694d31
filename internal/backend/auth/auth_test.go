package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestPasswordHasher(t *testing.T) {
	hasher, err := NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewPasswordHasher error: %v", err)
	}

	hash, err := hasher.Hash("Admin@quiz99")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if hash == "Admin@quiz99" {
		t.Fatal("hash equals the plain password")
	}
	if err := hasher.Compare(hash, "Admin@quiz99"); err != nil {
		t.Errorf("Compare with right password error: %v", err)
	}
	if err := hasher.Compare(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := hasher.Compare("not-a-hash", "x"); err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected non-credential error for malformed hash, got %v", err)
	}

	if _, err := NewPasswordHasher(bcrypt.MaxCost + 1); err == nil {
		t.Error("expected error for cost above MaxCost")
	}
	if h, err := NewPasswordHasher(0); err != nil || h.cost != bcrypt.DefaultCost {
		t.Errorf("NewPasswordHasher(0) = %+v, %v; want default cost", h, err)
	}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer(testKey, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer error: %v", err)
	}

	token, err := issuer.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	userID, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("Verify() = %q, want user-1", userID)
	}

	if _, err := issuer.Issue(""); err == nil {
		t.Error("expected error issuing token for empty user id")
	}
}

func TestTokenIssuer_Expiry(t *testing.T) {
	issuer, err := NewTokenIssuer(testKey, time.Minute)
	if err != nil {
		t.Fatalf("NewTokenIssuer error: %v", err)
	}
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return start }

	token, err := issuer.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	issuer.now = func() time.Time { return start.Add(2 * time.Minute) }
	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenIssuer_WrongKey(t *testing.T) {
	a, _ := NewTokenIssuer(testKey, time.Hour)
	b, _ := NewTokenIssuer("fedcba9876543210fedcba9876543210", time.Hour)

	token, err := a.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := b.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign key, got %v", err)
	}
	if _, err := a.Verify("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestNewTokenIssuer_Validation(t *testing.T) {
	if _, err := NewTokenIssuer("short", time.Hour); err == nil {
		t.Error("expected error for short signing key")
	}
	issuer, err := NewTokenIssuer(testKey, 0)
	if err != nil {
		t.Fatalf("NewTokenIssuer error: %v", err)
	}
	if issuer.TTL() != DefaultTokenTTL {
		t.Errorf("TTL() = %v, want %v", issuer.TTL(), DefaultTokenTTL)
	}
}

func TestRequireToken(t *testing.T) {
	issuer, _ := NewTokenIssuer(testKey, time.Hour)
	token, _ := issuer.Issue("user-1")

	e := echo.New()
	e.GET("/admin", func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, UserID(ctx))
	}, RequireToken(issuer))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + token, wantStatus: http.StatusUnauthorized},
		{name: "no token", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer abc.def.ghi", wantStatus: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + token, wantStatus: http.StatusOK, wantBody: "user-1"},
		{name: "lower case scheme", header: "bearer " + token, wantStatus: http.StatusOK, wantBody: "user-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

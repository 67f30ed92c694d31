package backend

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jo-hoe/imagequiz/internal/backend/database"
	"github.com/jo-hoe/imagequiz/internal/common"
	"github.com/jo-hoe/imagequiz/internal/core"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	e           *echo.Echo
	coreService *core.CoreService
	token       string
}

func newTestServer(t *testing.T, mutate ...func(*core.ServiceConfig)) *testServer {
	t.Helper()
	config := &core.ServiceConfig{
		Database: core.Database{Type: "sqlite", ConnectionString: ":memory:"},
		Progress: core.Progress{Type: "database"},
		Uploads:  core.Uploads{Directory: t.TempDir(), PublicPath: "/uploads"},
		Auth: core.Auth{
			TokenTTL:      time.Hour,
			AdminUsername: "admin",
			AdminPassword: "Admin@quiz99",
			BcryptCost:    bcrypt.MinCost,
			SigningKey:    "0123456789abcdef0123456789abcdef",
		},
	}
	for _, m := range mutate {
		m(config)
	}
	coreService, err := core.NewCoreService(config)
	if err != nil {
		t.Fatalf("NewCoreService error: %v", err)
	}
	t.Cleanup(func() { _ = coreService.Close() })
	if err := coreService.EnsureAdmin(t.Context()); err != nil {
		t.Fatalf("EnsureAdmin error: %v", err)
	}

	e := echo.New()
	e.Validator = common.NewGenericEchoValidator()
	NewAPIService(config, coreService).SetRoutes(e)

	s := &testServer{e: e, coreService: coreService}
	rec := s.do(t, http.MethodPost, "/api/login", `{"username":"admin","password":"Admin@quiz99"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	var login struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expiresIn"`
	}
	decode(t, rec, &login)
	if login.Token == "" || login.ExpiresIn != 3600 {
		t.Fatalf("unexpected login response %+v", login)
	}
	s.token = login.Token
	return s
}

func (s *testServer) do(t *testing.T, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) admin() http.Header {
	return http.Header{echo.HeaderAuthorization: {"Bearer " + s.token}}
}

func (s *testServer) upload(t *testing.T, isCorrect string) *httptest.ResponseRecorder {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	var data bytes.Buffer
	if err := png.Encode(&data, img); err != nil {
		t.Fatalf("png.Encode error: %v", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "quiz.png")
	if err != nil {
		t.Fatalf("CreateFormFile error: %v", err)
	}
	if _, err := part.Write(data.Bytes()); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.WriteField("isCorrect", isCorrect); err != nil {
		t.Fatalf("WriteField error: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("multipart close: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+s.token)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) mustUpload(t *testing.T, isCorrect bool) *database.Image {
	t.Helper()
	rec := s.upload(t, map[bool]string{true: "true", false: "false"}[isCorrect])
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}
	var img database.Image
	decode(t, rec, &img)
	return &img
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	decode(t, rec, &resp)
	return resp.Code
}

func TestProbe(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/probe", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("probe = %d %q", rec.Code, rec.Body.String())
	}
}

func TestUpload_RequiresToken(t *testing.T) {
	s := newTestServer(t)
	s.token = "not-a-token"
	if rec := s.upload(t, "true"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestUpload_AndServeFile(t *testing.T) {
	s := newTestServer(t)
	img := s.mustUpload(t, true)

	if !img.IsCorrect || !strings.HasPrefix(img.ImagePath, "/uploads/") {
		t.Fatalf("unexpected image %+v", img)
	}

	rec := s.do(t, http.MethodGet, img.ImagePath, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("static file status = %d", rec.Code)
	}
	if _, err := png.Decode(rec.Body); err != nil {
		t.Fatalf("served file is not a png: %v", err)
	}
}

func TestThumbnail(t *testing.T) {
	s := newTestServer(t)
	img := s.mustUpload(t, false)

	rec := s.do(t, http.MethodGet, "/api/images/"+img.ID+"/thumbnail?width=32", "", nil)
	if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderContentType) != "image/png" {
		t.Fatalf("thumbnail = %d %s", rec.Code, rec.Header().Get(echo.HeaderContentType))
	}

	if rec := s.do(t, http.MethodGet, "/api/images/"+img.ID+"/thumbnail?width=wide", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric width = %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/images/missing/thumbnail", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown image = %d", rec.Code)
	}
}

func TestUpload_InvalidInput(t *testing.T) {
	s := newTestServer(t)

	rec := s.upload(t, "maybe")
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "validation_error" {
		t.Fatalf("bad isCorrect = %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, "/api/upload", "", s.admin())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing file = %d %s", rec.Code, rec.Body.String())
	}
}

func TestUpload_SizeLimit(t *testing.T) {
	s := newTestServer(t, func(c *core.ServiceConfig) { c.Uploads.MaxBytes = 16 })

	rec := s.upload(t, "true")
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "validation_error" {
		t.Fatalf("oversized image = %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, "/api/upload", strings.Repeat("x", multipartOverhead+32), s.admin())
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body = %d, want 413", rec.Code)
	}

	images, err := s.coreService.ListImages(t.Context())
	if err != nil || len(images) != 0 {
		t.Fatalf("no image should be stored, got %d (%v)", len(images), err)
	}
}

func TestQuizPair(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/quiz/pair", "", nil)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "insufficient_data" {
		t.Fatalf("empty catalog = %d %s", rec.Code, rec.Body.String())
	}

	c1 := s.mustUpload(t, true)
	s.mustUpload(t, true)
	i1 := s.mustUpload(t, false)

	rec = s.do(t, http.MethodGet, "/api/quiz/pair", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pair status = %d %s", rec.Code, rec.Body.String())
	}
	var pair pairResponse
	decode(t, rec, &pair)
	if pair.CorrectImageID != c1.ID || len(pair.Images) != 2 || pair.Images[1].ID != i1.ID {
		t.Fatalf("unexpected pair %+v", pair)
	}
	if pair.TotalPairs != 1 || pair.RemainingPairs != 0 || pair.CurrentPair != 1 {
		t.Fatalf("unexpected counters %+v", pair)
	}

	rec = s.do(t, http.MethodGet, "/api/quiz-pair", "", nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"reset":true}` {
		t.Fatalf("expected reset, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestQuizPair_Sessions(t *testing.T) {
	s := newTestServer(t)
	c1 := s.mustUpload(t, true)
	s.mustUpload(t, true)
	s.mustUpload(t, false)
	s.mustUpload(t, false)

	rec := s.do(t, http.MethodPost, "/api/quiz/sessions", "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("new session status = %d", rec.Code)
	}
	var session struct {
		SessionID string `json:"sessionId"`
	}
	decode(t, rec, &session)

	// Advance the default session by one pair.
	s.do(t, http.MethodGet, "/api/quiz/pair", "", nil)

	rec = s.do(t, http.MethodGet, "/api/quiz/pair", "", http.Header{SessionHeader: {session.SessionID}})
	var pair pairResponse
	decode(t, rec, &pair)
	if pair.CorrectImageID != c1.ID || pair.CurrentPair != 1 {
		t.Fatalf("header session should start fresh, got %+v", pair)
	}

	rec = s.do(t, http.MethodGet, "/api/quiz/pair?session="+session.SessionID, "", nil)
	decode(t, rec, &pair)
	if pair.CurrentPair != 2 {
		t.Fatalf("query session should continue the header session, got %+v", pair)
	}

	rec = s.do(t, http.MethodPost, "/api/quiz/reset?session="+session.SessionID, "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("reset status = %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/api/quiz/pair?session=bad%20id", "", nil)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "validation_error" {
		t.Fatalf("invalid session = %d %s", rec.Code, rec.Body.String())
	}
}

func TestAdminImages(t *testing.T) {
	s := newTestServer(t)
	img := s.mustUpload(t, true)
	other := s.mustUpload(t, false)

	if rec := s.do(t, http.MethodGet, "/api/admin/images", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("admin list without token = %d", rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/api/admin/images", "", s.admin())
	var images []*database.Image
	decode(t, rec, &images)
	if len(images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(images))
	}

	rec = s.do(t, http.MethodPut, "/api/admin/images/"+img.ID, `{"isCorrect":"false"}`, s.admin())
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d %s", rec.Code, rec.Body.String())
	}
	var updated database.Image
	decode(t, rec, &updated)
	if updated.IsCorrect || updated.ID != img.ID || !updated.CreatedAt.Equal(img.CreatedAt) {
		t.Fatalf("unexpected updated image %+v", updated)
	}

	rec = s.do(t, http.MethodPut, "/api/admin/images/"+img.ID, `{}`, s.admin())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("update without isCorrect = %d", rec.Code)
	}

	rec = s.do(t, http.MethodPut, "/api/admin/images/order", `{"ids":["`+other.ID+`","`+img.ID+`"]}`, s.admin())
	if rec.Code != http.StatusOK {
		t.Fatalf("reorder status = %d %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &images)
	if images[0].ID != other.ID {
		t.Fatalf("reorder not applied: first is %s", images[0].ID)
	}

	rec = s.do(t, http.MethodGet, "/api/admin/images/"+img.ID, "", s.admin())
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = s.do(t, http.MethodDelete, "/api/admin/images/"+img.ID, "", s.admin())
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d %s", rec.Code, rec.Body.String())
	}
	rec = s.do(t, http.MethodDelete, "/api/admin/images/"+img.ID, "", s.admin())
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "not_found" {
		t.Fatalf("second delete = %d %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(t, http.MethodGet, img.ImagePath, "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("deleted file still served: %d", rec.Code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/register", `{"username":"second","password":"password-1"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("register with existing admin = %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, "/api/register", `{"username":""}`, nil)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "username is required") {
		t.Fatalf("register without fields = %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, "/api/login", `{"username":"admin","password":"nope-nope"}`, nil)
	if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != "unauthorized" {
		t.Fatalf("login with bad password = %d %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.mustUpload(t, true)

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `imagequiz_images_uploaded_total{correct="true"} 1`) {
		t.Fatalf("upload counter missing from metrics:\n%s", rec.Body.String())
	}
}

func TestFlexBool(t *testing.T) {
	tests := map[string]bool{`true`: true, `false`: false, `"true"`: true, `"false"`: false, `"1"`: true}
	for input, want := range tests {
		var b flexBool
		if err := json.Unmarshal([]byte(input), &b); err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", input, err)
		}
		if bool(b) != want {
			t.Errorf("Unmarshal(%s) = %v, want %v", input, b, want)
		}
	}
	var b flexBool
	if err := json.Unmarshal([]byte(`"yes please"`), &b); err == nil {
		t.Error("expected error for non-boolean string")
	}
}

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/jo-hoe/oralvis/internal/auth"
	"github.com/jo-hoe/oralvis/internal/backend/database"
	"github.com/jo-hoe/oralvis/internal/core"
	"github.com/jo-hoe/oralvis/internal/imaging"
	"github.com/jo-hoe/oralvis/internal/imaging/imagetest"
	"github.com/jo-hoe/oralvis/internal/middleware"
	"github.com/jo-hoe/oralvis/internal/session"
	"github.com/labstack/echo/v4"
)

const (
	testSecret = "api-test-secret"
	cookieName = "oralvis_session"
)

// fixedAuthenticator avoids bcrypt; the credential table has its own tests.
type fixedAuthenticator map[string]auth.Identity

func (f fixedAuthenticator) Authenticate(_ context.Context, email, password string) (auth.Identity, error) {
	identity, ok := f[email]
	if !ok || password != "pw" {
		return auth.Identity{}, auth.ErrInvalidCredentials
	}
	return identity, nil
}

type apiTestServer struct {
	e       *echo.Echo
	manager *session.Manager
	store   database.ScanStore
}

func newAPITestServer(t *testing.T) *apiTestServer {
	t.Helper()
	store, err := database.NewSQLiteDatabase(context.Background(), ":memory:", database.DefaultNamespace)
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() error = %v", err)
	}
	coreService := core.NewCoreServiceWithStore(&core.ServiceConfig{
		Upload: core.Upload{MaxImageBytes: core.DefaultMaxImageBytes},
	}, store)
	t.Cleanup(func() { _ = coreService.Close() })

	manager := session.NewManager(fixedAuthenticator{
		"tech@example.com":    {ID: "1", Email: "tech@example.com", Role: auth.RoleTechnician},
		"dentist@example.com": {ID: "2", Email: "dentist@example.com", Role: auth.RoleDentist},
	}, time.Hour)
	t.Cleanup(func() { _ = manager.Close() })
	cookies := middleware.NewSessionCookies(manager, middleware.SessionConfig{Secret: testSecret, CookieName: cookieName})

	e := echo.New()
	e.Use(cookies.Middleware())
	NewAPIService(coreService).SetRoutes(e)
	return &apiTestServer{e: e, manager: manager, store: store}
}

func (ts *apiTestServer) cookieFor(t *testing.T, email string) *http.Cookie {
	t.Helper()
	s := ts.manager.Create()
	if _, err := s.Login(context.Background(), email, "pw"); err != nil {
		t.Fatalf("Login(%s) error = %v", email, err)
	}
	token, err := auth.MakeToken(s.ID(), testSecret, time.Hour)
	if err != nil {
		t.Fatalf("MakeToken() error = %v", err)
	}
	return &http.Cookie{Name: cookieName, Value: token}
}

func (ts *apiTestServer) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func newMultipartRequest(t *testing.T, fields map[string]string, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	if data != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="scan"`)
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart() error = %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, APIPrefix+"/scans", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func validFields() map[string]string {
	return map[string]string{
		"patientName": "John Roe",
		"patientId":   "P-42",
		"scanType":    "RGB",
		"region":      "Upper Arch",
	}
}

func TestProbe(t *testing.T) {
	ts := newAPITestServer(t)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/probe", nil), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSession(t *testing.T) {
	ts := newAPITestServer(t)

	var info SessionInfo
	rec := ts.do(httptest.NewRequest(http.MethodGet, APIPrefix+"/session", nil), nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if info.Authenticated || info.Identity != nil {
		t.Errorf("anonymous session = %+v", info)
	}

	rec = ts.do(httptest.NewRequest(http.MethodGet, APIPrefix+"/session", nil), ts.cookieFor(t, "dentist@example.com"))
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !info.Authenticated || info.Identity == nil || info.Identity.Role != auth.RoleDentist {
		t.Errorf("dentist session = %+v", info)
	}
}

func TestAPI_Authorization(t *testing.T) {
	ts := newAPITestServer(t)
	tech := ts.cookieFor(t, "tech@example.com")
	dentist := ts.cookieFor(t, "dentist@example.com")

	tests := []struct {
		name   string
		req    func() *http.Request
		cookie *http.Cookie
		want   int
	}{
		{"list anonymous", func() *http.Request { return httptest.NewRequest(http.MethodGet, APIPrefix+"/scans", nil) }, nil, http.StatusUnauthorized},
		{"list as technician", func() *http.Request { return httptest.NewRequest(http.MethodGet, APIPrefix+"/scans", nil) }, tech, http.StatusForbidden},
		{"create anonymous", func() *http.Request {
			return newMultipartRequest(t, validFields(), imaging.MIMEPNG, imagetest.PNG(4, 4))
		}, nil, http.StatusUnauthorized},
		{"create as dentist", func() *http.Request {
			return newMultipartRequest(t, validFields(), imaging.MIMEPNG, imagetest.PNG(4, 4))
		}, dentist, http.StatusForbidden},
		{"forged cookie", func() *http.Request { return httptest.NewRequest(http.MethodGet, APIPrefix+"/scans", nil) }, &http.Cookie{Name: cookieName, Value: "forged"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := ts.do(tt.req(), tt.cookie); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAPI_CreateAndList(t *testing.T) {
	ts := newAPITestServer(t)
	tech := ts.cookieFor(t, "tech@example.com")
	dentist := ts.cookieFor(t, "dentist@example.com")

	var created []Scan
	for i := 0; i < 3; i++ {
		fields := validFields()
		fields["patientId"] = fmt.Sprintf("P-%d", i)
		rec := ts.do(newMultipartRequest(t, fields, imaging.MIMEJPEG, imagetest.JPEG(8, 8)), tech)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create #%d status = %d, body = %s", i, rec.Code, rec.Body.String())
		}
		var scan Scan
		if err := json.Unmarshal(rec.Body.Bytes(), &scan); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if rec.Header().Get(echo.HeaderLocation) != APIPrefix+"/scans/"+scan.ID {
			t.Errorf("Location = %q", rec.Header().Get(echo.HeaderLocation))
		}
		created = append(created, scan)
	}

	rec := ts.do(httptest.NewRequest(http.MethodGet, APIPrefix+"/scans", nil), dentist)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), `"image"`) {
		t.Error("list response must not inline image bytes")
	}
	var listed []Scan
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(listed) != len(created) {
		t.Fatalf("listed %d scans, want %d", len(listed), len(created))
	}
	for i := range created {
		if listed[i].ID != created[i].ID || listed[i].PatientID != fmt.Sprintf("P-%d", i) {
			t.Errorf("position %d: got %+v, want %+v", i, listed[i], created[i])
		}
		if listed[i].ImageURL != "/scans/"+created[i].ID+"/image" || listed[i].ImageType != imaging.MIMEJPEG {
			t.Errorf("position %d: unexpected image fields %+v", i, listed[i])
		}
	}

	rec = ts.do(httptest.NewRequest(http.MethodGet, APIPrefix+"/scans/"+created[1].ID, nil), dentist)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), created[1].ID) {
		t.Errorf("get status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestAPI_EmptyList(t *testing.T) {
	ts := newAPITestServer(t)
	rec := ts.do(httptest.NewRequest(http.MethodGet, APIPrefix+"/scans", nil), ts.cookieFor(t, "dentist@example.com"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}

func TestAPI_Errors(t *testing.T) {
	ts := newAPITestServer(t)
	tech := ts.cookieFor(t, "tech@example.com")
	dentist := ts.cookieFor(t, "dentist@example.com")

	fields := validFields()
	delete(fields, "region")
	rec := ts.do(newMultipartRequest(t, fields, imaging.MIMEPNG, imagetest.PNG(4, 4)), tech)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "missing field: region") {
		t.Errorf("missing field: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(newMultipartRequest(t, validFields(), "image/webp", imagetest.PNG(4, 4)), tech)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "unsupported image type") {
		t.Errorf("unsupported type: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(httptest.NewRequest(http.MethodGet, APIPrefix+"/scans/unknown", nil), dentist)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d", rec.Code)
	}

	if err := ts.store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	rec = ts.do(httptest.NewRequest(http.MethodGet, APIPrefix+"/scans", nil), dentist)
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "Storage unavailable") {
		t.Errorf("storage down: status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"complaints-backend-go/internal/category"
	"complaints-backend-go/internal/config"
	"complaints-backend-go/internal/filestore"
	"complaints-backend-go/internal/identity"
	applogging "complaints-backend-go/internal/logging"
	"complaints-backend-go/internal/notifier"
	"complaints-backend-go/internal/repository"
	"complaints-backend-go/internal/security"
	"complaints-backend-go/internal/submission"
)

type testEnv struct {
	router    *gin.Engine
	uploadDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := applogging.Discard()

	cfg := &config.Config{
		AllowOrigins:      "*",
		OTPReturnToClient: true,
		FileStore:         "local",
		UploadDir:         t.TempDir(),
		MaxUploadMB:       1,
	}
	store := repository.NewMemoryStore().Store()
	if _, err := category.Seed(context.Background(), store.Categories, category.Defaults, false, log); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	tokens := security.NewTokenIssuer([]byte("test-secret"), "complaints-api", time.Hour, 24*time.Hour)
	ids := identity.NewService(store.Users, store.Otps, notifier.NewLogNotifier(log), tokens, log, identity.Options{})
	files := filestore.NewLocalStore(cfg.UploadDir, "")
	subs := submission.NewService(store.Submissions, store.Categories, files, log)

	return &testEnv{
		router: NewServer(Deps{
			Config:      cfg,
			Log:         log,
			Identity:    ids,
			Categories:  category.NewDirectory(store.Categories),
			Submissions: subs,
		}),
		uploadDir: cfg.UploadDir,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

type session struct {
	access  string
	refresh string
	userID  float64
}

func (e *testEnv) login(t *testing.T, phone string) session {
	t.Helper()
	w := e.do(t, "POST", "/api/v1/auth/send-otp", "", map[string]string{"phone_number": phone})
	if w.Code != 200 {
		t.Fatalf("send-otp = %d %s", w.Code, w.Body)
	}
	code, _ := decode(t, w)["otp_code"].(string)

	w = e.do(t, "POST", "/api/v1/auth/verify-otp", "", map[string]string{"phone_number": phone, "otp_code": code})
	if w.Code != 200 {
		t.Fatalf("verify-otp = %d %s", w.Code, w.Body)
	}
	body := decode(t, w)
	tokens := body["tokens"].(map[string]any)
	user := body["user"].(map[string]any)
	return session{
		access:  tokens["access"].(string),
		refresh: tokens["refresh"].(string),
		userID:  user["user_id"].(float64),
	}
}

func validSubmission() map[string]any {
	return map[string]any{
		"category_id": 1,
		"image_url":   "https://cdn.example.com/photo.jpg",
		"latitude":    24.7136,
		"longitude":   46.6753,
	}
}

func TestSendOtp(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, "POST", "/api/v1/auth/send-otp", "", map[string]string{"phone_number": "+966500000001"})
	if w.Code != 200 {
		t.Fatalf("status = %d %s", w.Code, w.Body)
	}
	body := decode(t, w)
	if body["expires_in"] != "5 minutes" || body["expires_in_seconds"] != float64(300) {
		t.Errorf("body = %v", body)
	}
	if code, _ := body["otp_code"].(string); len(code) != 6 {
		t.Errorf("otp_code = %v", body["otp_code"])
	}

	w = e.do(t, "POST", "/api/v1/auth/send-otp", "", map[string]string{"phone_number": "0500000001"})
	if w.Code != 400 {
		t.Fatalf("invalid phone status = %d", w.Code)
	}
	if body := decode(t, w); body["error"] != "validation_error" || body["field"] != "phone_number" {
		t.Errorf("invalid phone body = %v", body)
	}
}

func TestVerifyOtp_LoginAndProfile(t *testing.T) {
	e := newTestEnv(t)
	s := e.login(t, "+966500000002")

	w := e.do(t, "GET", "/api/v1/auth/profile", s.access, nil)
	if w.Code != 200 {
		t.Fatalf("profile = %d %s", w.Code, w.Body)
	}
	body := decode(t, w)
	if body["phone_number"] != "+966500000002" || body["user_id"] != s.userID {
		t.Errorf("profile = %v", body)
	}
	if _, ok := body["created_at"]; !ok {
		t.Error("profile missing created_at")
	}

	again := e.login(t, "+966500000002")
	if again.userID != s.userID {
		t.Errorf("second login user = %v, want %v", again.userID, s.userID)
	}
}

func TestVerifyOtp_Rejected(t *testing.T) {
	e := newTestEnv(t)
	phone := "+966500000003"
	w := e.do(t, "POST", "/api/v1/auth/send-otp", "", map[string]string{"phone_number": phone})
	code := decode(t, w)["otp_code"].(string)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	w = e.do(t, "POST", "/api/v1/auth/verify-otp", "", map[string]string{"phone_number": phone, "otp_code": wrong})
	if w.Code != 400 || decode(t, w)["error"] != "invalid_or_expired_code" {
		t.Fatalf("wrong code = %d %s", w.Code, w.Body)
	}

	w = e.do(t, "POST", "/api/v1/auth/verify-otp", "", map[string]string{"phone_number": phone, "otp_code": code})
	if w.Code != 200 {
		t.Fatalf("right code = %d %s", w.Code, w.Body)
	}
	w = e.do(t, "POST", "/api/v1/auth/verify-otp", "", map[string]string{"phone_number": phone, "otp_code": code})
	if w.Code != 400 || decode(t, w)["error"] != "invalid_or_expired_code" {
		t.Errorf("replay = %d %s", w.Code, w.Body)
	}

	w = e.do(t, "POST", "/api/v1/auth/verify-otp", "", map[string]string{"phone_number": phone, "otp_code": "12"})
	if w.Code != 400 || decode(t, w)["field"] != "otp_code" {
		t.Errorf("short code = %d %s", w.Code, w.Body)
	}
}

func TestAuthMiddleware(t *testing.T) {
	e := newTestEnv(t)
	s := e.login(t, "+966500000004")

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing", "", "authorization_header_missing"},
		{"wrong scheme", "Token abc", "authorization_header_invalid"},
		{"too many parts", "Bearer a b", "authorization_header_invalid"},
		{"garbage token", "Bearer not-a-jwt", "invalid_token"},
		{"refresh as access", "Bearer " + s.refresh, "invalid_token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/auth/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			e.router.ServeHTTP(w, req)
			if w.Code != 401 || decode(t, w)["error"] != tt.want {
				t.Errorf("got %d %s, want 401 %s", w.Code, w.Body, tt.want)
			}
		})
	}
}

func TestRefreshToken(t *testing.T) {
	e := newTestEnv(t)
	s := e.login(t, "+966500000005")

	if w := e.do(t, "POST", "/api/v1/auth/refresh-token", "", map[string]string{"refresh": s.refresh}); w.Code != 401 {
		t.Errorf("without bearer = %d", w.Code)
	}
	if w := e.do(t, "POST", "/api/v1/auth/refresh-token", s.access, map[string]string{}); w.Code != 400 {
		t.Errorf("missing refresh = %d %s", w.Code, w.Body)
	}
	if w := e.do(t, "POST", "/api/v1/auth/refresh-token", s.access, map[string]string{"refresh": s.access}); w.Code != 401 {
		t.Errorf("access as refresh = %d %s", w.Code, w.Body)
	}

	w := e.do(t, "POST", "/api/v1/auth/refresh-token", s.access, map[string]string{"refresh": s.refresh})
	if w.Code != 200 {
		t.Fatalf("refresh = %d %s", w.Code, w.Body)
	}
	body := decode(t, w)
	access, _ := body["access"].(string)
	if access == "" || body["refresh"] == "" {
		t.Fatalf("refresh body = %v", body)
	}
	if w := e.do(t, "GET", "/api/v1/auth/profile", access, nil); w.Code != 200 {
		t.Errorf("new access token rejected: %d", w.Code)
	}
}

func TestListCategories(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, "GET", "/api/v1/categories", "", nil)
	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	var list []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != len(category.Defaults) {
		t.Fatalf("len = %d", len(list))
	}
	if list[0]["name_ar"] != "كهرباء" || list[0]["name_en"] != "Electricity" || list[0]["category_id"] != float64(1) {
		t.Errorf("first = %v", list[0])
	}
}

func TestSubmissionLifecycle(t *testing.T) {
	e := newTestEnv(t)
	s := e.login(t, "+966500000006")

	w := e.do(t, "POST", "/api/v1/submissions", s.access, validSubmission())
	if w.Code != 201 {
		t.Fatalf("create = %d %s", w.Code, w.Body)
	}
	created := decode(t, w)
	id := created["submission_id"].(float64)
	if created["user"].(map[string]any)["user_id"] != s.userID {
		t.Errorf("owner = %v", created["user"])
	}
	if created["category"].(map[string]any)["name_en"] != "Electricity" {
		t.Errorf("category = %v", created["category"])
	}
	if created["latitude"] != 24.7136 || created["longitude"] != 46.6753 {
		t.Errorf("coords = %v, %v", created["latitude"], created["longitude"])
	}
	path := fmt.Sprintf("/api/v1/submissions/%d", int(id))

	w = e.do(t, "GET", "/api/v1/submissions", s.access, nil)
	var list []map[string]any
	json.Unmarshal(w.Body.Bytes(), &list)
	if w.Code != 200 || len(list) != 1 {
		t.Fatalf("list = %d %s", w.Code, w.Body)
	}

	w = e.do(t, "PATCH", path, s.access, map[string]any{"notes": "water leak", "latitude": "21.4225", "category_id": 5})
	if w.Code != 200 {
		t.Fatalf("patch = %d %s", w.Code, w.Body)
	}
	patched := decode(t, w)
	if patched["notes"] != "water leak" || patched["latitude"] != 21.4225 {
		t.Errorf("patched = %v", patched)
	}
	if patched["category"].(map[string]any)["category_id"] != float64(1) {
		t.Errorf("category changed on update: %v", patched["category"])
	}
	if patched["created_at"] != created["created_at"] {
		t.Errorf("created_at changed: %v -> %v", created["created_at"], patched["created_at"])
	}

	w = e.do(t, "PUT", path, s.access, map[string]any{"notes": nil})
	if w.Code != 200 || decode(t, w)["notes"] != nil {
		t.Errorf("clear notes = %d %s", w.Code, w.Body)
	}

	if w := e.do(t, "DELETE", path, s.access, nil); w.Code != 204 {
		t.Fatalf("delete = %d %s", w.Code, w.Body)
	}
	if w := e.do(t, "GET", path, s.access, nil); w.Code != 404 {
		t.Errorf("get after delete = %d", w.Code)
	}
}

func TestSubmissions_OtherUsersSeeNotFound(t *testing.T) {
	e := newTestEnv(t)
	owner := e.login(t, "+966500000007")
	other := e.login(t, "+966500000008")

	w := e.do(t, "POST", "/api/v1/submissions", owner.access, validSubmission())
	if w.Code != 201 {
		t.Fatalf("create = %d %s", w.Code, w.Body)
	}
	path := fmt.Sprintf("/api/v1/submissions/%d", int(decode(t, w)["submission_id"].(float64)))

	for _, method := range []string{"GET", "PUT", "PATCH", "DELETE"} {
		var body any
		if method == "PUT" || method == "PATCH" {
			body = map[string]any{"notes": "mine now"}
		}
		w := e.do(t, method, path, other.access, body)
		if w.Code != 404 || decode(t, w)["error"] != "not_found" {
			t.Errorf("%s by other = %d %s", method, w.Code, w.Body)
		}
	}

	w = e.do(t, "GET", "/api/v1/submissions", other.access, nil)
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("other list = %s", w.Body)
	}
	if w := e.do(t, "GET", "/api/v1/submissions/abc", owner.access, nil); w.Code != 404 {
		t.Errorf("non-numeric id = %d", w.Code)
	}
	if w := e.do(t, "GET", path, owner.access, nil); w.Code != 200 {
		t.Errorf("owner get = %d", w.Code)
	}
}

func TestCreateSubmission_Errors(t *testing.T) {
	e := newTestEnv(t)
	s := e.login(t, "+966500000009")

	tests := []struct {
		name    string
		mutate  func(map[string]any)
		status  int
		field   string
		message string
	}{
		{"unknown category", func(m map[string]any) { m["category_id"] = 999 }, 404, "", "category not found"},
		{"missing latitude", func(m map[string]any) { delete(m, "latitude") }, 400, "latitude", ""},
		{"latitude too precise", func(m map[string]any) { m["latitude"] = "24.1234567891" }, 400, "latitude", ""},
		{"counter too long", func(m map[string]any) { m["counter_number"] = strings.Repeat("1", 51) }, 400, "counter_number", ""},
		{"stored image ref", func(m map[string]any) { m["image_url"] = "/uploads/submissions/20250101-000000-x.jpg" }, 400, "image_url", "image_url must be uploaded as a file"},
		{"stored invoice ref", func(m map[string]any) { m["invoice_image"] = "/uploads/invoices/20250101-000000-x.png" }, 400, "invoice_image", "invoice_image must be uploaded as a file"},
		{"created_at malformed", func(m map[string]any) { m["created_at"] = "yesterday" }, 400, "created_at", ""},
		{"created_at in future", func(m map[string]any) {
			m["created_at"] = time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
		}, 400, "created_at", "created_at cannot be in the future"},
		{"created_at too old", func(m map[string]any) {
			m["created_at"] = time.Now().Add(-31 * 24 * time.Hour).UTC().Format(time.RFC3339)
		}, 400, "created_at", "created_at cannot be older than 30 days"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := validSubmission()
			tt.mutate(payload)
			w := e.do(t, "POST", "/api/v1/submissions", s.access, payload)
			if w.Code != tt.status {
				t.Fatalf("status = %d %s, want %d", w.Code, w.Body, tt.status)
			}
			body := decode(t, w)
			if tt.field != "" && body["field"] != tt.field {
				t.Errorf("field = %v, want %s", body["field"], tt.field)
			}
			if tt.message != "" && body["message"] != tt.message {
				t.Errorf("message = %v, want %s", body["message"], tt.message)
			}
		})
	}

	backdated := validSubmission()
	at := time.Now().Add(-10 * 24 * time.Hour).UTC().Truncate(time.Second)
	backdated["created_at"] = at.Format(time.RFC3339)
	w := e.do(t, "POST", "/api/v1/submissions", s.access, backdated)
	if w.Code != 201 {
		t.Fatalf("backdated = %d %s", w.Code, w.Body)
	}
	got, err := time.Parse(time.RFC3339, decode(t, w)["created_at"].(string))
	if err != nil || !got.Equal(at) {
		t.Errorf("created_at = %v, %v; want %v", got, err, at)
	}
}

func TestCreateSubmission_Multipart(t *testing.T) {
	e := newTestEnv(t)
	s := e.login(t, "+966500000010")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"category_id":    "2",
		"latitude":       "24.7136",
		"longitude":      "46.6753",
		"counter_number": "MTR-77",
	} {
		mw.WriteField(k, v)
	}
	part, _ := mw.CreateFormFile("image_url", "leak.jpg")
	part.Write([]byte("jpeg"))
	part, _ = mw.CreateFormFile("invoice_image", "bill.png")
	part.Write([]byte("png"))
	mw.Close()

	req := httptest.NewRequest("POST", "/api/v1/submissions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.access)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != 201 {
		t.Fatalf("create = %d %s", w.Code, w.Body)
	}
	body := decode(t, w)
	image := body["image_url"].(string)
	invoice := body["invoice_image"].(string)
	if !strings.HasPrefix(image, "/uploads/submissions/") || !strings.HasPrefix(invoice, "/uploads/invoices/") {
		t.Fatalf("refs = %q, %q", image, invoice)
	}
	if body["counter_number"] != "MTR-77" {
		t.Errorf("counter_number = %v", body["counter_number"])
	}

	onDisk := filepath.Join(e.uploadDir, filepath.FromSlash(strings.TrimPrefix(image, "/uploads/")))
	if data, err := os.ReadFile(onDisk); err != nil || string(data) != "jpeg" {
		t.Errorf("stored image = %q, %v", data, err)
	}

	served := httptest.NewRecorder()
	e.router.ServeHTTP(served, httptest.NewRequest("GET", image, nil))
	if served.Code != 200 || served.Body.String() != "jpeg" {
		t.Errorf("static upload = %d %q", served.Code, served.Body)
	}

	path := fmt.Sprintf("/api/v1/submissions/%d", int(body["submission_id"].(float64)))
	if w := e.do(t, "DELETE", path, s.access, nil); w.Code != 204 {
		t.Fatalf("delete = %d", w.Code)
	}
	if _, err := os.Stat(onDisk); !os.IsNotExist(err) {
		t.Errorf("image not removed after delete: %v", err)
	}
}

func TestCreateSubmission_BodyTooLarge(t *testing.T) {
	e := newTestEnv(t)
	s := e.login(t, "+966500000011")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("category_id", "1")
	part, _ := mw.CreateFormFile("image_url", "huge.jpg")
	part.Write(bytes.Repeat([]byte("x"), 2<<20))
	mw.Close()

	req := httptest.NewRequest("POST", "/api/v1/submissions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.access)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != 413 {
		t.Errorf("status = %d %s, want 413", w.Code, w.Body)
	}
}

func TestListSubmissions_GeoJSON(t *testing.T) {
	e := newTestEnv(t)
	s := e.login(t, "+966500000012")
	if w := e.do(t, "POST", "/api/v1/submissions", s.access, validSubmission()); w.Code != 201 {
		t.Fatalf("create = %d %s", w.Code, w.Body)
	}

	w := e.do(t, "GET", "/api/v1/submissions?format=geojson", s.access, nil)
	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	features, _ := body["features"].([]any)
	if body["type"] != "FeatureCollection" || len(features) != 1 {
		t.Fatalf("body = %v", body)
	}
	geom := features[0].(map[string]any)["geometry"].(map[string]any)
	coords := geom["coordinates"].([]any)
	if geom["type"] != "Point" || coords[0] != 46.6753 || coords[1] != 24.7136 {
		t.Errorf("geometry = %v", geom)
	}
}

func TestOperationalEndpoints(t *testing.T) {
	e := newTestEnv(t)
	if w := e.do(t, "GET", "/health", "", nil); w.Code != 200 {
		t.Errorf("health = %d", w.Code)
	}
	e.do(t, "GET", "/api/v1/categories", "", nil)
	w := e.do(t, "GET", "/metrics", "", nil)
	if w.Code != 200 || !strings.Contains(w.Body.String(), "complaints_http_request_duration_seconds") {
		t.Errorf("metrics = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/submissions", nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != 204 || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %v", rec.Code, rec.Header())
	}
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/RestorePortal/internal/blob"
	"github.com/dharsanguruparan/RestorePortal/internal/config"
	"github.com/dharsanguruparan/RestorePortal/internal/credential"
	"github.com/dharsanguruparan/RestorePortal/internal/gateway"
	"github.com/dharsanguruparan/RestorePortal/internal/intake"
	"github.com/dharsanguruparan/RestorePortal/internal/lifecycle"
	"github.com/dharsanguruparan/RestorePortal/internal/metrics"
	"github.com/dharsanguruparan/RestorePortal/internal/model"
	"github.com/dharsanguruparan/RestorePortal/internal/storage"
)

var fixedNow = time.Unix(1700000000, 0)

type harness struct {
	handler http.Handler
	store   *storage.MemoryStore
	dir     *blob.Dir
}

func newHarness(t *testing.T, mutate ...func(*config.Config)) *harness {
	t.Helper()
	cfg := &config.Config{
		Address:           ":0",
		UploadDir:         t.TempDir(),
		MaxFileSize:       1 << 10,
		AllowedExtensions: []string{"pdf", "jpg", "jpeg", "png"},
		TokenMode:         config.TokenDigest,
		SignedURLTTL:      time.Minute,
		APIRateLimit:      100,
		APIRateBurst:      100,
	}
	for _, m := range mutate {
		m(cfg)
	}
	log, _ := test.NewNullLogger()
	store := storage.NewMemoryStore()
	require.NoError(t, storage.Seed(context.Background(), store, storage.DemoApplications()))
	dir, err := blob.NewDir(cfg.UploadDir)
	require.NoError(t, err)

	clock := func() time.Time { return fixedNow }
	validator := intake.New(dir, cfg.AllowedExtensions, cfg.MaxFileSize, intake.WithClock(clock), intake.WithLogger(log))
	issuer := credential.NewIssuer(credential.ModeDigest, credential.WithClock(clock))
	ctrl := lifecycle.New(store, validator, issuer, lifecycle.WithLogger(log))

	srv := New(Deps{
		Config:    cfg,
		Lifecycle: ctrl,
		Gateway:   gateway.New(store, log),
		Blobs:     dir,
		Metrics:   metrics.New(),
		Log:       log,
	})
	return &harness{handler: srv.Handler(), store: store, dir: dir}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(req)
}

func (h *harness) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return h.do(req)
}

func (h *harness) get(path string) *httptest.ResponseRecorder {
	return h.do(httptest.NewRequest(http.MethodGet, path, nil))
}

type filePart struct {
	field, name string
	data        []byte
}

func multipartRegistration(t *testing.T, fields map[string]string, files ...filePart) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func registrationFields(email string) map[string]string {
	return map[string]string{
		"org_name":      "Mangrove Trust",
		"email":         email,
		"password":      "pw",
		"org_type":      "NGO",
		"project_title": "Coastal Mangroves",
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRegisterLoginDashboardFlow(t *testing.T) {
	h := newHarness(t)

	body, ct := multipartRegistration(t, registrationFields("x@y.org"),
		filePart{field: "registration_certificate", name: "cert.pdf", data: []byte("%PDF-1.4")},
		filePart{field: "pan_card", name: "pan card.png", data: []byte("png")},
	)
	req := httptest.NewRequest(http.MethodPost, "/ngo/register", body)
	req.Header.Set("Content-Type", ct)
	rec := h.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, float64(6), out["id"])
	assert.Equal(t, "pending", out["status"])
	assert.Equal(t, "/ngo/status/6", out["redirect"])

	stored, err := h.store.Get(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, "6_registration_certificate_1700000000_cert.pdf", stored.Files[model.ArtifactRegistrationCertificate])
	assert.Equal(t, "6_pan_card_1700000000_pan_card.png", stored.Files[model.ArtifactPANCard])
	assert.Nil(t, stored.SessionToken)

	rec = h.get("/ngo/status/6")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode(t, rec)
	assert.Equal(t, "Mangrove Trust", status["org_name"])
	assert.Equal(t, []interface{}{"pan_card", "registration_certificate"}, status["documents"])

	rec = h.postForm("/login", url.Values{"email": {"x@y.org"}, "password": {"pw"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode(t, rec)
	assert.Equal(t, "NGO-0006-000000", login["professional_id"])
	token, _ := login["session_token"].(string)
	require.Len(t, token, credential.TokenLength)
	assert.Equal(t, "/ngo/dashboard/6?session_id="+token, login["redirect"])

	rec = h.get("/ngo/dashboard/6?session_id=" + token)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode(t, rec)
	assert.Equal(t, "x@y.org", dash["email"])
	assert.NotContains(t, rec.Body.String(), token)

	req = httptest.NewRequest(http.MethodGet, "/ngo/dashboard/6", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, h.do(req).Code)

	rec = h.postJSON("/api/flutter/login", `{"professional_id":"NGO-0006-000000","session_token":"`+token+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	api := decode(t, rec)
	assert.Equal(t, true, api["success"])
	data := api["data"].(map[string]interface{})
	assert.Equal(t, float64(6), data["ngo_id"])
	assert.NotContains(t, data, "session_token")

	rec = h.postForm("/admin/update-ngo-status", url.Values{"ngo_id": {"6"}, "status": {"accepted"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["updated"])
	stored, err = h.store.Get(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, stored.Status)
	assert.Equal(t, token, *stored.SessionToken)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := newHarness(t)
	form := url.Values{}
	for k, v := range registrationFields("info@greenearth.org") {
		form.Set(k, v)
	}
	rec := h.postForm("/register", form)
	require.Equal(t, http.StatusConflict, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "duplicate_email", out["code"])
	assert.Equal(t, "/ngo/login", out["redirect"])
}

func TestRegisterMissingField(t *testing.T) {
	h := newHarness(t)
	fields := registrationFields("new@y.org")
	fields["project_title"] = "   "
	body, ct := multipartRegistration(t, fields)
	req := httptest.NewRequest(http.MethodPost, "/register", body)
	req.Header.Set("Content-Type", ct)
	rec := h.do(req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "validation", out["code"])
	assert.Equal(t, "project_title", out["field"])
}

func TestRegisterInvalidFileCreatesNothing(t *testing.T) {
	h := newHarness(t)
	body, ct := multipartRegistration(t, registrationFields("new@y.org"),
		filePart{field: "registration_certificate", name: "cert.pdf", data: []byte("ok")},
		filePart{field: "tax_certificate", name: "tax.exe", data: []byte("MZ")},
	)
	req := httptest.NewRequest(http.MethodPost, "/register", body)
	req.Header.Set("Content-Type", ct)
	rec := h.do(req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "invalid_file", out["code"])
	assert.Equal(t, "tax_certificate", out["kind"])

	_, err := h.store.FindByEmail(context.Background(), "new@y.org")
	assert.ErrorIs(t, err, model.ErrNotFound)
	rc, err := h.dir.Open(context.Background(), "6_registration_certificate_1700000000_cert.pdf")
	if rc != nil {
		rc.Close()
	}
	assert.ErrorIs(t, err, blob.ErrNotExist)
}

func TestRegisterOversizedFile(t *testing.T) {
	h := newHarness(t)
	body, ct := multipartRegistration(t, registrationFields("big@y.org"),
		filePart{field: "pan_card", name: "pan.pdf", data: bytes.Repeat([]byte("a"), 2<<10)},
	)
	req := httptest.NewRequest(http.MethodPost, "/register", body)
	req.Header.Set("Content-Type", ct)
	rec := h.do(req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "pan_card", decode(t, rec)["kind"])
}

func TestLoginRejections(t *testing.T) {
	h := newHarness(t)

	rec := h.postForm("/ngo/login", url.Values{"email": {"nobody@y.org"}, "password": {"pw"}})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "unknown_email", out["code"])
	assert.Equal(t, "/ngo/login", out["redirect"])

	rec = h.postForm("/ngo/login", url.Values{"email": {"info@greenearth.org"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "password", decode(t, rec)["field"])
}

func TestDashboardRejections(t *testing.T) {
	h := newHarness(t)

	rec := h.get("/ngo/dashboard/1?session_id=wrong")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "/ngo/login", decode(t, rec)["redirect"])

	rec = h.get("/ngo/dashboard/1")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.get("/ngo/dashboard/99?session_id=sess_001")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "/ngo/login", decode(t, rec)["redirect"])

	rec = h.get("/ngo/dashboard/1?session_token=sess_001")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPILogin(t *testing.T) {
	h := newHarness(t)

	rec := h.postJSON("/api/login", `{"professional_id":"NGO001","session_token":"sess_001"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Green Earth Foundation", out["data"].(map[string]interface{})["org_name"])
	assert.NotContains(t, rec.Body.String(), "sess_001")

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing token", `{"professional_id":"NGO001"}`, http.StatusBadRequest},
		{"blank id", `{"professional_id":" ","session_token":"sess_001"}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
		{"mismatched pair", `{"professional_id":"NGO001","session_token":"sess_002"}`, http.StatusUnauthorized},
		{"unknown", `{"professional_id":"NGO999","session_token":"sess_999"}`, http.StatusUnauthorized},
		{"padded token", `{"professional_id":"NGO001","session_token":" sess_001 "}`, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.postJSON("/api/login", tt.body)
			require.Equal(t, tt.code, rec.Code)
			out := decode(t, rec)
			assert.Equal(t, false, out["success"])
			assert.NotEmpty(t, out["message"])
			assert.NotContains(t, out, "data")
		})
	}
}

func TestAPILoginRateLimited(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.APIRateLimit = 1
		cfg.APIRateBurst = 1
	})
	body := `{"professional_id":"NGO001","session_token":"sess_001"}`
	require.Equal(t, http.StatusOK, h.postJSON("/api/login", body).Code)
	rec := h.postJSON("/api/login", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])
}

func TestUpdateStatus(t *testing.T) {
	h := newHarness(t)

	rec := h.postForm("/admin/update-status", url.Values{"ngo_id": {"99"}, "status": {"accepted"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["updated"])

	rec = h.postForm("/admin/update-status", url.Values{"ngo_id": {"1"}, "status": {"approved"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.postForm("/admin/update-status", url.Values{"ngo_id": {"one"}, "status": {"accepted"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// A declined application may be reviewed again.
	rec = h.postForm("/admin/update-status", url.Values{"ngo_id": {"3"}, "status": {"accepted"}})
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, true, out["updated"])
	assert.Equal(t, "NGO application has been accepted", out["message"])
}

func TestAdminDashboard(t *testing.T) {
	h := newHarness(t)
	rec := h.get("/admin/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Len(t, out["applications"], 5)
	assert.Len(t, out["pending"], 3)
	assert.NotContains(t, rec.Body.String(), "sess_00")
}

func TestStatusUnknownID(t *testing.T) {
	h := newHarness(t)
	rec := h.get("/ngo/status/42")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "/ngo/login", decode(t, rec)["redirect"])
}

func TestUploads(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.dir.Put(context.Background(), "1_pan_card_1_pan.pdf", strings.NewReader("%PDF"), 4, "application/pdf"))

	rec := h.get("/uploads/1_pan_card_1_pan.pdf")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	got, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(got))

	assert.Equal(t, http.StatusNotFound, h.get("/uploads/missing.pdf").Code)
	assert.Equal(t, http.StatusBadRequest, h.get("/uploads/bad..name").Code)
}

func TestInfrastructureRoutes(t *testing.T) {
	h := newHarness(t)

	rec := h.get("/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc")
	assert.Equal(t, "abc", h.do(req).Header().Get(RequestIDHeader))

	h.postForm("/login", url.Values{"email": {"info@greenearth.org"}, "password": {"pw"}})
	rec = h.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `portal_logins_total{outcome="issued"} 1`)
	assert.Contains(t, rec.Body.String(), `route="/login"`)

	rec = h.get("/nowhere")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec)["code"])

	rec = h.get("/register")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req = httptest.NewRequest(http.MethodOptions, "/api/login", nil)
	rec = h.do(req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/acrc-community/acrc/internal/config"
	"github.com/acrc-community/acrc/internal/game"
	"github.com/acrc-community/acrc/internal/models"
	"github.com/acrc-community/acrc/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "secret"

type testEnv struct {
	srv     *Server
	handler http.Handler
	store   *storage.Repository
	dir     string
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		Server: config.Server{
			AuthToken:     testToken,
			MaxUploadSize: "1MB",
		},
		Content: config.Content{
			UploadDir:  filepath.Join(dir, "uploads"),
			ExtractDir: filepath.Join(dir, "uploads", "extracted"),
		},
		Probe: config.Probe{
			PingTimeout:    time.Second,
			DetailsTimeout: time.Second,
			SoftLimitDur:   time.Minute,
			Workers:        1,
		},
		RateLimit: config.RateLimit{HardLimitCount: 1000, HardLimitWin: time.Minute},
	}
	for _, m := range mutate {
		m(cfg)
	}
	require.NoError(t, cfg.Validate())

	store, err := storage.New(filepath.Join(dir, "acrc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv := New(store, nil, cfg)
	return &testEnv{srv: srv, handler: srv.Run(), store: store, dir: dir}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	return rec
}

func adminRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer "+testToken)

	return req
}

func zipBytes(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func uploadRequest(t *testing.T, field, name string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := adminRequest(http.MethodPost, "/api/cars/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())

	return out
}

// acServer fakes the HTTP API of a game server.
func acServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+game.PingPath, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})
	mux.HandleFunc("GET "+game.DetailsPath, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"name":"Night Drift Club","track":"ek_akina","clients":3,"maxclients":16}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func TestUploadAndDownload(t *testing.T) {
	env := newTestEnv(t)
	data := zipBytes(t, map[string]string{
		"evo9/lancer_evo9.kn5": "model-bytes",
	})

	rec := env.do(t, uploadRequest(t, uploadField, "drift_evo9.zip", data))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode(t, rec)
	assert.Equal(t, true, resp["success"])
	car := resp["car"].(map[string]any)
	assert.Equal(t, "drift_evo9", car["name"])
	assert.Equal(t, models.CarCategoryDrift, car["category"])
	assert.NotContains(t, car, "download_token")

	downloadURL := car["download_url"].(string)
	require.True(t, strings.HasPrefix(downloadURL, "/api/cars/"))

	rec = env.do(t, httptest.NewRequest(http.MethodGet, downloadURL, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename=drift_evo9_")
	assert.Equal(t, data, rec.Body.Bytes())

	id := int64(car["id"].(float64))
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/cars/"+jsonID(id)+"/download", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, data, rec.Body.Bytes())

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/cars/"+jsonID(id)+"/model3d", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lancer_evo9.kn5", decode(t, rec)["fileName"])

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/cars?category=Drift", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var cars []models.Car
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cars))
	assert.Len(t, cars, 1)
}

func TestUpload_Rejections(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Server.MaxUploadSize = "1KB" })

	tests := []struct {
		req  *http.Request
		name string
		code int
	}{
		{
			name: "unauthorized",
			req:  httptest.NewRequest(http.MethodPost, "/api/cars/upload", nil),
			code: http.StatusUnauthorized,
		},
		{
			name: "missing file field",
			req:  uploadRequest(t, "other", "car.zip", []byte("x")),
			code: http.StatusBadRequest,
		},
		{
			name: "not a zip",
			req:  uploadRequest(t, uploadField, "car.exe", []byte("MZ plain executable")),
			code: http.StatusBadRequest,
		},
		{
			name: "too large",
			req:  uploadRequest(t, uploadField, "big.zip", bytes.Repeat([]byte("a"), 2000)),
			code: http.StatusRequestEntityTooLarge,
		},
		{
			name: "corrupt zip",
			req:  uploadRequest(t, uploadField, "broken.zip", []byte("not really a zip")),
			code: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.req)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.Equal(t, false, decode(t, rec)["success"])
		})
	}
}

func TestUpload_CorruptZipMessage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, uploadRequest(t, uploadField, "broken.zip", []byte("not really a zip")))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed to extract ZIP file", decode(t, rec)["message"])
}

func TestDownload_LegacyAndMissing(t *testing.T) {
	env := newTestEnv(t)

	legacy, err := env.store.CreateCar(models.CarDraft{Name: "Ferrari 488 GT3", Category: models.CarCategoryGT, DownloadURL: "/api/cars/1/download"})
	require.NoError(t, err)
	missing, err := env.store.CreateCar(models.CarDraft{Name: "Ghost", Category: models.CarCategoryGT, FilePath: filepath.Join(env.dir, "gone.zip")})
	require.NoError(t, err)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/cars/"+jsonID(legacy.ID)+"/download", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "Download started for Ferrari 488 GT3", resp["message"])
	assert.Equal(t, "/api/cars/1/download", resp["downloadUrl"])

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/cars/"+jsonID(missing.ID)+"/download", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/cars/deadbeef/download", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/cars/"+jsonID(legacy.ID)+"/model3d", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCars_GetAndDelete(t *testing.T) {
	env := newTestEnv(t)

	car, err := env.store.CreateCar(models.CarDraft{Name: "S15", Category: models.CarCategoryJDM})
	require.NoError(t, err)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/cars/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/cars/"+jsonID(car.ID), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "S15", decode(t, rec)["name"])

	rec = env.do(t, httptest.NewRequest(http.MethodDelete, "/api/cars/"+jsonID(car.ID), nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, adminRequest(http.MethodDelete, "/api/cars/"+jsonID(car.ID), nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, adminRequest(http.MethodDelete, "/api/cars/"+jsonID(car.ID), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerLinkFlow(t *testing.T) {
	env := newTestEnv(t)
	ac := acServer(t)
	connLink := ac.URL + "/"

	rec := env.do(t, adminRequest(http.MethodPost, "/api/servers/parse-link", strings.NewReader(`{"connectionLink":"nothing here"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Failed to parse connection link", decode(t, rec)["message"])

	rec = env.do(t, adminRequest(http.MethodPost, "/api/servers/parse-link", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Connection link is required", decode(t, rec)["message"])

	rec = env.do(t, adminRequest(http.MethodPost, "/api/servers/parse-link", strings.NewReader(`{"connectionLink":"`+connLink+`"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode(t, rec)
	assert.Equal(t, "127.0.0.1", resp["serverIP"])
	assert.Equal(t, "direct", resp["matchedFormat"])
	assert.Equal(t, true, resp["online"])

	rec = env.do(t, adminRequest(http.MethodPost, "/api/servers/create-from-link", strings.NewReader(`{"connectionLink":"`+connLink+`"}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	server := decode(t, rec)["server"].(map[string]any)
	assert.Equal(t, "Night Drift Club", server["name"])
	assert.Equal(t, models.ServerCategoryDrift, server["category"])
	assert.Equal(t, "ek_akina", server["map"])
	id := int64(server["id"].(float64))

	rec = env.do(t, adminRequest(http.MethodPost, "/api/servers/"+jsonID(id)+"/update-status", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode(t, rec)["server"].(map[string]any)
	assert.Equal(t, true, updated["is_online"])
	assert.Equal(t, 3.0, updated["current_players"])

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/servers?category=Drift", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var servers []models.Server
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &servers))
	assert.Len(t, servers, 1)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/servers/"+jsonID(id)+"/cars", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.do(t, adminRequest(http.MethodDelete, "/api/servers/"+jsonID(id), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/servers/"+jsonID(id), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, adminRequest(http.MethodPost, "/api/servers/"+jsonID(id)+"/update-status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateStatus_UnparseableStoredLink(t *testing.T) {
	env := newTestEnv(t)

	s, err := env.store.CreateServer(models.Server{Name: "legacy", Category: models.ServerCategoryGT3, ConnectionLink: "ask in discord"})
	require.NoError(t, err)

	rec := env.do(t, adminRequest(http.MethodPost, "/api/servers/"+jsonID(s.ID)+"/update-status", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Failed to parse connection link", decode(t, rec)["message"])
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.RateLimit.HardLimitCount = 2 })

	for i := 0; i < 2; i++ {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/cars", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/servers", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "limit is shared across public routes")

	other := httptest.NewRequest(http.MethodGet, "/api/cars", nil)
	other.RemoteAddr = "192.0.2.10:4000"
	rec = env.do(t, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVersionAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	version := decode(t, rec)
	assert.Equal(t, "acrc", version["name"])
	assert.NotEmpty(t, version["go_version"])

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestUploadsServing(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, uploadRequest(t, uploadField, "gt_car.zip", zipBytes(t, map[string]string{
		"car/skins/red/preview.jpg": "jpeg-bytes",
	})))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	imageURL := decode(t, rec)["car"].(map[string]any)["image_url"].(string)
	require.True(t, strings.HasPrefix(imageURL, "/uploads/"))

	rec = env.do(t, httptest.NewRequest(http.MethodGet, imageURL, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg-bytes", rec.Body.String())

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/uploads/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlbunn/musicbox/catalog"
	"github.com/carlbunn/musicbox/config"
	"github.com/carlbunn/musicbox/player"
)

// stubSession is a do-nothing audio session so handler tests never
// touch a sound device.
type stubSession struct {
	pos    int64
	paused bool
}

func (s *stubSession) Start() error            { s.paused = false; return nil }
func (s *stubSession) Pause()                  { s.paused = true }
func (s *stubSession) Resume()                 { s.paused = false }
func (s *stubSession) Paused() bool            { return s.paused }
func (s *stubSession) SeekMs(ms int64) error   { s.pos = ms; return nil }
func (s *stubSession) PositionMs() int64       { return s.pos }
func (s *stubSession) DurationMs() int64       { return 180000 }
func (s *stubSession) Ended() bool             { return false }
func (s *stubSession) SetVolume(level float64) {}
func (s *stubSession) Close() error            { return nil }

type stubEngine struct{}

func (stubEngine) Open(path string) (player.Session, error) {
	return &stubSession{}, nil
}

type testEnv struct {
	router *gin.Engine
	store  *catalog.Store
	root   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "song.mp3"), []byte("x"), 0644))

	store, err := catalog.NewStore(root, filepath.Join(t.TempDir(), "db.json"), time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.ScanDirectory())
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		NearEndThreshold: 3 * time.Second,
		SettleDelay:      time.Millisecond,
	}
	controller := player.NewController(stubEngine{}, store, cfg)

	playerHandler := NewPlayerHandler(controller, store)
	catalogHandler := NewCatalogHandler(store)
	downloadHandler := NewDownloadHandler(nil)
	healthHandler := NewHealthHandler(store)

	r := gin.New()
	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/api/player/status", playerHandler.Status)
	r.GET("/api/player/display", playerHandler.Display)
	r.POST("/api/player/play", playerHandler.Play)
	r.POST("/api/player/pause", playerHandler.Pause)
	r.POST("/api/player/seek", playerHandler.Seek)
	r.POST("/api/player/skip", playerHandler.Skip)
	r.POST("/api/player/volume", playerHandler.Volume)
	r.GET("/api/tracks", catalogHandler.ListTracks)
	r.GET("/api/tracks/unmapped", catalogHandler.Unmapped)
	r.POST("/api/tracks/scan", catalogHandler.Rescan)
	r.POST("/api/mappings", catalogHandler.AddMapping)
	r.DELETE("/api/mappings/:tagId", catalogHandler.RemoveMapping)
	r.GET("/api/mappings/validate", catalogHandler.Validate)
	r.GET("/api/downloads", downloadHandler.List)

	return &testEnv{router: r, store: store, root: root}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestPlayerStatus(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/player/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var status map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "stopped", status["state"])
}

func TestPlayTrack(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/player/play", gin.H{"filename": "song.mp3"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"playing"`)
}

func TestPlayMissingTrack(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/player/play", gin.H{"filename": "missing.mp3"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlayPathTraversal(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/player/play", gin.H{"filename": "../../etc/passwd"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPlayMissingBody(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/player/play", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSeekValidation(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK,
		env.do(t, http.MethodPost, "/api/player/play", gin.H{"filename": "song.mp3"}).Code)

	tests := []struct {
		name string
		body gin.H
		want int
	}{
		{"valid", gin.H{"positionMs": 30000}, http.StatusOK},
		{"zero", gin.H{"positionMs": 0}, http.StatusOK},
		{"negative", gin.H{"positionMs": -1}, http.StatusBadRequest},
		{"beyond 24h", gin.H{"positionMs": 24*60*60*1000 + 1}, http.StatusBadRequest},
		{"missing", gin.H{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/player/seek", tt.body)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSkipValidation(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK,
		env.do(t, http.MethodPost, "/api/player/play", gin.H{"filename": "song.mp3"}).Code)

	assert.Equal(t, http.StatusOK,
		env.do(t, http.MethodPost, "/api/player/skip", gin.H{"deltaMs": 10000}).Code)
	assert.Equal(t, http.StatusOK,
		env.do(t, http.MethodPost, "/api/player/skip", gin.H{"deltaMs": -10000}).Code)
	assert.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodPost, "/api/player/skip", gin.H{"deltaMs": 300001}).Code)
}

func TestVolumeValidation(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusOK,
		env.do(t, http.MethodPost, "/api/player/volume", gin.H{"volume": 55}).Code)
	assert.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodPost, "/api/player/volume", gin.H{"volume": 101}).Code)
	assert.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodPost, "/api/player/volume", gin.H{"volume": -1}).Code)
}

func TestListTracks(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/tracks", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestMappingLifecycle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/mappings", gin.H{"tagId": "TAG_1", "filename": "song.mp3"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/tracks/unmapped", nil)
	assert.Contains(t, w.Body.String(), `"count":0`)

	w = env.do(t, http.MethodDelete, "/api/mappings/TAG_1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/tracks/unmapped", nil)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestAddMappingErrors(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/mappings", gin.H{"tagId": "bad tag", "filename": "song.mp3"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/mappings", gin.H{"tagId": "TAG_1", "filename": "missing.mp3"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/mappings", gin.H{"tagId": "TAG_1", "filename": "../escape.mp3"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRescanPicksUpNewFiles(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.root, "new.mp3"), []byte("x"), 0644))

	w := env.do(t, http.MethodPost, "/api/tracks/scan", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":2`)
}

func TestValidateEndpoint(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/mappings/validate", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "missingFiles")
}

func TestDownloadsDisabled(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/downloads", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDisplayEndpoint(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK,
		env.do(t, http.MethodPost, "/api/player/play", gin.H{"filename": "song.mp3"}).Code)

	w := env.do(t, http.MethodGet, "/api/player/display", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"playing"`)
}

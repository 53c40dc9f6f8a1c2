package route

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"camserver/internal/config"
	"camserver/internal/handler"
	"camserver/internal/hardware"
	"camserver/internal/hardware/hardwaretest"
	"camserver/internal/logger"
	"camserver/internal/model"
	"camserver/internal/repository/sqlite"
	"camserver/internal/service/capture"
	"camserver/internal/service/events"
	"camserver/internal/service/storage"
	"camserver/internal/service/websocket"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubThumbnailer struct{}

func (stubThumbnailer) Thumbnail(data []byte, maxWidth, maxHeight int) ([]byte, error) {
	return []byte("thumb"), nil
}

func setupServer(t *testing.T) (*httptest.Server, *websocket.HubService) {
	t.Helper()

	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<h1>camserver</h1>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(static, "app.js"), []byte("console.log(1)"), 0644))
	previous := StaticDir
	StaticDir = static
	t.Cleanup(func() { StaticDir = previous })

	cfg := &config.Config{
		Camera:          "dummy",
		LogDirectory:    t.TempDir(),
		DefaultExposure: 15,
		DefaultGain:     2,
		MaxResults:      10,
	}
	log, err := logger.NewLogger(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	store, err := storage.NewStore(t.TempDir(), log)
	require.NoError(t, err)
	db, err := sqlite.New(filepath.Join(t.TempDir(), "sweeps.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	sweeps := sqlite.NewSweepRepository(db)

	device := hardware.NewDevice(hardwaretest.NewCamera(hardwaretest.Options{}))
	bus := events.NewBus(log)
	worker := capture.NewWorker(device, store, stubThumbnailer{}, bus, capture.WorkerOptions{ThumbnailWidth: 4, ThumbnailHeight: 4}, log)
	sequencer := capture.NewSequencer(store, worker, sweeps, capture.SequencerOptions{Base: cfg.CameraConfig()}, log)
	t.Cleanup(func() {
		sequencer.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = sequencer.Wait(ctx)
	})

	ctx, cancel := context.WithCancel(context.Background())
	hub := websocket.NewHubService(log)
	sub, unsubscribe := bus.Subscribe(16)
	go hub.Run(ctx)
	go hub.Pump(ctx, sub)

	srv := httptest.NewServer(SetupRoutes(Services{
		Device:    device,
		Sequencer: sequencer,
		Store:     store,
		Sweeps:    sweeps,
		Hub:       hub,
	}, cfg, log))
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		cancel()
		unsubscribe()
	})

	return srv, hub
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

// ========================================
// UI And Static Routes
// ========================================

func TestSetupRoutes_Pages(t *testing.T) {
	srv, _ := setupServer(t)

	tests := []struct {
		path string
		code int
		body string
	}{
		{"/", http.StatusOK, "<h1>camserver</h1>"},
		{"/index", http.StatusOK, "<h1>camserver</h1>"},
		{"/settings", http.StatusNotFound, ""},
		{"/static/app.js", http.StatusOK, "console.log(1)"},
		{"/static/missing.js", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, body := get(t, srv.URL+tt.path)
			assert.Equal(t, tt.code, code)
			if tt.body != "" {
				assert.Contains(t, body, tt.body)
			}
		})
	}
}

func TestSetupRoutes_MethodNotAllowed(t *testing.T) {
	srv, _ := setupServer(t)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/capture", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

// ========================================
// API Routes
// ========================================

func TestSetupRoutes_Config(t *testing.T) {
	srv, _ := setupServer(t)

	code, body := get(t, srv.URL+"/api/config")
	require.Equal(t, http.StatusOK, code)

	var cfg handler.ConfigResponse
	require.NoError(t, json.Unmarshal([]byte(body), &cfg))
	assert.Equal(t, "dummy", cfg.Camera)
	assert.Equal(t, 15, cfg.Exposure)
	assert.Equal(t, 2, cfg.Gain)
	assert.False(t, cfg.HasFocus)
	assert.Equal(t, 10, cfg.MaxResults)
}

func TestSetupRoutes_Logs(t *testing.T) {
	srv, _ := setupServer(t)

	code, _ := get(t, srv.URL+"/logs/info")
	assert.Equal(t, http.StatusOK, code)

	resp, err := http.Post(srv.URL+"/logs/error/clear", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	code, _ = get(t, srv.URL+"/logs/debug")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSetupRoutes_SweepBroadcastsEvents(t *testing.T) {
	srv, hub := setupServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := gorilla.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, 5*time.Second, 5*time.Millisecond)

	resp, err := http.Post(srv.URL+"/api/capture", "application/json", strings.NewReader(`{"focus_min":0,"focus_max":1,"focus_step":1}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	for i := 0; i < 2; i++ {
		var ev events.JobEvent
		require.NoError(t, conn.ReadJSON(&ev))
		assert.Equal(t, i, ev.Sequence)
		assert.Equal(t, model.StateSuccess, ev.State)
		assert.Empty(t, ev.Error)
	}

	code, body := get(t, srv.URL+"/api/sweeps")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"succeeded":2`)
}

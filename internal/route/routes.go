package route

import (
	"net/http"
	"os"
	"path/filepath"

	"camserver/internal/config"
	"camserver/internal/dto"
	"camserver/internal/handler"
	"camserver/internal/hardware"
	"camserver/internal/logger"
	"camserver/internal/middleware"
	"camserver/internal/repository"
	"camserver/internal/service/capture"
	"camserver/internal/service/storage"
	"camserver/internal/service/websocket"
)

// StaticDir holds the UI files served under / and /static/.
var StaticDir = "static"

// Services are the components the HTTP layer talks to.
type Services struct {
	Device    *hardware.Device
	Sequencer *capture.Sequencer
	Store     *storage.Store
	Sweeps    repository.SweepRepository
	Hub       *websocket.HubService
}

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join(StaticDir, filepath.Clean("/"+path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers the API, log and UI routes and wraps the mux with
// request logging.
func SetupRoutes(svc Services, cfg *config.Config, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(StaticDir))))

	base := cfg.CameraConfig()
	defaults := dto.SweepRequest{Exposure: base.Exposure, Gain: base.Gain}

	// API endpoints
	mux.HandleFunc("POST /api/capture", handler.StartSweepHandler(svc.Sequencer, defaults, log))
	mux.HandleFunc("GET /api/images", handler.ListImagesHandler(svc.Store, cfg.MaxResults, log))
	mux.HandleFunc("GET /api/images/file", handler.ImageFileHandler(svc.Store, log))
	mux.HandleFunc("DELETE /api/images", handler.DeleteImageHandler(svc.Store, log))
	mux.HandleFunc("POST /api/images/clear", handler.ClearImagesHandler(svc.Store, log))
	mux.HandleFunc("POST /api/stage/init", handler.InitStageHandler(svc.Device, log))
	mux.HandleFunc("POST /api/stage/close", handler.CloseStageHandler(svc.Device, log))
	mux.HandleFunc("GET /api/sweeps", handler.ListSweepsHandler(svc.Sweeps, svc.Store, log))
	mux.HandleFunc("GET /api/sweeps/{id}", handler.GetSweepHandler(svc.Sweeps, svc.Store, log))
	mux.HandleFunc("GET /api/config", handler.ConfigHandler(cfg, svc.Device, svc.Sequencer, log))
	mux.HandleFunc("GET /api/events", handler.EventsWebsocketHandler(svc.Hub, log))

	// Log endpoints
	for level, file := range map[string]string{
		"info":    logger.InfoFile,
		"warning": logger.WarningFile,
		"error":   logger.ErrorFile,
	} {
		mux.HandleFunc("GET /logs/"+level, handler.ShowLogsHandler(log, file))
		mux.HandleFunc("POST /logs/"+level+"/clear", handler.ClearLogsHandler(log, file))
	}

	// Automatic HTML handler mapping for example: /settings -> /static/settings.html
	mux.HandleFunc("GET /", dynamicHTMLHandler)

	return middleware.LoggingMiddleware(log, mux)
}

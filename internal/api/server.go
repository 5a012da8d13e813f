package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/snapgrab/snapgrab/internal/capture"
	"github.com/snapgrab/snapgrab/internal/config"
	"github.com/snapgrab/snapgrab/internal/display"
	"github.com/snapgrab/snapgrab/internal/encoder"
	"github.com/snapgrab/snapgrab/internal/logger"
)

// Version reported by the health endpoint
const Version = "0.1.0"

// CaptureEngine is the capture surface the server drives.
// *capture.AsyncEngine implements it.
type CaptureEngine interface {
	Capture(region capture.Region, savePath string) <-chan capture.Result
}

// Server represents the HTTP API server
type Server struct {
	router    *mux.Router
	engine    CaptureEngine
	configMgr *config.Manager
	upgrader  websocket.Upgrader

	listDisplays func() ([]display.Info, error)
}

// NewServer creates a new API server
func NewServer(engine CaptureEngine, configMgr *config.Manager) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		engine:    engine,
		configMgr: configMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
		listDisplays: display.List,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Capture
	api.HandleFunc("/screenshot", s.handleScreenshot).Methods("GET")
	api.HandleFunc("/ws", s.handleWS)

	// Display management
	api.HandleFunc("/displays", s.handleDisplays).Methods("GET")

	// Configuration
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/config", s.handleUpdateConfig).Methods("PUT")

	// Health check
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Simple index page listing the endpoints
	s.router.PathPrefix("/").HandlerFunc(s.handleIndex)
}

// Handler returns the server's HTTP handler, CORS included.
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start starts the HTTP server
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logger.WithComponent("api").Info().Str("addr", addr).Msg("starting server")
	return http.ListenAndServe(addr, s.Handler())
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// captureRequest is one region request, from query parameters or a
// websocket message.
type captureRequest struct {
	X      int32  `json:"x"`
	Y      int32  `json:"y"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
	Format string `json:"format,omitempty"`
}

func (r captureRequest) region() capture.Region {
	return capture.Region{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

// parseScreenshotQuery builds a capture request from query parameters.
// x and y default to 0; width and height are required.
func parseScreenshotQuery(q url.Values) (captureRequest, error) {
	var req captureRequest

	xStr := q.Get("x")
	if xStr == "" {
		xStr = "0"
	}
	x, err := strconv.ParseInt(xStr, 10, 32)
	if err != nil {
		return req, fmt.Errorf("invalid x: %q", q.Get("x"))
	}

	yStr := q.Get("y")
	if yStr == "" {
		yStr = "0"
	}
	y, err := strconv.ParseInt(yStr, 10, 32)
	if err != nil {
		return req, fmt.Errorf("invalid y: %q", q.Get("y"))
	}

	widthStr := q.Get("width")
	heightStr := q.Get("height")
	if widthStr == "" || heightStr == "" {
		return req, errors.New("width and height are required")
	}
	width, err := strconv.ParseUint(widthStr, 10, 32)
	if err != nil {
		return req, fmt.Errorf("invalid width: %q", widthStr)
	}
	height, err := strconv.ParseUint(heightStr, 10, 32)
	if err != nil {
		return req, fmt.Errorf("invalid height: %q", heightStr)
	}

	req.X = int32(x)
	req.Y = int32(y)
	req.Width = uint32(width)
	req.Height = uint32(height)
	req.Format = q.Get("format")
	return req, nil
}

// HTTP Handlers

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	req, err := parseScreenshotQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res := <-s.engine.Capture(req.region(), "")
	if res.Err != nil {
		s.writeCaptureError(w, res.Err)
		return
	}

	format := encoder.ParseFormat(req.Format)
	var buf bytes.Buffer
	if err := encoder.Encode(&buf, format, res.Data.Pixels, res.Data.Width, res.Data.Height, s.jpegQuality()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}

// writeCaptureError maps engine errors to status codes. A bad region is
// the client's fault; anything else means the capture pipeline is
// unavailable right now.
func (s *Server) writeCaptureError(w http.ResponseWriter, err error) {
	if errors.Is(err, capture.ErrInvalidRegion) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.WithComponent("api").Error().Err(err).Msg("capture failed")
	http.Error(w, err.Error(), http.StatusServiceUnavailable)
}

func (s *Server) jpegQuality() int {
	if s.configMgr == nil {
		return encoder.DefaultJPEGQuality
	}
	return s.configMgr.Get().Capture.JPEGQuality
}

func (s *Server) handleDisplays(w http.ResponseWriter, r *http.Request) {
	displays, err := s.listDisplays()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(displays)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.configMgr == nil {
		http.Error(w, "configuration unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.configMgr.Get())
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	if s.configMgr == nil {
		http.Error(w, "configuration unavailable", http.StatusServiceUnavailable)
		return
	}

	var cfg config.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.configMgr.Update(&cfg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "success"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}

// handleWS serves captures over a websocket. Each client text message is
// one JSON capture request and each reply one binary encoded image; the
// client drives the rate.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithComponent("api").Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := logger.WithComponent("api")
	for {
		var req captureRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}

		res := <-s.engine.Capture(req.region(), "")
		if res.Err != nil {
			if err := conn.WriteJSON(map[string]string{"error": res.Err.Error()}); err != nil {
				return
			}
			continue
		}

		format := encoder.ParseFormat(req.Format)
		var buf bytes.Buffer
		if err := encoder.Encode(&buf, format, res.Data.Pixels, res.Data.Width, res.Data.Height, s.jpegQuality()); err != nil {
			if err := conn.WriteJSON(map[string]string{"error": err.Error()}); err != nil {
				return
			}
			continue
		}

		if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
			return
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		if !strings.HasPrefix(r.URL.Path, "/api") {
			http.NotFound(w, r)
		}
		return
	}

	html := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>snapgrab</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            max-width: 700px;
            margin: 50px auto;
            padding: 20px;
        }
        code {
            background: #f5f5f5;
            padding: 2px 6px;
            border-radius: 3px;
        }
    </style>
</head>
<body>
    <h1>snapgrab</h1>
    <p>On-demand screen region capture.</p>
    <h3>API Endpoints:</h3>
    <ul>
        <li><a href="/api/v1/health">/api/v1/health</a> - Server health check</li>
        <li><a href="/api/v1/displays">/api/v1/displays</a> - List active displays</li>
        <li><a href="/api/v1/config">/api/v1/config</a> - View configuration</li>
        <li><code>/api/v1/screenshot?x=0&amp;y=0&amp;width=800&amp;height=600&amp;format=png</code> - Capture a region</li>
        <li><code>/api/v1/ws</code> - WebSocket capture, one image per JSON request</li>
    </ul>
</body>
</html>`

	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(html))
}

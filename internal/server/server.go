package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/andesmap/predial/internal/analyze"
	"github.com/andesmap/predial/internal/api"
	"github.com/andesmap/predial/internal/draw"
	"github.com/andesmap/predial/internal/export"
	"github.com/andesmap/predial/internal/logger"
	"github.com/andesmap/predial/internal/overlay"
	"github.com/andesmap/predial/internal/report"
	"github.com/andesmap/predial/internal/session"
	"github.com/andesmap/predial/internal/sse"
)

// Config holds the server configuration.
type Config struct {
	Host        string
	Port        string
	AnalysisURL string // base URL of the external intersection service
	CatalogPath string // optional ecosystem catalog YAML
	WebDir      string // path to web/ directory for static files
	Timeout     time.Duration
}

// Server is the predial HTTP server. It owns the session state: store,
// drawing controller, overlay synchronizer and the SSE renderer feeding
// connected browsers.
type Server struct {
	config  Config
	mux     *http.ServeMux
	humaAPI huma.API

	services *api.Services
	cancel   context.CancelFunc
}

// New creates a predial server wired over the external analysis
// service at cfg.AnalysisURL.
func New(cfg Config) *Server {
	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("predial API", "1.0.0")
	humaConfig.Info.Description = "Parcel restriction-analysis session API: draw or upload land parcels, analyze them against reference layers, and drive the map overlay."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}

	humaAPI := humago.New(mux, humaConfig)

	catalog, err := report.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.L().Warn("ecosystem catalog unavailable, lookups disabled", "err", err)
	}

	client := analyze.NewClient(cfg.AnalysisURL, &http.Client{Timeout: cfg.Timeout})
	bus := session.NewEventBus()
	store := session.NewStore(client, bus)
	renderer := sse.NewRenderer()
	ov := overlay.NewSynchronizer(store, catalog, renderer)
	canvas := draw.NewMemoryCanvas()
	controller := draw.NewController(store, canvas, ov)

	// The browser map shim expects the mvt:// scheme exactly once per
	// process, regardless of how many clients initialize a map.
	if err := overlay.RegisterProtocol("mvt", func() error { return nil }); err != nil {
		logger.L().Warn("tile protocol registration failed", "err", err)
	}

	services := &api.Services{
		Store:      store,
		Controller: controller,
		Overlay:    ov,
		Uploader:   client,
		Catalog:    catalog,
		Renderer:   renderer,
		Bus:        bus,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go ov.Watch(ctx, bus)

	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humaAPI,
		services: services,
		cancel:   cancel,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close stops the background synchronizer.
func (s *Server) Close() error {
	s.cancel()
	return nil
}

// OpenAPI returns the generated OpenAPI spec.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

func (s *Server) routes() {
	api.RegisterRoutes(s.humaAPI, s.services)

	// Upload and export move raw bytes, so they stay on the plain mux.
	s.mux.HandleFunc("/api/v1/upload", s.handleUpload)
	s.mux.HandleFunc("/api/v1/export/geojson", s.handleExportGeoJSON)
	s.mux.HandleFunc("/api/v1/export/csv", s.handleExportCSV)

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
		s.mux.HandleFunc("/viewer", s.handleViewer)
	}
	s.mux.HandleFunc("/", s.handleRoot)
}

// handleUpload receives a spatial file, forwards it to the external
// parsing endpoint and submits the resulting collection as one batch.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(50 << 20); err != nil {
		http.Error(w, "Failed to parse upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	fc, err := s.services.Uploader.Upload(r.Context(), header.Filename, file)
	if err != nil {
		logger.L().Warn("upload rejected", "file", header.Filename, "err", err)
		status := http.StatusBadGateway
		if errors.Is(err, analyze.ErrUploadFailed) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	created, err := s.services.Controller.SubmitUpload(r.Context(), fc)
	if err != nil {
		http.Error(w, "Hubo un error al procesar la solicitud espacial. Intenta nuevamente.", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"parcels": %d}`, len(created))
}

func (s *Server) handleExportGeoJSON(w http.ResponseWriter, r *http.Request) {
	data, err := export.GeoJSON(s.services.Store.Records(), s.services.Catalog)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Content-Disposition", `attachment; filename="terrenos.geojson"`)
	w.Write(data)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="terrenos.csv"`)
	if err := export.CSV(w, s.services.Store.Records(), s.services.Catalog); err != nil {
		logger.L().Error("csv export failed", "err", err)
	}
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.config.WebDir, "templates", "viewer.html"))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"service": "predial", "status": "running"}`)
}

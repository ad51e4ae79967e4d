// Package server exposes scenario captures and capture analysis over HTTP.
//
// # Endpoints
//
//	GET  /api/scenarios            - List available scenarios.
//	GET  /api/scenarios/{name}/pcap - Render one scenario as a capture file.
//	POST /api/analyze              - Decode an uploaded capture (multipart "file").
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/Eissayou/k4pcap/internal/analyzer"
	"github.com/Eissayou/k4pcap/internal/generator"
	"github.com/Eissayou/k4pcap/internal/geoip"
	"github.com/Eissayou/k4pcap/internal/scenario"
)

const (
	// MaxUploadBytes bounds the size of an uploaded capture.
	MaxUploadBytes = 100 << 20

	// MaxGeoIPLookups bounds the number of distinct addresses looked up per
	// request.
	MaxGeoIPLookups = 20

	shutdownTimeout = 5 * time.Second
)

// Locator resolves public addresses. *geoip.Reader implements it.
type Locator interface {
	Lookup(addr netip.Addr) (*geoip.Location, error)
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	catalog *scenario.Catalog
	gen     *generator.Generator
	geo     Locator
	logger  *slog.Logger
}

// New returns a Server. geo may be nil, in which case analyses carry no
// locations.
func New(catalog *scenario.Catalog, gen *generator.Generator, geo Locator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{catalog: catalog, gen: gen, geo: geo, logger: logger}
}

// Handler returns the routed, CORS-enabled handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/scenarios", s.handleList)
	mux.HandleFunc("GET /api/scenarios/{name}/pcap", s.handleCapture)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	return enableCORS(mux)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully,
// allowing in-flight requests up to five seconds to complete.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	s.logger.Info("server exited")
	return nil
}

// enableCORS adds Cross-Origin Resource Sharing headers to every response
// and answers preflight requests immediately.
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ScenarioInfo is one entry of GET /api/scenarios.
type ScenarioInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Steps       int    `json:"steps"`
	URL         string `json:"url"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	all := s.catalog.All()
	out := make([]ScenarioInfo, 0, len(all))
	for _, sc := range all {
		out = append(out, ScenarioInfo{
			Name:        sc.Name,
			Description: sc.Description,
			Steps:       len(sc.Steps),
			URL:         "/api/scenarios/" + sc.Name + "/pcap",
		})
	}
	s.writeJSON(w, out)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	sc, err := s.catalog.Get(r.PathValue("name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.tcpdump.pcap")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sc.FileName()))
	n, err := s.gen.Render(r.Context(), w, sc)
	if err != nil {
		// Headers are gone; the client sees a truncated body.
		s.logger.Warn("capture stream aborted", "scenario", sc.Name, "records", n, "error", err)
		return
	}
	s.logger.Info("capture served", "scenario", sc.Name, "records", n)
}

// AnalyzeResponse is the body of POST /api/analyze.
type AnalyzeResponse struct {
	Summary   *analyzer.Summary `json:"summary"`
	Locations []geoip.Location  `json:"locations"`

	// MapError explains why Locations is empty when geolocation is off.
	MapError string `json:"mapError,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.logger.Warn("failed to parse multipart form", "error", err)
		http.Error(w, "Unable to parse form", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "File is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.logger.Error("failed to read upload", "error", err)
		http.Error(w, "Failed to read file", http.StatusInternalServerError)
		return
	}

	s.logger.Info("analyzing capture", "size", len(content))
	summary, err := analyzer.Inspect(content)
	if err != nil {
		s.logger.Warn("analysis failed", "error", err)
		http.Error(w, fmt.Sprintf("Analysis failed: %v", err), http.StatusUnprocessableEntity)
		return
	}

	resp := AnalyzeResponse{Summary: summary, Locations: []geoip.Location{}}
	if s.geo == nil {
		resp.MapError = "GeoIP database not configured"
	} else {
		resp.Locations = s.locate(summary)
	}
	s.writeJSON(w, resp)
}

// locate looks up the distinct routable endpoints of summary, in order of
// first appearance.
func (s *Server) locate(summary *analyzer.Summary) []geoip.Location {
	seen := make(map[netip.Addr]bool)
	locations := []geoip.Location{}
	for _, rec := range summary.Records {
		for _, addr := range []netip.Addr{rec.SrcIP, rec.DstIP} {
			if seen[addr] || !geoip.Routable(addr) || len(seen) >= MaxGeoIPLookups {
				continue
			}
			seen[addr] = true
			loc, err := s.geo.Lookup(addr)
			if err != nil {
				s.logger.Warn("geoip lookup failed", "ip", addr, "error", err)
				continue
			}
			locations = append(locations, *loc)
		}
	}
	return locations
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("error encoding response", "error", err)
	}
}

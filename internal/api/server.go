// Package api exposes the vessel services over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"vessel-metrics-monitor/internal/analysis"
	"vessel-metrics-monitor/internal/db"
	"vessel-metrics-monitor/internal/detector"
	"vessel-metrics-monitor/internal/models"
	"vessel-metrics-monitor/internal/monitoring"
	"vessel-metrics-monitor/internal/parser"
	"vessel-metrics-monitor/internal/verrors"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server represents the API server
type Server struct {
	db         *db.Database
	waypoints  *analysis.WaypointService
	compliance *analysis.ComplianceService
	detector   *detector.Detector
	router     *mux.Router
	logger     *logrus.Logger
}

// NewServer creates a new API server
func NewServer(database *db.Database, waypoints *analysis.WaypointService, compliance *analysis.ComplianceService, det *detector.Detector, logger *logrus.Logger) *Server {
	s := &Server{
		db:         database,
		waypoints:  waypoints,
		compliance: compliance,
		detector:   det,
		router:     mux.NewRouter(),
		logger:     logger,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	s.router.HandleFunc("/api/v1/vessels/compare-compliance", s.handleCompareCompliance).Methods("GET")
	s.router.HandleFunc("/api/v1/vessels/{code}/speed-differences", s.handleSpeedDifferences).Methods("GET")
	s.router.HandleFunc("/api/v1/vessels/{code}/validation-issues", s.handleValidationIssues).Methods("GET")
	s.router.HandleFunc("/api/v1/vessels/{code}/problematic-waypoints", s.handleProblematicWaypoints).Methods("GET")
	s.router.HandleFunc("/api/v1/vessels/{code}/data", s.handleVesselData).Methods("GET")
	s.router.HandleFunc("/api/v1/detect-outliers", s.handleDetectOutliers).Methods("POST")
	s.router.HandleFunc("/api/v1/stats", s.handleStats).Methods("GET")

	s.router.Use(s.loggingMiddleware)
	s.router.Use(jsonMiddleware)
	s.router.Use(metricsMiddleware)
}

// Router returns the configured router
func (s *Server) Router() *mux.Router {
	return s.router
}

// Middleware
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Info("Request handled")
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/metrics" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		monitoring.RequestsTotal.WithLabelValues(path, r.Method).Inc()
		monitoring.RequestDuration.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
	})
}

// Response helpers
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Meta    *meta       `json:"meta,omitempty"`
}

type meta struct {
	Total   int   `json:"total,omitempty"`
	Limit   int   `json:"limit,omitempty"`
	Offset  int   `json:"offset,omitempty"`
	QueryMs int64 `json:"query_ms,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: false, Error: message})
}

func respondWithMeta(w http.ResponseWriter, data interface{}, m *meta) {
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data, Meta: m})
}

// respondServiceError maps the error taxonomy to HTTP statuses
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case verrors.IsVesselNotFound(err):
		respondError(w, http.StatusNotFound, err.Error())
	case verrors.IsInvalidArgument(err):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.WithField("error", err).Error("Request failed")
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// Handlers
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// speedDifferenceDTO is the per-record view the speed-differences
// endpoint returns
type speedDifferenceDTO struct {
	Timestamp       *time.Time `json:"timestamp"`
	Latitude        *float64   `json:"latitude"`
	Longitude       *float64   `json:"longitude"`
	SpeedDifference *float64   `json:"speed_difference"`
}

func (s *Server) handleSpeedDifferences(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	code := mux.Vars(r)["code"]

	exists, err := s.db.VesselExists(r.Context(), code)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if !exists {
		s.respondServiceError(w, verrors.NewVesselNotFound(code))
		return
	}

	limit, offset := pagination(r, 100)
	records, err := s.db.FindRecordsPage(r.Context(), code, models.StatusValid, limit, offset)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	dtos := make([]speedDifferenceDTO, 0, len(records))
	for i := range records {
		dtos = append(dtos, speedDifferenceDTO{
			Timestamp:       records[i].Timestamp,
			Latitude:        records[i].Latitude,
			Longitude:       records[i].Longitude,
			SpeedDifference: records[i].SpeedDifference,
		})
	}

	respondWithMeta(w, dtos, &meta{
		Total:   len(dtos),
		Limit:   limit,
		Offset:  offset,
		QueryMs: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleValidationIssues(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	exists, err := s.db.VesselExists(r.Context(), code)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if !exists {
		s.respondServiceError(w, verrors.NewVesselNotFound(code))
		return
	}

	counts, err := s.db.IssueSummary(r.Context(), code)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, counts)
}

func (s *Server) handleProblematicWaypoints(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var kind *models.ProblemKind
	if v := r.URL.Query().Get("problem_kind"); v != "" {
		parsed, err := models.ParseProblemKind(v)
		if err != nil {
			s.respondServiceError(w, err)
			return
		}
		kind = &parsed
	}

	groups, err := s.waypoints.GroupProblematicWaypoints(r.Context(), code, kind)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, groups)
}

func (s *Server) handleCompareCompliance(w http.ResponseWriter, r *http.Request) {
	code1 := r.URL.Query().Get("vessel_code1")
	code2 := r.URL.Query().Get("vessel_code2")
	if code1 == "" || code2 == "" {
		respondError(w, http.StatusBadRequest, "vessel_code1 and vessel_code2 are required")
		return
	}

	comparison, err := s.compliance.CompareCompliance(r.Context(), code1, code2)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, comparison)
}

func (s *Server) handleVesselData(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	code := mux.Vars(r)["code"]

	exists, err := s.db.VesselExists(r.Context(), code)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if !exists {
		s.respondServiceError(w, verrors.NewVesselNotFound(code))
		return
	}

	q := models.RecordQuery{VesselCode: code}
	q.Limit, q.Offset = pagination(r, 100)

	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(parser.DateTimeLayout, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid start (use yyyy-MM-dd HH:mm:ss)")
			return
		}
		q.StartTime = t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(parser.DateTimeLayout, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid end (use yyyy-MM-dd HH:mm:ss)")
			return
		}
		q.EndTime = t
	}

	records, err := s.db.QueryRecords(r.Context(), q)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondWithMeta(w, records, &meta{
		Total:   len(records),
		Limit:   q.Limit,
		Offset:  q.Offset,
		QueryMs: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleDetectOutliers(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("vessel_code")

	var err error
	if code != "" {
		err = s.detector.DetectVessel(r.Context(), code)
	} else {
		err = s.detector.DetectAll(r.Context())
	}
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.Stats(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// pagination reads limit/offset query parameters with a default limit
func pagination(r *http.Request, defaultLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

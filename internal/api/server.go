// Package api exposes the telemetry and optimization state over HTTP,
// plus a Prometheus scrape endpoint.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shizukutanaka/Mihari/internal/alerting"
	"github.com/shizukutanaka/Mihari/internal/analyzer"
	"github.com/shizukutanaka/Mihari/internal/collector"
	"github.com/shizukutanaka/Mihari/internal/optimizer"
)

// defaultRangeWindow is the query window when start/end are omitted.
const defaultRangeWindow = time.Hour

// Server serves the read API and the manual optimization trigger.
type Server struct {
	logger *zap.Logger
	orch   *collector.Orchestrator
	engine *optimizer.Engine
	alerts *alerting.Manager

	httpServer *http.Server
	registry   *prometheus.Registry
}

// NewServer builds the server and registers its Prometheus gauges.
func NewServer(logger *zap.Logger, addr string, orch *collector.Orchestrator, engine *optimizer.Engine, alerts *alerting.Manager) *Server {
	s := &Server{
		logger:   logger,
		orch:     orch,
		engine:   engine,
		alerts:   alerts,
		registry: prometheus.NewRegistry(),
	}
	s.registerMetrics()

	r := mux.NewRouter()
	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	v1.HandleFunc("/snapshots", s.handleSnapshots).Methods(http.MethodGet)
	v1.HandleFunc("/snapshots/export", s.handleExport).Methods(http.MethodGet)
	v1.HandleFunc("/aggregated", s.handleAggregated).Methods(http.MethodGet)
	v1.HandleFunc("/trends", s.handleTrends).Methods(http.MethodGet)
	v1.HandleFunc("/anomalies", s.handleAnomalies).Methods(http.MethodGet)
	v1.HandleFunc("/alerts", s.handleAlerts).Methods(http.MethodGet)
	v1.HandleFunc("/alerts/{id}/acknowledge", s.handleAcknowledge).Methods(http.MethodPost)
	v1.HandleFunc("/alerts/{id}/resolve", s.handleResolve).Methods(http.MethodPost)
	v1.HandleFunc("/report", s.handleReport).Methods(http.MethodGet)
	v1.HandleFunc("/optimizer/stats", s.handleOptimizerStats).Methods(http.MethodGet)
	v1.HandleFunc("/optimizer/records", s.handleOptimizerRecords).Methods(http.MethodGet)
	v1.HandleFunc("/optimizer/strategies", s.handleStrategies).Methods(http.MethodGet)
	v1.HandleFunc("/optimizer/effects", s.handleEffects).Methods(http.MethodGet)
	v1.HandleFunc("/optimizer/recommendations", s.handleRecommendations).Methods(http.MethodGet)
	v1.HandleFunc("/optimizer/predict", s.handlePredict).Methods(http.MethodGet)
	v1.HandleFunc("/optimizer/report", s.handleOptimizerReport).Methods(http.MethodGet)
	v1.HandleFunc("/optimizer/optimize", s.handleOptimize).Methods(http.MethodPost)

	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start begins serving. It blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	s.logger.Info("api server listening", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerMetrics() {
	gauge := func(name, help string, fn func() float64) {
		s.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "mihari",
			Name:      name,
			Help:      help,
		}, fn))
	}

	gauge("cpu_usage_percent", "CPU usage from the latest snapshot.", func() float64 {
		if snap, ok := s.orch.LatestSnapshot(); ok {
			return snap.CPU.Usage
		}
		return 0
	})
	gauge("memory_usage_percent", "Memory usage from the latest snapshot.", func() float64 {
		if snap, ok := s.orch.LatestSnapshot(); ok {
			return snap.Memory.UsagePercent()
		}
		return 0
	})
	gauge("disk_usage_percent", "Disk usage from the latest snapshot.", func() float64 {
		if snap, ok := s.orch.LatestSnapshot(); ok {
			return snap.Disk.Usage
		}
		return 0
	})
	gauge("network_errors_total", "Cumulative network errors from the latest snapshot.", func() float64 {
		if snap, ok := s.orch.LatestSnapshot(); ok {
			return float64(snap.Network.Errors)
		}
		return 0
	})
	gauge("snapshots_stored", "Snapshots currently held in the store.", func() float64 {
		return float64(s.orch.StorageUsage().Entries)
	})
	gauge("alerts_total", "Alerts currently held in the alert log.", func() float64 {
		return float64(s.alerts.Count())
	})
	gauge("optimization_cycles_total", "Optimization cycles recorded this session.", func() float64 {
		return float64(s.engine.Stats().Sessions)
	})
	gauge("optimization_avg_improvement_percent", "Average improvement over successful strategy executions.", func() float64 {
		return s.engine.Stats().AvgImprovement
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, hasSnap := s.orch.LatestSnapshot()
	resp := map[string]interface{}{
		"monitor_state":   s.orch.State().String(),
		"optimizer_state": s.engine.State().String(),
		"storage":         s.orch.StorageUsage(),
		"alerts":          s.alerts.Count(),
		"optimizer":       s.engine.Stats(),
	}
	if hasSnap {
		resp["snapshot"] = snap
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.orch.LatestSnapshot()
	if !ok {
		s.writeError(w, http.StatusNotFound, "no snapshot captured yet")
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if n := queryInt(r, "recent", 0); n > 0 {
		s.writeJSON(w, http.StatusOK, s.orch.RecentSnapshots(n))
		return
	}
	start, end, ok := s.queryRange(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.orch.RangeSnapshots(start, end))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	start, end, ok := s.queryRange(w, r)
	if !ok {
		return
	}
	snaps := s.orch.RangeSnapshots(start, end)

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		res := collector.ExportJSON(snaps)
		if !res.IsOk() {
			s.writeError(w, http.StatusInternalServerError, res.Err().Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(res.Value()))
	case "csv":
		res := collector.ExportCSV(snaps)
		if !res.IsOk() {
			s.writeError(w, http.StatusInternalServerError, res.Err().Error())
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(res.Value()))
	default:
		s.writeError(w, http.StatusBadRequest, "unknown export format "+format)
	}
}

func (s *Server) handleAggregated(w http.ResponseWriter, r *http.Request) {
	start, end, ok := s.queryRange(w, r)
	if !ok {
		return
	}
	bucket, err := queryDuration(r, "bucket", 5*time.Minute)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res := s.orch.Aggregated(start, end, bucket)
	if !res.IsOk() {
		s.writeError(w, http.StatusBadRequest, res.Err().Error())
		return
	}
	s.writeJSON(w, http.StatusOK, res.Value())
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	start, end, ok := s.queryRange(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.orch.Trends(start, end))
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	start, end, ok := s.queryRange(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.orch.Anomalies(start, end))
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	severity := analyzer.Severity(r.URL.Query().Get("severity"))
	limit := queryInt(r, "limit", 100)
	s.writeJSON(w, http.StatusOK, s.alerts.Alerts(severity, limit))
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.alerts.Acknowledge(id) {
		s.writeError(w, http.StatusNotFound, "alert not found: "+id)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"acknowledged": id})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.alerts.Resolve(id) {
		s.writeError(w, http.StatusNotFound, "alert not found: "+id)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"resolved": id})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	start, end, ok := s.queryRange(w, r)
	if !ok {
		return
	}
	typ := collector.ReportType(r.URL.Query().Get("type"))
	if typ == "" {
		typ = collector.ReportTypeComprehensive
	}
	res := s.orch.GenerateReport(start, end, typ)
	if !res.IsOk() {
		s.writeError(w, http.StatusBadRequest, res.Err().Error())
		return
	}
	s.writeJSON(w, http.StatusOK, res.Value())
}

func (s *Server) handleOptimizerStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleOptimizerRecords(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.RecentRecords(queryInt(r, "recent", 50)))
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Strategies().Strategies())
}

func (s *Server) handleEffects(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.StrategyEffects())
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Recommendations())
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	start, end, ok := s.queryRange(w, r)
	if !ok {
		return
	}
	bucket, err := queryDuration(r, "bucket", 5*time.Minute)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Predict(start, end, bucket))
}

func (s *Server) handleOptimizerReport(w http.ResponseWriter, r *http.Request) {
	start, end, ok := s.queryRange(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.GenerateOptimizationReport(start, end))
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var targets []optimizer.IssueType
	for _, t := range r.URL.Query()["target"] {
		targets = append(targets, optimizer.IssueType(t))
	}
	res := s.engine.PerformOptimization(targets...)
	if !res.IsOk() {
		s.writeError(w, http.StatusConflict, res.Err().Error())
		return
	}
	s.writeJSON(w, http.StatusOK, res.Value())
}

// queryRange parses start/end RFC3339 query parameters, defaulting to
// the last hour.
func (s *Server) queryRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	now := time.Now()
	start, end := now.Add(-defaultRangeWindow), now

	if raw := r.URL.Query().Get("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid start: "+err.Error())
			return start, end, false
		}
		start = t
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid end: "+err.Error())
			return start, end, false
		}
		end = t
	}
	if end.Before(start) {
		s.writeError(w, http.StatusBadRequest, "end precedes start")
		return start, end, false
	}
	return start, end, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func queryDuration(r *http.Request, key string, fallback time.Duration) (time.Duration, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

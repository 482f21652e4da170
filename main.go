package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	prometheusotel "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"searchlite/internal/backend"
	"searchlite/internal/config"
	"searchlite/internal/storage"
)

func main() {
	ctx := context.Background()

	cfg := config.DefaultConfig()

	configPath := flag.String("config", "", "Path to a TOML or YAML config file")
	listen := flag.String("listen", "", "Override the listen address (e.g. :9200)")
	dataDir := flag.String("data-dir", "", "Override the data directory")
	flag.Parse()

	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if envDir := os.Getenv("SEARCHLITE_DATA_DIR"); envDir != "" {
		cfg.Storage.DataDir = envDir
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Logging.Level)}))

	be, err := backend.Open(cfg.Storage.Driver, cfg.Storage.DataDir)
	if err != nil {
		logger.Error("failed to open storage backend", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}

	store, err := storage.Open(be, logger)
	if err != nil {
		logger.Error("failed to load persisted state", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
	}()

	telemetry := newTelemetry(ctx, logger, cfg.Metrics.Enabled != nil && *cfg.Metrics.Enabled)
	server := newAPIServer(store, cfg, telemetry, logger)

	handler := withJSONHeaders(server.routes())
	handler = withTelemetry(handler, telemetry, cfg.Logging.RequestLogs == nil || *cfg.Logging.RequestLogs)

	logger.Info("searchlite listening",
		"listen", cfg.Server.Listen, "driver", cfg.Storage.Driver, "dataDir", cfg.Storage.DataDir)
	if err := http.ListenAndServe(cfg.Server.Listen, handler); err != nil {
		logger.Error("server stopped", "error", err)
	}
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type telemetry struct {
	enabled bool
	logger  *slog.Logger

	registry       *prometheus.Registry
	metricsHandler http.Handler
	meter          metric.Meter

	httpRequests    metric.Int64Counter
	httpErrors      metric.Int64Counter
	httpLatency     metric.Float64Histogram
	mutationOps     metric.Int64Counter
	mutationLatency metric.Float64Histogram
	bulkItems       metric.Int64Counter
	searchOps       metric.Int64Counter
	searchLatency   metric.Float64Histogram

	docsGauge *prometheus.GaugeVec
}

func newTelemetry(ctx context.Context, logger *slog.Logger, enabled bool) *telemetry {
	telemetry := &telemetry{enabled: enabled, logger: logger}
	if !enabled {
		return telemetry
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	exporter, err := prometheusotel.New(prometheusotel.WithRegisterer(registry))
	if err != nil {
		logger.Error("failed to initialize prometheus exporter", "error", err)
		return telemetry
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter("searchlite")

	httpReq, _ := meter.Int64Counter("http_requests_total", metric.WithDescription("Total HTTP requests"))
	httpErr, _ := meter.Int64Counter("http_errors_total", metric.WithDescription("HTTP requests that returned an error status"))
	httpLatency, _ := meter.Float64Histogram("http_request_duration_ms", metric.WithDescription("Latency of HTTP requests in milliseconds"), metric.WithUnit("ms"))
	mutationOps, _ := meter.Int64Counter("document_mutations_total", metric.WithDescription("Document index, update and delete operations"))
	mutationLatency, _ := meter.Float64Histogram("mutation_latency_ms", metric.WithDescription("Latency of document mutations"), metric.WithUnit("ms"))
	bulkItems, _ := meter.Int64Counter("bulk_items_total", metric.WithDescription("Items processed through the bulk endpoint"))
	searchOps, _ := meter.Int64Counter("search_requests_total", metric.WithDescription("Search operations executed"))
	searchLatency, _ := meter.Float64Histogram("search_latency_ms", metric.WithDescription("Latency of search operations"), metric.WithUnit("ms"))

	docsGauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "searchlite", Name: "documents", Help: "Documents currently stored per index"}, []string{"index"})
	registry.MustRegister(docsGauge)

	telemetry.registry = registry
	telemetry.metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	telemetry.meter = meter
	telemetry.httpRequests = httpReq
	telemetry.httpErrors = httpErr
	telemetry.httpLatency = httpLatency
	telemetry.mutationOps = mutationOps
	telemetry.mutationLatency = mutationLatency
	telemetry.bulkItems = bulkItems
	telemetry.searchOps = searchOps
	telemetry.searchLatency = searchLatency
	telemetry.docsGauge = docsGauge

	telemetry.logger.Info("telemetry initialized", "prometheus", true)
	telemetry.httpRequests.Add(ctx, 0) // ensure metric is created eagerly
	return telemetry
}

func (t *telemetry) recordRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	if !t.enabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)
	t.httpRequests.Add(ctx, 1, attrs)
	t.httpLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if status >= http.StatusBadRequest {
		t.httpErrors.Add(ctx, 1, attrs)
	}
}

func (t *telemetry) recordMutation(ctx context.Context, indexName, op string, duration time.Duration) {
	if !t.enabled {
		return
	}

	attrs := metric.WithAttributes(attribute.String("index", indexName), attribute.String("op", op))
	t.mutationOps.Add(ctx, 1, attrs)
	t.mutationLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (t *telemetry) recordBulk(ctx context.Context, indexName string, items int, duration time.Duration) {
	if !t.enabled {
		return
	}

	attrs := metric.WithAttributes(attribute.String("index", indexName))
	t.bulkItems.Add(ctx, int64(items), attrs)
	t.mutationLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (t *telemetry) recordSearch(ctx context.Context, target string, duration time.Duration) {
	if !t.enabled {
		return
	}

	attrs := metric.WithAttributes(attribute.String("target", target))
	t.searchOps.Add(ctx, 1, attrs)
	t.searchLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (t *telemetry) observeDocCount(indexName string, count int) {
	if !t.enabled {
		return
	}

	t.docsGauge.WithLabelValues(indexName).Set(float64(count))
}

func (t *telemetry) dropIndex(indexName string) {
	if !t.enabled {
		return
	}

	t.docsGauge.DeleteLabelValues(indexName)
}

func (t *telemetry) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if !t.enabled || t.registry == nil {
		respond(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}

	t.metricsHandler.ServeHTTP(w, r)
}

func withTelemetry(next http.Handler, telemetry *telemetry, logRequests bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)
		duration := time.Since(start)

		if telemetry != nil {
			telemetry.recordRequest(r.Context(), r.Method, r.URL.Path, recorder.status, duration)
		}
		if logRequests && telemetry != nil && telemetry.logger != nil {
			telemetry.logger.Info("request completed", "method", r.Method, "path", r.URL.Path, "status", recorder.status, "duration_ms", duration.Milliseconds())
		}
	})
}

type apiServer struct {
	store     *storage.Storage
	cfg       config.AppConfig
	telemetry *telemetry
	logger    *slog.Logger
}

func newAPIServer(store *storage.Storage, cfg config.AppConfig, telemetry *telemetry, logger *slog.Logger) *apiServer {
	return &apiServer{store: store, cfg: cfg, telemetry: telemetry, logger: logger}
}

// routes wires every endpoint. Literal patterns take precedence over the
// single-segment index wildcards, so system endpoints such as /_search and
// /_cat/indices never shadow index names, and index names starting with an
// underscore simply cannot collide with registered system routes.
func (s *apiServer) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)

	mux.HandleFunc("GET /_cluster/health", s.handleClusterHealth)
	mux.HandleFunc("GET /_cluster/stats", s.handleClusterStats)
	mux.HandleFunc("GET /_cat/indices", s.handleCatIndices)
	mux.HandleFunc("GET /_aliases", s.handleAliases)
	mux.HandleFunc("GET /_metrics", s.telemetry.handleMetrics)

	mux.HandleFunc("GET /_search", s.handleSearchAll)
	mux.HandleFunc("POST /_search", s.handleSearchAll)
	mux.HandleFunc("POST /_bulk", s.handleBulkAll)
	mux.HandleFunc("PUT /_bulk", s.handleBulkAll)
	mux.HandleFunc("POST /_refresh", s.handleRefreshAll)

	mux.HandleFunc("PUT /{index}", s.handleCreateIndex)
	mux.HandleFunc("GET /{index}", s.handleGetIndex)
	mux.HandleFunc("DELETE /{index}", s.handleDeleteIndex)

	mux.HandleFunc("PUT /{index}/_mapping", s.handleUpdateMapping)
	mux.HandleFunc("PUT /{index}/_mapping/{doctype}", s.handleUpdateMapping)
	mux.HandleFunc("PUT /{index}/_settings", s.handleUpdateSettings)

	mux.HandleFunc("PUT /{index}/_doc/{id}", s.handlePutDocument)
	mux.HandleFunc("POST /{index}/_doc/{id}", s.handlePutDocument)
	mux.HandleFunc("POST /{index}/_doc", s.handleCreateDocument)
	mux.HandleFunc("GET /{index}/_doc/{id}", s.handleGetDocument)
	mux.HandleFunc("DELETE /{index}/_doc/{id}", s.handleDeleteDocument)

	mux.HandleFunc("POST /{index}/_bulk", s.handleBulkIndex)
	mux.HandleFunc("PUT /{index}/_bulk", s.handleBulkIndex)
	mux.HandleFunc("GET /{index}/_search", s.handleSearchIndex)
	mux.HandleFunc("POST /{index}/_search", s.handleSearchIndex)
	mux.HandleFunc("POST /{index}/_refresh", s.handleRefreshIndex)

	return mux
}

func (s *apiServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]any{
		"name":         "searchlite",
		"cluster_name": s.cfg.Cluster.Name,
		"version": map[string]any{
			"number":         s.cfg.ESVersion,
			"lucene_version": "7.7.3",
		},
		"tagline": "You Know, for Search",
	})
}

func (s *apiServer) handleCreateIndex(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("index")

	body, err := decodeBodyObject(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	settings, _ := body["settings"].(map[string]any)
	mappings, _ := body["mappings"].(map[string]any)

	if err := s.store.CreateIndex(name, settings, mappings); err != nil {
		s.respondError(w, err)
		return
	}
	s.telemetry.observeDocCount(name, 0)
	respond(w, http.StatusOK, map[string]any{
		"acknowledged":        true,
		"shards_acknowledged": true,
		"index":               name,
	})
}

func (s *apiServer) handleGetIndex(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("index")

	// HEAD is the index-exists check and carries no body.
	if r.Method == http.MethodHead {
		if s.store.IndexExists(name) {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
		return
	}

	info, err := s.store.GetIndex(name)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respond(w, http.StatusOK, info)
}

func (s *apiServer) handleDeleteIndex(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("index")

	if err := s.store.DeleteIndex(name); err != nil {
		s.respondError(w, err)
		return
	}
	s.telemetry.dropIndex(name)
	respond(w, http.StatusOK, map[string]any{"acknowledged": true})
}

func (s *apiServer) handleUpdateMapping(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("index")

	body, err := decodeBodyObject(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.store.UpdateMapping(name, body); err != nil {
		s.respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"acknowledged": true})
}

func (s *apiServer) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("index")

	body, err := decodeBodyObject(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if settings, ok := body["settings"].(map[string]any); ok {
		body = settings
	}
	if err := s.store.UpdateSettings(name, body); err != nil {
		s.respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"acknowledged": true})
}

func (s *apiServer) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := r.PathValue("index")
	id := r.PathValue("id")

	body, err := decodeBodyObject(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	result, err := s.store.IndexDocument(name, id, body)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.telemetry.recordMutation(r.Context(), name, "index", time.Since(start))
	s.observeIndexDocs(name)

	status := http.StatusOK
	verb := "updated"
	if result.Created {
		status = http.StatusCreated
		verb = "created"
	}
	respond(w, status, documentMutationBody(name, id, verb))
}

func (s *apiServer) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := r.PathValue("index")

	body, err := decodeBodyObject(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	id, _, err := s.store.CreateDocument(name, body)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.telemetry.recordMutation(r.Context(), name, "create", time.Since(start))
	s.observeIndexDocs(name)
	respond(w, http.StatusCreated, documentMutationBody(name, id, "created"))
}

func (s *apiServer) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("index")
	id := r.PathValue("id")

	envelope, err := s.store.GetDocument(name, id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respond(w, http.StatusOK, envelope)
}

func (s *apiServer) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := r.PathValue("index")
	id := r.PathValue("id")

	if err := s.store.DeleteDocument(name, id); err != nil {
		s.respondError(w, err)
		return
	}
	s.telemetry.recordMutation(r.Context(), name, "delete", time.Since(start))
	s.observeIndexDocs(name)
	respond(w, http.StatusOK, documentMutationBody(name, id, "deleted"))
}

func (s *apiServer) handleBulkAll(w http.ResponseWriter, r *http.Request) {
	s.executeBulk(w, r, "")
}

func (s *apiServer) handleBulkIndex(w http.ResponseWriter, r *http.Request) {
	s.executeBulk(w, r, r.PathValue("index"))
}

func (s *apiServer) executeBulk(w http.ResponseWriter, r *http.Request, defaultIndex string) {
	start := time.Now()

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		s.respondError(w, fmt.Errorf("read request body: %w", err))
		return
	}
	actions, err := storage.ParseBulkBody(raw, defaultIndex)
	if err != nil {
		s.respondError(w, err)
		return
	}

	resp := s.store.ExecuteBulk(actions)
	s.telemetry.recordBulk(r.Context(), defaultIndex, len(actions), time.Since(start))
	for _, action := range actions {
		s.observeIndexDocs(action.Index)
	}
	respond(w, http.StatusOK, resp)
}

func (s *apiServer) handleSearchAll(w http.ResponseWriter, r *http.Request) {
	s.executeSearch(w, r, "")
}

func (s *apiServer) handleSearchIndex(w http.ResponseWriter, r *http.Request) {
	s.executeSearch(w, r, r.PathValue("index"))
}

func (s *apiServer) executeSearch(w http.ResponseWriter, r *http.Request, target string) {
	start := time.Now()

	req, err := parseSearchRequest(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	result, err := s.store.Search(target, req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.telemetry.recordSearch(r.Context(), target, time.Since(start))
	respond(w, http.StatusOK, result)
}

// parseSearchRequest merges the JSON body with the q, from and size query
// parameters. A q parameter becomes a match query across all fields; the
// body's query wins when both are present.
func parseSearchRequest(r *http.Request) (storage.SearchRequest, error) {
	var req storage.SearchRequest

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return req, fmt.Errorf("read request body: %w", err)
	}
	if len(raw) > 0 {
		var body struct {
			Query     map[string]any `json:"query"`
			From      *int           `json:"from"`
			Size      *int           `json:"size"`
			Sort      any            `json:"sort"`
			Source    any            `json:"_source"`
			Highlight map[string]any `json:"highlight"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return req, invalidRequest(fmt.Sprintf("malformed search body: %v", err))
		}
		req.Query = body.Query
		req.From = body.From
		req.Size = body.Size
		req.Sort = body.Sort
		req.Source = body.Source
		req.Highlight = body.Highlight
	}

	params := r.URL.Query()
	if q := params.Get("q"); q != "" && req.Query == nil {
		req.Query = map[string]any{"match": map[string]any{"_all": q}}
	}
	if raw := params.Get("from"); raw != "" {
		from, err := strconv.Atoi(raw)
		if err != nil {
			return req, invalidRequest("from parameter must be an integer")
		}
		req.From = &from
	}
	if raw := params.Get("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return req, invalidRequest("size parameter must be an integer")
		}
		req.Size = &size
	}
	return req, nil
}

func (s *apiServer) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	s.refresh(w, "")
}

func (s *apiServer) handleRefreshIndex(w http.ResponseWriter, r *http.Request) {
	s.refresh(w, r.PathValue("index"))
}

func (s *apiServer) refresh(w http.ResponseWriter, index string) {
	if err := s.store.Refresh(index); err != nil {
		s.respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"_shards": map[string]any{"total": 1, "successful": 1, "failed": 0},
	})
}

func (s *apiServer) handleClusterHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, s.store.ClusterHealth(s.cfg.Cluster.Name))
}

func (s *apiServer) handleClusterStats(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, s.store.ClusterStats(s.cfg.Cluster.Name, s.cfg.ESVersion))
}

func (s *apiServer) handleAliases(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, s.store.GetAliases())
}

// handleCatIndices renders the plain-text table of _cat/indices. The v
// parameter adds the header row.
func (s *apiServer) handleCatIndices(w http.ResponseWriter, r *http.Request) {
	stats := s.store.IndicesStats()

	var sb strings.Builder
	if r.URL.Query().Has("v") {
		sb.WriteString("health status index uuid pri rep docs.count docs.deleted store.size pri.store.size\n")
	}
	for _, entry := range stats {
		fmt.Fprintf(&sb, "green open %s _na_ 1 0 %d 0 %db %db\n",
			entry.Name, entry.DocCount, entry.SizeInBytes, entry.SizeInBytes)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, sb.String())
}

func (s *apiServer) observeIndexDocs(name string) {
	if !s.telemetry.enabled {
		return
	}
	for _, entry := range s.store.IndicesStats() {
		if entry.Name == name {
			s.telemetry.observeDocCount(name, entry.DocCount)
			return
		}
	}
}

func documentMutationBody(index, id, result string) map[string]any {
	return map[string]any{
		"_index":   index,
		"_type":    "_doc",
		"_id":      id,
		"_version": 1,
		"result":   result,
		"_shards":  map[string]any{"total": 1, "successful": 1, "failed": 0},
	}
}

// decodeBodyObject reads an optional JSON object body. An empty body decodes
// to an empty object; anything else must be a JSON object.
func decodeBodyObject(r *http.Request) (map[string]any, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, invalidRequest(fmt.Sprintf("malformed JSON body: %v", err))
	}
	return body, nil
}

func invalidRequest(reason string) error {
	return storage.InvalidRequest(reason)
}

func respond(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *apiServer) respondError(w http.ResponseWriter, err error) {
	status := storage.StatusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	respond(w, status, storage.ErrorBody(err))
}

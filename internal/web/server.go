package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/meridian-dex/mevshield/internal/config"
	"github.com/meridian-dex/mevshield/internal/engine"
	"github.com/meridian-dex/mevshield/internal/logger"
	"github.com/meridian-dex/mevshield/internal/metrics"
	"github.com/meridian-dex/mevshield/internal/state"
	"github.com/meridian-dex/mevshield/internal/types"
	"github.com/meridian-dex/mevshield/internal/utils"
)

var webLogger = logger.GetForComponent("web_server")

// managerHeader carries the caller identity for admin endpoints. The engine
// decides whether that identity is an authorized manager.
const managerHeader = "X-Manager-Identity"

// WebServer exposes the protection engine's read surface and the
// manager-gated admin surface over HTTP.
type WebServer struct {
	router *mux.Router
	engine *engine.Engine
	port   string
}

// NewWebServer creates a new web server instance bound to an engine.
func NewWebServer(eng *engine.Engine, port string) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		engine: eng,
		port:   port,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// Prometheus scrape endpoint
	ws.router.Handle("/metrics", metrics.GetCollector().Handler()).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/pools", ws.handleGetPools).Methods("GET")
	api.HandleFunc("/pools/{id}", ws.handleGetPool).Methods("GET")
	api.HandleFunc("/pools/{id}/snapshot", ws.handleGetPoolSnapshot).Methods("GET")
	api.HandleFunc("/events/detections", ws.handleGetDetectionEvents).Methods("GET")
	api.HandleFunc("/events/fees", ws.handleGetFeeEvents).Methods("GET")
	api.HandleFunc("/batches", ws.handleGetPendingBatches).Methods("GET")
	api.HandleFunc("/batches/{id}", ws.handleGetBatch).Methods("GET")
	api.HandleFunc("/protection-parameters", ws.handleGetProtectionParameters).Methods("GET")

	// Admin endpoints. The engine enforces manager authorization; the
	// server just forwards the claimed identity.
	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/pools/{id}/pause", ws.handleSetPoolPaused).Methods("POST")
	admin.HandleFunc("/pools/{id}/config", ws.handleUpdateConfig).Methods("POST")
	admin.HandleFunc("/pause", ws.handleSetGlobalPaused).Methods("POST")
	admin.HandleFunc("/batches/{id}/resolve", ws.handleForceResolveBatch).Methods("POST")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns comprehensive server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Get runtime memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false

	// Get database connection status
	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
		hasErrors = true
	}

	pending := ws.engine.PendingBatches()
	stale := ws.engine.AuditStaleBatches()
	if len(stale) > 0 {
		hasErrors = true
	}

	// Determine overall status
	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":            runtime.Version(),
			"goroutines_count":   runtime.NumGoroutine(),
			"total_alloc_bytes":  memStats.TotalAlloc,
			"heap_objects_count": memStats.HeapObjects,
			"alloc_bytes":        memStats.Alloc,
			"sys_bytes":          memStats.Sys,
			"gc_cycles":          memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "mevshield-protection-engine",
			"version": "1.0.0",
		},
		"engine_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"pools_registered": len(ws.engine.PoolIDs()),
			"pending_batches":  len(pending),
			"stale_batches":    len(stale),
		},
	}

	// Set appropriate HTTP status code
	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetPools returns all registered pool IDs, optionally filtered to
// pools holding at least min_liquidity ether-equivalent units.
func (ws *WebServer) handleGetPools(w http.ResponseWriter, r *http.Request) {
	pools := ws.engine.PoolIDs()

	if minStr := r.URL.Query().Get("min_liquidity"); minStr != "" {
		minUnits, err := strconv.ParseFloat(minStr, 64)
		if err != nil {
			ws.writeErrorResponse(w, http.StatusBadRequest, "min_liquidity must be a number")
			return
		}
		minAmount, err := utils.UnitsToAmount(minUnits, int(config.UnitDecimals))
		if err != nil {
			ws.writeErrorResponse(w, http.StatusBadRequest, "min_liquidity out of range")
			return
		}

		kept := make([]types.PoolID, 0, len(pools))
		for _, id := range pools {
			snapshot, err := ws.engine.PoolSnapshot(id)
			if err != nil {
				continue
			}
			if snapshot.TotalLiquidity.GTE(minAmount) {
				kept = append(kept, id)
			}
		}
		pools = kept
	}

	response := map[string]interface{}{
		"pools": pools,
		"count": len(pools),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPool returns the protection state snapshot for one pool
func (ws *WebServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	poolID := types.PoolID(vars["id"])

	snapshot, err := ws.engine.PoolSnapshot(poolID)
	if err != nil {
		ws.writeEngineError(w, err, "Failed to retrieve pool")
		return
	}

	response := map[string]interface{}{
		"pool": snapshot,
	}
	if units, err := utils.AmountToUnits(snapshot.TotalLiquidity, int(config.UnitDecimals)); err == nil {
		response["total_liquidity_units"] = units
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPoolSnapshot returns the last persisted snapshot for a pool. The
// persisted copy can lag the live state by up to one snapshot interval and
// survives restarts that the live registry does not.
func (ws *WebServer) handleGetPoolSnapshot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	poolID := types.PoolID(vars["id"])

	snapshot, err := state.LoadLatestPoolSnapshot(poolID)
	if err != nil {
		webLogger.Error().Err(err).Str("pool", string(poolID)).Msg("Failed to load pool snapshot")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve pool snapshot")
		return
	}
	if snapshot == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "No persisted snapshot for pool")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"pool": snapshot,
	})
}

// handleGetDetectionEvents returns recent detection events
func (ws *WebServer) handleGetDetectionEvents(w http.ResponseWriter, r *http.Request) {
	poolID := types.PoolID(r.URL.Query().Get("pool"))
	limit := ws.parseLimit(r, 50)

	events, err := state.RecentDetectionEvents(poolID, limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get detection events")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve detection events")
		return
	}

	response := map[string]interface{}{
		"events": events,
		"count":  len(events),
		"limit":  limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetFeeEvents returns recent fee change events
func (ws *WebServer) handleGetFeeEvents(w http.ResponseWriter, r *http.Request) {
	poolID := types.PoolID(r.URL.Query().Get("pool"))
	limit := ws.parseLimit(r, 50)

	events, err := state.RecentFeeChangeEvents(poolID, limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get fee change events")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve fee change events")
		return
	}

	response := map[string]interface{}{
		"events": events,
		"count":  len(events),
		"limit":  limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPendingBatches returns batches awaiting settlement
func (ws *WebServer) handleGetPendingBatches(w http.ResponseWriter, r *http.Request) {
	pending := ws.engine.PendingBatches()

	response := map[string]interface{}{
		"batches": pending,
		"count":   len(pending),
		"stale":   ws.engine.AuditStaleBatches(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetBatch returns a single batch by ID from the persistent store
func (ws *WebServer) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	batchID := vars["id"]

	batch, err := state.GetBatch(batchID)
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			ws.writeErrorResponse(w, http.StatusNotFound, "Batch not found")
			return
		}
		webLogger.Error().Err(err).Str("batch_id", batchID).Msg("Failed to get batch")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve batch")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, batch)
}

// handleGetProtectionParameters returns the active protection parameters for
// a config name: "default" for the global set, or a pool id for per-pool
// overrides saved through the config endpoint.
func (ws *WebServer) handleGetProtectionParameters(w http.ResponseWriter, r *http.Request) {
	configName := r.URL.Query().Get("config")
	if configName == "" {
		configName = "default"
	}

	params, err := state.LoadActiveProtectionConfig(configName)
	if err != nil {
		webLogger.Error().Err(err).Str("config", configName).Msg("Failed to get protection parameters")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve protection parameters")
		return
	}

	response := map[string]interface{}{
		"config_name": configName,
		"parameters":  params,
		"timestamp":   time.Now().UTC(),
	}
	if id, err := state.GetActiveProtectionConfigID(configName); err == nil && id != nil {
		response["params_id"] = *id
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleSetPoolPaused pauses or resumes a single pool
func (ws *WebServer) handleSetPoolPaused(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	poolID := types.PoolID(vars["id"])
	caller := r.Header.Get(managerHeader)

	var body struct {
		Paused bool `json:"paused"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := ws.engine.SetPoolPaused(caller, poolID, body.Paused); err != nil {
		ws.writeEngineError(w, err, "Failed to update pool pause state")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"pool_id": poolID,
		"paused":  body.Paused,
	})
}

// handleSetGlobalPaused pauses or resumes the whole engine
func (ws *WebServer) handleSetGlobalPaused(w http.ResponseWriter, r *http.Request) {
	caller := r.Header.Get(managerHeader)

	var body struct {
		Paused bool `json:"paused"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := ws.engine.SetGlobalPaused(caller, body.Paused); err != nil {
		ws.writeEngineError(w, err, "Failed to update global pause state")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"paused": body.Paused,
	})
}

// handleUpdateConfig replaces a pool's protection configuration
func (ws *WebServer) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	poolID := types.PoolID(vars["id"])
	caller := r.Header.Get(managerHeader)

	var cfg types.MEVProtectionConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := ws.engine.UpdateConfig(caller, poolID, cfg); err != nil {
		ws.writeEngineError(w, err, "Failed to update pool configuration")
		return
	}

	// Persist the new config as a versioned row keyed by pool id, readable
	// back through /protection-parameters?config=<pool>. The engine copy is
	// authoritative, so a failed save is logged and not surfaced.
	if version, err := state.NextConfigVersion(string(poolID)); err != nil {
		webLogger.Error().Err(err).Str("pool", string(poolID)).Msg("Failed to compute next config version")
	} else if _, err := state.SaveProtectionConfig(cfg, string(poolID), version, true); err != nil {
		webLogger.Error().Err(err).Str("pool", string(poolID)).Msg("Failed to persist updated protection config")
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"pool_id": poolID,
		"config":  cfg,
	})
}

// handleForceResolveBatch force-resolves a timed-out batch
func (ws *WebServer) handleForceResolveBatch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	batchID := vars["id"]
	caller := r.Header.Get(managerHeader)

	var body struct {
		ResultHash string `json:"result_hash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := ws.engine.ForceResolveBatch(caller, batchID, body.ResultHash); err != nil {
		ws.writeEngineError(w, err, "Failed to force-resolve batch")
		return
	}

	if err := state.MarkBatchProcessed(batchID, body.ResultHash); err != nil {
		webLogger.Error().Err(err).Str("batch_id", batchID).Msg("Failed to persist batch resolution")
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"batch_id": batchID,
		"resolved": true,
	})
}

func (ws *WebServer) parseLimit(r *http.Request, def int) int {
	limit := def
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 500 {
			limit = parsedLimit
		}
	}
	return limit
}

// writeEngineError maps engine sentinel errors to HTTP status codes
func (ws *WebServer) writeEngineError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, types.ErrUnauthorized):
		ws.writeErrorResponse(w, http.StatusForbidden, "Caller is not an authorized manager")
	case errors.Is(err, types.ErrPoolNotFound):
		ws.writeErrorResponse(w, http.StatusNotFound, "Pool not found")
	case errors.Is(err, types.ErrValidation):
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrBatchAlreadyProcessed):
		ws.writeErrorResponse(w, http.StatusConflict, "Batch already processed")
	case errors.Is(err, types.ErrBatchTimeout):
		ws.writeErrorResponse(w, http.StatusPreconditionFailed, "Batch has not timed out yet")
	default:
		webLogger.Error().Err(err).Msg(fallback)
		ws.writeErrorResponse(w, http.StatusInternalServerError, fallback)
	}
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+managerHeader)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

package main

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"cosmossdk.io/math"
	"github.com/meridian-dex/mevshield/internal/config"
	"github.com/meridian-dex/mevshield/internal/enclave"
	"github.com/meridian-dex/mevshield/internal/engine"
	"github.com/meridian-dex/mevshield/internal/execnet"
	"github.com/meridian-dex/mevshield/internal/logger"
	"github.com/meridian-dex/mevshield/internal/state"
	"github.com/meridian-dex/mevshield/internal/types"
	"github.com/meridian-dex/mevshield/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	AUDIT_INTERVAL    = 30 * time.Second
	SNAPSHOT_INTERVAL = 5 * time.Minute
	PRUNE_INTERVAL    = 1 * time.Hour

	// RETENTION_WINDOW bounds how long events and snapshots are kept.
	RETENTION_WINDOW = 30 * 24 * time.Hour

	DEFAULT_CONFIG_NAME    = "default"
	DEFAULT_CONFIG_VERSION = 1
)

// fanoutSink forwards engine events to every configured sink.
type fanoutSink []types.EventSink

func (s fanoutSink) FeeChanged(ev types.FeeChangeEvent) {
	for _, sink := range s {
		sink.FeeChanged(ev)
	}
}

func (s fanoutSink) Detected(ev types.DetectionEvent) {
	for _, sink := range s {
		sink.Detected(ev)
	}
}

// main is the entry point for the MEV protection engine.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE"))
	log.Info().Msg("MEV Protection Engine Starting...")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Load Protection Parameters
	protectionCfg, err := state.LoadActiveProtectionConfig(DEFAULT_CONFIG_NAME)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load active protection parameters, using defaults and saving.")
		defaultCfg := config.DefaultProtectionConfig
		if _, err := state.SaveProtectionConfig(defaultCfg, DEFAULT_CONFIG_NAME, DEFAULT_CONFIG_VERSION, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default protection parameters.")
		}
		protectionCfg = &defaultCfg
	}
	log.Info().Msg("Protection parameters loaded successfully.")

	// --- 2. Execution Network Client (with Safety Switch) ---
	var submitter execnet.Submitter
	if config.ExecnetEndpoint != "" {
		submitter = execnet.NewClient(config.ExecnetEndpoint, 10*time.Second)
		log.Info().Str("endpoint", config.ExecnetEndpoint).Msg("Execution network client configured")
	} else {
		log.Warn().Msg("EXECNET_ENDPOINT is not set. Deflected orders will use the in-process submitter and never leave this node.")
		submitter = execnet.NewMemory(1)
	}

	// --- 3. Create Engine Instance with Dependency Injection ---
	log.Info().Msg("Creating protection engine with dependency injection...")

	unitScale := math.NewIntWithDecimal(1, int(config.UnitDecimals))
	engineCfg := engine.Config{
		Enclave:            enclave.NewStore(),
		Submitter:          submitter,
		Sink:               fanoutSink{engine.NewLogSink(), state.NewPGSink()},
		UnitScale:          &unitScale,
		DefaultBaseFee:     config.DefaultBaseFee,
		DefaultConfig:      *protectionCfg,
		RouteRiskThreshold: config.RouteRiskThreshold,
		Admin:              config.AdminIdentity,
	}

	eng, err := engine.New(engineCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create protection engine")
	}

	log.Info().Msg("Protection engine created successfully")

	// Reload deflected orders that were still pending when the previous
	// process exited; they stay in the registry until resolved.
	if persisted, err := state.LoadPendingBatches(); err != nil {
		log.Warn().Err(err).Msg("Failed to load persisted pending batches")
	} else if restored := eng.RestorePendingBatches(persisted); restored > 0 {
		log.Info().Int("count", restored).Msg("Restored pending batches from previous run")
	}

	// --- 4. Start Web Server ---
	webServer := web.NewWebServer(eng, config.WebPort)
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting API server")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 5. Background Maintenance Loop ---
	log.Info().
		Str("audit_interval", AUDIT_INTERVAL.String()).
		Str("snapshot_interval", SNAPSHOT_INTERVAL.String()).
		Str("prune_interval", PRUNE_INTERVAL.String()).
		Msg("Starting maintenance loop")

	auditTicker := time.NewTicker(AUDIT_INTERVAL)
	defer auditTicker.Stop()
	snapshotTicker := time.NewTicker(SNAPSHOT_INTERVAL)
	defer snapshotTicker.Stop()
	pruneTicker := time.NewTicker(PRUNE_INTERVAL)
	defer pruneTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-auditTicker.C:
			// Persist the pending registry so a restart can pick it back up,
			// then flag anything past the timeout window for the operator.
			for _, batch := range eng.PendingBatches() {
				if err := state.SaveBatch(batch); err != nil {
					log.Error().Err(err).Str("batch_id", batch.BatchID).Msg("Failed to persist pending batch")
				}
			}
			if stale := eng.AuditStaleBatches(); len(stale) > 0 {
				log.Warn().Strs("batch_ids", stale).Msg("Batches pending past timeout; force-resolve available to managers")
			}

		case <-snapshotTicker.C:
			for _, poolID := range eng.PoolIDs() {
				snapshot, err := eng.PoolSnapshot(poolID)
				if err != nil {
					log.Error().Err(err).Str("pool", string(poolID)).Msg("Failed to read pool snapshot")
					continue
				}
				if _, err := state.SavePoolSnapshot(snapshot); err != nil {
					log.Error().Err(err).Str("pool", string(poolID)).Msg("Failed to persist pool snapshot")
				}
			}

		case <-pruneTicker.C:
			cutoff := time.Now().Add(-RETENTION_WINDOW)
			if rows, err := state.PruneEventsBefore(cutoff); err != nil {
				log.Error().Err(err).Msg("Failed to prune old events")
			} else if rows > 0 {
				log.Info().Int64("rows", rows).Msg("Pruned events past retention window")
			}
			if rows, err := state.PruneSnapshotsBefore(cutoff); err != nil {
				log.Error().Err(err).Msg("Failed to prune old snapshots")
			} else if rows > 0 {
				log.Info().Int64("rows", rows).Msg("Pruned snapshots past retention window")
			}

		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("Shutdown signal received, exiting")
			return
		}
	}
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}

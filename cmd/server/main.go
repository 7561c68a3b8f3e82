// cmd/server is the single binary that owns every job end to end, per
// spec's Non-goal "a single process owns all jobs" — it replaces the
// teacher's two-binary cmd/api + cmd/worker split with one process that
// both accepts uploads and runs the pipeline.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"videoscan/internal/api"
	"videoscan/internal/archive"
	"videoscan/internal/config"
	"videoscan/internal/fusion"
	"videoscan/internal/inspector"
	"videoscan/internal/inspector/builtin"
	"videoscan/internal/jobstore"
	"videoscan/internal/obs"
	"videoscan/internal/orchestrator"
	"videoscan/internal/ratelimit"
	"videoscan/internal/sampler"
	"videoscan/internal/telemetry"
	"videoscan/internal/workspace"
)

func main() {
	cfg := config.Load()
	obs.Configure(obs.Config{Level: cfg.LogLevel, Service: "videoscan"})
	logger := obs.WithComponent("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	registry := inspector.NewRegistry(withTimeoutOverrides(builtin.Entries(), config.InspectorTimeouts()))
	runner := inspector.NewRunner()
	fusionEngine := fusion.New(cfg.PipelineVersion)
	store := jobstore.New()
	workspaces := workspace.New(cfg.WorkspaceBasePath)
	samp := sampler.New()

	archiveSink, err := archive.New(ctx, archive.Config{
		Destination: cfg.ArchiveDestination,
		LocalDir:    cfg.ArchiveLocalDir,
		S3Bucket:    cfg.ArchiveS3Bucket,
		S3Region:    cfg.ArchiveS3Region,
		S3Endpoint:  cfg.ArchiveS3Endpoint,
		S3PathStyle: cfg.ArchiveS3PathStyle,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("configure archive sink")
	}

	var archiveForOrch orchestrator.ArchiveSink
	if archiveSink != nil {
		archiveForOrch = archiveSink
	}

	orch := orchestrator.New(orchestrator.Config{
		MaxConcurrentJobs:             cfg.MaxConcurrentJobs,
		MaxConcurrentInspectorsPerJob: cfg.MaxConcurrentInspectorsPerJob,
		AdmissionQueueCapacity:        cfg.AdmissionQueueCapacity,
		PerJobTimeout:                 cfg.PerJobTimeout,
		TargetFPS:                     cfg.TargetFPS,
		MaxDurationSec:                cfg.MaxDurationSec,
		PipelineVersion:               cfg.PipelineVersion,
	}, workspaces, samp, registry, runner, fusionEngine, store, archiveForOrch)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	limiter := ratelimit.NewTokenBucket(redisClient, cfg.RateLimitCapacity, cfg.RateLimitRefill, time.Hour)

	server := api.New(cfg, orch, store, limiter)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			logger.Warn().Err(err).Msg("metrics server stopped")
		}
	}()

	logger.Info().Str("port", cfg.HTTPPort).Msg("videoscan listening")
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
}

// withTimeoutOverrides applies the optional PER_INSPECTOR_TIMEOUT_SEC
// overrides on top of the registry's built-in defaults.
func withTimeoutOverrides(entries []inspector.Entry, overrides []config.InspectorTimeout) []inspector.Entry {
	if len(overrides) == 0 {
		return entries
	}
	byName := make(map[string]time.Duration, len(overrides))
	for _, o := range overrides {
		byName[o.Name] = o.Timeout
	}
	for i := range entries {
		if d, ok := byName[entries[i].Descriptor.Name]; ok {
			entries[i].Descriptor.Timeout = d
		}
	}
	return entries
}

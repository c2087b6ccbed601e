// Copyright 2025 Tasknav
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main is the entry point for the tasknav service.
//
// Tasknav routes free-text prompts against a project tracker and returns
// structured, PII-scrubbed answers plus a rendered report artifact.
//
// Usage:
//
//	./tasknav [-config tasknav.yaml]
//
// Without -config, all settings come from environment variables:
//
//	PORT - HTTP server port (default: 8080)
//	TRACKER_BASE_URL - URL of the tracker API
//	REDIS_URL - Redis cache URL (in-process cache when empty)
//	DATABASE_URL - PostgreSQL connection string for telemetry
//	TASKNAV_AUTH_SECRET - JWT secret; auth disabled when empty
//	ARTIFACTS_DIR - local directory for rendered reports
//	ARTIFACTS_S3_BUCKET - S3 bucket for reports (overrides ARTIFACTS_DIR)
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"tasknav/cache"
	"tasknav/config"
	"tasknav/executor"
	"tasknav/orchestrator"
	"tasknav/pii"
	"tasknav/render"
	"tasknav/router"
	"tasknav/server"
	"tasknav/shared/logger"
	"tasknav/telemetry"
	"tasknav/tracker"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	log := logger.New("main")

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		log.ErrorWithErr("", "Failed to load configuration", err, nil)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.ErrorWithErr("", "Service exited with error", err, nil)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	// Response cache: Redis when configured, in-process otherwise. A
	// Redis that is down at startup degrades to the in-process cache
	// rather than blocking the service.
	var store cache.Store
	if cfg.Cache.RedisURL != "" {
		redisStore, err := cache.NewRedisStore(cfg.Cache.RedisURL, cfg.CacheTTL())
		if err != nil {
			log.Warn("", "Redis unavailable, using in-process cache", map[string]interface{}{
				"error": err.Error(),
			})
			store = cache.NewMemoryStore(cfg.CacheTTL())
		} else {
			store = redisStore
		}
	} else {
		store = cache.NewMemoryStore(cfg.CacheTTL())
	}
	defer func() { _ = store.Close() }()

	// Telemetry database is optional; the sink falls back to JSONL
	var db *sql.DB
	if cfg.Telemetry.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Telemetry.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open telemetry database: %w", err)
		}
		defer func() { _ = db.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := db.PingContext(pingCtx); err != nil {
			log.Warn("", "Telemetry database unreachable, events will use fallback file", map[string]interface{}{
				"error": err.Error(),
			})
		}
		cancel()
	}

	sink, err := telemetry.NewSink(cfg.Telemetry.QueueSize, cfg.Telemetry.Workers, db, cfg.Telemetry.FallbackFile)
	if err != nil {
		return fmt.Errorf("start telemetry sink: %w", err)
	}

	// Artifact storage: S3 when a bucket is configured, local disk otherwise
	var artifacts render.ArtifactStore
	if cfg.Artifacts.S3Bucket != "" {
		artifacts, err = render.NewS3Store(context.Background(), render.S3Options{
			Bucket:    cfg.Artifacts.S3Bucket,
			Region:    cfg.Artifacts.S3Region,
			AccessKey: cfg.Artifacts.S3AccessKey,
			SecretKey: cfg.Artifacts.S3SecretKey,
		})
		if err != nil {
			return fmt.Errorf("init S3 artifact store: %w", err)
		}
	} else {
		artifacts, err = render.NewLocalStore(cfg.Artifacts.Dir)
		if err != nil {
			return fmt.Errorf("init artifact dir: %w", err)
		}
	}

	trackerClient := tracker.NewClient(cfg.Tracker.BaseURL, cfg.TrackerTimeout())

	log.Info("", "Capabilities registered", map[string]interface{}{
		"capabilities": executor.Capabilities(),
	})

	orch := orchestrator.New(
		router.NewRouter(router.DefaultRegistry()),
		executor.New(trackerClient),
		pii.NewRedactor(),
		store,
		sink,
		render.New(artifacts),
	)

	srv := server.New(orch, server.Options{
		AuthSecret:     cfg.Server.AuthSecret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("", "Tasknav listening", map[string]interface{}{
			"port":    cfg.Server.Port,
			"tracker": cfg.Tracker.BaseURL,
		})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		log.Info("", "Shutting down", map[string]interface{}{"signal": sig.String()})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.ErrorWithErr("", "HTTP shutdown did not complete cleanly", err, nil)
	}

	// Drain queued telemetry before exit
	if err := sink.Shutdown(shutdownCtx); err != nil {
		log.ErrorWithErr("", "Telemetry drain did not complete cleanly", err, nil)
	}

	return nil
}

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

	"github.com/transportops/field-service-api/internal/adapters/httpapi"
	memdriverrepo "github.com/transportops/field-service-api/internal/adapters/memory/driverrepo"
	memkvstore "github.com/transportops/field-service-api/internal/adapters/memory/kvstore"
	memreportrepo "github.com/transportops/field-service-api/internal/adapters/memory/reportrepo"
	memsynclogrepo "github.com/transportops/field-service-api/internal/adapters/memory/synclogrepo"
	postgres "github.com/transportops/field-service-api/internal/adapters/postgres"
	pgdriverrepo "github.com/transportops/field-service-api/internal/adapters/postgres/driverrepo"
	pgreportrepo "github.com/transportops/field-service-api/internal/adapters/postgres/reportrepo"
	pgsynclogrepo "github.com/transportops/field-service-api/internal/adapters/postgres/synclogrepo"
	rediskvstore "github.com/transportops/field-service-api/internal/adapters/redis/kvstore"
	"github.com/transportops/field-service-api/internal/app/fieldauth"
	"github.com/transportops/field-service-api/internal/app/fieldreports"
	"github.com/transportops/field-service-api/internal/platform/auth/qrtoken"
	platformclock "github.com/transportops/field-service-api/internal/platform/clock"
	"github.com/transportops/field-service-api/internal/platform/config"
	"github.com/transportops/field-service-api/internal/platform/ratelimit"
	driverrepoport "github.com/transportops/field-service-api/internal/ports/out/driverrepo"
	kvstoreport "github.com/transportops/field-service-api/internal/ports/out/kvstore"
	reportrepoport "github.com/transportops/field-service-api/internal/ports/out/reportrepo"
	synclogrepoport "github.com/transportops/field-service-api/internal/ports/out/synclogrepo"
)

func main() {
	port := getenv("PORT", "8080")

	authCfg, err := config.LoadFieldAuthConfigFromEnv()
	if err != nil {
		log.Fatalf("invalid auth config: %v", err)
	}

	clk := platformclock.NewSystemClock()

	signer, err := qrtoken.NewWithClock(authCfg.QRSecret, clk)
	if err != nil {
		log.Fatalf("invalid QR signer config: %v", err)
	}

	storageBackend := getenv("STORAGE_BACKEND", "memory")
	var (
		reportRepo  reportrepoport.Repository
		driverRepo  driverrepoport.Repository
		syncLogRepo synclogrepoport.Repository
		cleanup     func()
	)

	switch storageBackend {
	case "postgres":
		dsn := os.Getenv("DATABASE_URL")
		pool, err := postgres.NewPool(context.Background(), dsn, postgres.PoolOptions{})
		if err != nil {
			log.Fatalf("invalid postgres config: %v", err)
		}
		cleanup = pool.Close

		reportRepo = pgreportrepo.NewRepo(pool)
		driverRepo = pgdriverrepo.NewRepo(pool)
		syncLogRepo = pgsynclogrepo.NewRepo(pool)
	default:
		reportRepo = memreportrepo.NewRepo()
		driverRepo = memdriverrepo.NewRepo()
		syncLogRepo = memsynclogrepo.NewRepo()
	}

	if cleanup != nil {
		defer cleanup()
	}

	cacheBackend := getenv("CACHE_BACKEND", "memory")
	var kv kvstoreport.Store
	switch cacheBackend {
	case "redis":
		addr := getenv("REDIS_ADDR", "localhost:6379")
		client := redis.NewClient(&redis.Options{Addr: addr})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis at %s unreachable: %v", addr, err)
		}
		cancel()
		defer func() { _ = client.Close() }()
		kv = rediskvstore.NewStore(client)
	default:
		kv = memkvstore.NewStore()
	}

	authSvc := fieldauth.NewServiceWithTTL(signer, kv, authCfg.FieldTokenTTL)
	reportsSvc := fieldreports.NewService(reportRepo, driverRepo, signer, ratelimit.New(kv), clk)
	reportsSvc.SetRateLimit(authCfg.SubmitRateLimit, authCfg.SubmitRateWindow)

	api := httpapi.NewServer(authSvc, reportsSvc, syncLogRepo, clk)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpapi.NewRouter(api),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("api listening on :%s (storage=%s cache=%s)", port, storageBackend, cacheBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

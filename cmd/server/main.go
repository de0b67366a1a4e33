package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/newsletter-engine/internal/api"
	"github.com/ignite/newsletter-engine/internal/config"
	"github.com/ignite/newsletter-engine/internal/metrics"
	"github.com/ignite/newsletter-engine/internal/newsletter"
	"github.com/ignite/newsletter-engine/internal/pkg/distlock"
	"github.com/ignite/newsletter-engine/internal/pkg/logger"
	"github.com/ignite/newsletter-engine/internal/snapshot"
	"github.com/ignite/newsletter-engine/internal/tracking"
)

const devTrackingSecret = "newsletter-tracking-secret-dev"

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("Newsletter engine server starting")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		if _, err := os.Stat("config/config.yaml"); err == nil {
			configPath = "config/config.yaml"
		}
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Printf("Warning: %v, using INFO", err)
	}
	logger.SetLevel(level)
	logger.SetRedactPII(cfg.Logging.RedactPII)

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := newsletter.NewEngine()

	// Snapshot store: restore before serving, then save periodically.
	store, err := snapshot.New(ctx, cfg.Snapshot)
	if err != nil {
		log.Fatalf("Failed to initialize snapshot store: %v", err)
	}
	restored, err := engine.Load(ctx, store)
	if err != nil {
		log.Fatalf("Failed to restore snapshot: %v", err)
	}
	if restored {
		log.Println("Engine state restored from snapshot")
	} else {
		log.Println("No snapshot found, starting empty")
	}
	snapshotsDone := make(chan struct{})
	go func() {
		engine.RunSnapshots(ctx, store, cfg.Snapshot.Interval())
		close(snapshotsDone)
	}()

	reg := prometheus.DefaultRegisterer
	if err := metrics.Register(reg); err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	// Send-cycle lock: redis when configured, else postgres, else in-process.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Warning: Redis connection failed (%s): %v, falling back", cfg.Redis.Addr, err)
			redisClient.Close()
			redisClient = nil
		} else {
			log.Printf("Redis connected: %s (distributed locking enabled)", cfg.Redis.Addr)
		}
		pingCancel()
	}

	var db *sql.DB
	if redisClient == nil && cfg.Database.URL != "" {
		db, err = sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		db.SetMaxOpenConns(4)
		db.SetConnMaxLifetime(5 * time.Minute)
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := db.PingContext(pingCtx); err != nil {
			log.Printf("Warning: database ping failed: %v, using in-process lock", err)
			db.Close()
			db = nil
		} else {
			log.Println("PostgreSQL connected (advisory locking enabled)")
		}
		pingCancel()
	}
	locker := distlock.New(redisClient, db, cfg.Send.LockKey, cfg.Send.LockTTL())

	// Transport
	var transport newsletter.Transport
	if cfg.SES.Enabled {
		sesTransport, err := newsletter.NewSESTransport(ctx, cfg.SES)
		if err != nil {
			log.Fatalf("Failed to initialize SES: %v", err)
		}
		transport = sesTransport
		log.Printf("SES transport enabled (region=%s)", cfg.SES.Region)
	} else {
		transport = newsletter.NewMemoryTransport()
		log.Println("SES disabled: messages are kept in memory")
	}

	// Tracking: queue through SQS when configured, otherwise record in-process.
	secret := cfg.Tracking.SigningSecret
	if secret == "" {
		log.Println("Warning: TRACKING_SIGNING_SECRET not set, using development secret")
		secret = devTrackingSecret
	}
	signer := tracking.NewSigner(secret, cfg.Tracking.BaseURL)
	recorder := tracking.NewRecorder(engine.Analytics, engine.Experiments)

	var sink tracking.Sink = recorder
	consumerDone := make(chan struct{})
	if cfg.Tracking.QueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Tracking.Region))
		if err != nil {
			log.Fatalf("AWS config for SQS failed: %v", err)
		}
		sqsClient := sqs.NewFromConfig(awsCfg)
		sink = tracking.NewPublisher(sqsClient, cfg.Tracking.QueueURL)

		consumer := tracking.NewConsumer(sqsClient, cfg.Tracking.QueueURL, recorder, tracking.ConsumerOptions{
			MaxMessages:       int32(cfg.Tracking.MaxMessages),
			WaitSeconds:       int32(cfg.Tracking.WaitSeconds),
			VisibilitySeconds: int32(cfg.Tracking.VisibilitySecs),
		})
		go func() {
			consumer.Run(ctx)
			close(consumerDone)
		}()
		log.Printf("SQS tracking consumer started (queue=%s)", cfg.Tracking.QueueURL)
	} else {
		close(consumerDone)
		log.Println("Tracking events recorded in-process (no queue configured)")
	}

	deps := api.Dependencies{
		Engine:   engine,
		Sender:   newsletter.NewSender(engine, transport, locker, signer, cfg.Send),
		Tracking: tracking.NewHandler(signer, sink),
		DB:       db,
		Redis:    redisClient,
	}
	if cfg.Metrics.Enabled {
		deps.Gatherer = prometheus.DefaultGatherer
		deps.MetricsPath = cfg.Metrics.Path
	}
	server := api.NewServer(cfg.Server, deps)

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Stop background work; RunSnapshots writes a final snapshot on the way out.
	cancel()
	<-consumerDone
	<-snapshotsDone

	if redisClient != nil {
		redisClient.Close()
	}
	if db != nil {
		db.Close()
	}
	log.Println("Server stopped")
}

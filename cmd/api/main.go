package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/robertarktes/event-admissions/internal/adapters/mongo"
	"github.com/robertarktes/event-admissions/internal/adapters/postgres"
	"github.com/robertarktes/event-admissions/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/event-admissions/internal/adapters/redis"
	"github.com/robertarktes/event-admissions/internal/admission"
	"github.com/robertarktes/event-admissions/internal/clock"
	"github.com/robertarktes/event-admissions/internal/config"
	httphandler "github.com/robertarktes/event-admissions/internal/http"
	"github.com/robertarktes/event-admissions/internal/idempotency"
	"github.com/robertarktes/event-admissions/internal/lifecycle"
	"github.com/robertarktes/event-admissions/internal/notify"
	"github.com/robertarktes/event-admissions/internal/observability"
	"github.com/robertarktes/event-admissions/internal/rateLimit"
	"github.com/robertarktes/event-admissions/internal/ticket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()
	clk := clock.System{}

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := postgres.NewRepository(pool, clk)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("admissions")
	auditTrail := mongoadapter.NewAuditTrail(mongoDB, logger)
	profiles := mongoadapter.NewProfiles(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	cache := redisadapter.NewCache(redisClient, 5*time.Minute)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), time.Hour)
	rl := rateLimit.NewRateLimiter(cache)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}
	notifier := notify.NewRabbitNotifier(rabbitPub)

	issuer := ticket.NewIssuer([]byte(cfg.TicketSigningKey))

	coordinator := admission.NewCoordinator(repo, repo, profiles, repo, issuer, notifier, auditTrail, clk, logger)
	lifecycleSvc := lifecycle.NewService(repo, repo, repo, issuer, auditTrail, clk, logger, cfg.CancelWindow)

	handlers := httphandler.NewHandlers(cfg, coordinator, lifecycleSvc, cache, idemp, logger)
	r := httphandler.SetupRouter(handlers, logger, rl)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}

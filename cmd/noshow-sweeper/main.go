package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/robertarktes/event-admissions/internal/adapters/mongo"
	"github.com/robertarktes/event-admissions/internal/adapters/postgres"
	"github.com/robertarktes/event-admissions/internal/clock"
	"github.com/robertarktes/event-admissions/internal/config"
	"github.com/robertarktes/event-admissions/internal/lifecycle"
	"github.com/robertarktes/event-admissions/internal/observability"
	"github.com/robertarktes/event-admissions/internal/ticket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()
	clk := clock.System{}

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := postgres.NewRepository(pool, clk)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	auditTrail := mongoadapter.NewAuditTrail(mongoClient.Database("admissions"), logger)

	issuer := ticket.NewIssuer([]byte(cfg.TicketSigningKey))
	svc := lifecycle.NewService(repo, repo, repo, issuer, auditTrail, clk, logger, cfg.CancelWindow)

	sweeper := NewSweeper(svc, logger, cfg.NoShowGrace)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweeper.Run(ctx, cfg.SweepInterval)
	logger.Info("No-show sweeper started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown no-show sweeper")
}

type Sweeper struct {
	svc    *lifecycle.Service
	logger observability.Logger
	grace  time.Duration
}

func NewSweeper(svc *lifecycle.Service, logger observability.Logger, grace time.Duration) *Sweeper {
	return &Sweeper{svc: svc, logger: logger, grace: grace}
}

func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepWithRetry(ctx)
		}
	}
}

func (s *Sweeper) sweepWithRetry(ctx context.Context) {
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		swept, err := s.svc.SweepNoShows(ctx, s.grace)
		if err == nil {
			if swept > 0 {
				s.logger.WithField("swept", swept).Info("marked no-shows")
			}
			return
		}
		s.logger.WithError(err).Error("sweep failed")

		backoff := time.Duration(1<<i) * time.Second
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
	s.logger.Error("sweep abandoned after retries")
}

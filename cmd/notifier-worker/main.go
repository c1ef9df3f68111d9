package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/robertarktes/event-admissions/internal/adapters/rabbit"
	"github.com/robertarktes/event-admissions/internal/config"
	"github.com/robertarktes/event-admissions/internal/notify"
	"github.com/robertarktes/event-admissions/internal/observability"
	"github.com/robertarktes/event-admissions/internal/ticket"
)

// The worker drains ticket delivery requests. Actual delivery channels
// (email, SMS) plug in here; for now it renders the artifact and logs the
// dispatch so the queue semantics are exercised end to end.
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

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, "notifications.q", notify.RoutingKey)
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}

	go func() {
		for d := range deliveries {
			if err := handle(d, logger); err != nil {
				logger.WithError(err).Error("delivery failed, requeueing")
				d.Nack(false, true)
				continue
			}
			d.Ack(false)
		}
	}()
	logger.Info("Notifier worker started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown notifier worker")
}

func handle(d amqp.Delivery, logger observability.Logger) error {
	var msg notify.TicketMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		// Malformed messages will never parse; ack them away instead of
		// requeueing forever.
		logger.WithError(err).Error("dropping malformed delivery request")
		return nil
	}

	artifact, err := ticket.Render(msg.Payload)
	if err != nil {
		logger.WithError(err).WithField("code", msg.Code).Warn("artifact render failed, sending without image")
	}

	logger.
		WithField("code", msg.Code).
		WithField("email", msg.Email).
		WithField("artifact_bytes", len(artifact)).
		Info("ticket dispatched")
	return nil
}

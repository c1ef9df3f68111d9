package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr       string
	PostgresDSN      string
	MongoURI         string
	RedisAddr        string
	RabbitURL        string
	OTLPEndpoint     string
	TicketSigningKey string
	CancelWindow     time.Duration
	NoShowGrace      time.Duration
	SweepInterval    time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cancelWindow, _ := time.ParseDuration(os.Getenv("CANCEL_WINDOW"))
	if cancelWindow == 0 {
		cancelWindow = 24 * time.Hour
	}
	noShowGrace, _ := time.ParseDuration(os.Getenv("NOSHOW_GRACE"))
	if noShowGrace == 0 {
		noShowGrace = 6 * time.Hour
	}
	sweepInterval, _ := time.ParseDuration(os.Getenv("SWEEP_INTERVAL"))
	if sweepInterval == 0 {
		sweepInterval = time.Hour
	}
	listen := os.Getenv("LISTEN_ADDR")
	if listen == "" {
		listen = ":8080"
	}

	return &Config{
		ListenAddr:       listen,
		PostgresDSN:      os.Getenv("POSTGRES_DSN"),
		MongoURI:         os.Getenv("MONGO_URI"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RabbitURL:        os.Getenv("RABBIT_URL"),
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TicketSigningKey: os.Getenv("TICKET_SIGNING_KEY"),
		CancelWindow:     cancelWindow,
		NoShowGrace:      noShowGrace,
		SweepInterval:    sweepInterval,
	}, nil
}

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type (
	Config struct {
		HTTP       HTTP
		Log        Log
		PG         PG
		S3         S3
		Redis      Redis
		Dispatcher Dispatcher
		Reclaimer  Reclaimer
		Models     Models
		Gate       Gate
		Swagger    Swagger
	}

	HTTP struct {
		Port           string `env:"HTTP_PORT,required"`
		UsePreforkMode bool   `env:"HTTP_USE_PREFORK_MODE" envDefault:"false"`
	}

	Log struct {
		Level string `env:"LOG_LEVEL" envDefault:"info"`
	}

	PG struct {
		PoolMax      int           `env:"PG_POOL_MAX" envDefault:"20"`
		PoolOverflow int           `env:"PG_POOL_OVERFLOW" envDefault:"30"`
		ConnLifetime time.Duration `env:"PG_CONN_LIFETIME" envDefault:"3600s"`
		URL          string        `env:"METADATA_URL,required"`
	}

	S3 struct {
		Endpoint     string `env:"S3_ENDPOINT,required"`
		Region       string `env:"BLOB_REGION" envDefault:"us-east-1"`
		AccessKey    string `env:"BLOB_ACCESS_KEY,required"`
		SecretKey    string `env:"BLOB_SECRET_KEY,required"`
		Bucket       string `env:"BLOB_BUCKET,required"`
		UsePathStyle bool   `env:"S3_USE_PATH_STYLE" envDefault:"true"`
	}

	Redis struct {
		URL          string `env:"QUEUE_URL,required"`
		Stream       string `env:"QUEUE_STREAM" envDefault:"jobs"`
		Group        string `env:"QUEUE_GROUP" envDefault:"workers"`
		Consumer     string `env:"QUEUE_CONSUMER" envDefault:"worker-1"`
		MaxQueueSize int64  `env:"MAX_QUEUE_SIZE" envDefault:"1000"`
	}

	Dispatcher struct {
		NumWorkers      int           `env:"NUM_WORKERS" envDefault:"5"`
		PollTimeout     time.Duration `env:"WORKER_POLL_TIMEOUT" envDefault:"5s"`
		WorkerTimeout   time.Duration `env:"WORKER_TIMEOUT" envDefault:"300s"`
		CPUTimeout      time.Duration `env:"WORKER_CPU_TIMEOUT" envDefault:"8s"`
		MaxAttempts     int           `env:"MAX_ATTEMPTS" envDefault:"5"`
		ShutdownTimeout time.Duration `env:"DISPATCHER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	}

	Reclaimer struct {
		DueInterval       time.Duration `env:"RECLAIMER_DUE_INTERVAL" envDefault:"2s"`
		StaleInterval     time.Duration `env:"RECLAIMER_STALE_INTERVAL" envDefault:"30s"`
		VisibilityTimeout time.Duration `env:"VISIBILITY_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout   time.Duration `env:"RECLAIMER_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	}

	Models struct {
		CarConfidenceThreshold  float64 `env:"CAR_CONFIDENCE_THRESHOLD" envDefault:"0.8"`
		FaceConfidenceThreshold float64 `env:"FACE_CONFIDENCE_THRESHOLD" envDefault:"0.8"`
	}

	Gate struct {
		InlinePayloadMaxBytes int64 `env:"INLINE_PAYLOAD_MAX_BYTES" envDefault:"262144"`
	}

	Swagger struct {
		Enabled bool `env:"SWAGGER_ENABLED" envDefault:"false"`
	}
)

func New() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return cfg, nil
}

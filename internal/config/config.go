package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Common struct {
	DBDSN     string `envconfig:"DB_DSN" required:"true"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	DBMaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns          int32         `envconfig:"DB_MIN_CONNS" default:"1"`
	DBMaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	DBMaxConnIdleTime   time.Duration `envconfig:"DB_MAX_CONN_IDLE_TIME" default:"5m"`
	DBHealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"30s"`
}

type AWS struct {
	AWSRegion          string `envconfig:"AWS_REGION" default:"us-east-1"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
}

// Notify covers guest email and SMS delivery.
type Notify struct {
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     string `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM"`
	SMTPFromName string `envconfig:"SMTP_FROM_NAME"`

	VoipmsUsername string  `envconfig:"VOIPMS_USERNAME"`
	VoipmsPassword string  `envconfig:"VOIPMS_PASSWORD"`
	VoipmsDID      string  `envconfig:"VOIPMS_DID"`
	VoipmsBaseURL  string  `envconfig:"VOIPMS_BASE_URL" default:"https://voip.ms/api/v1/rest.php"`
	SMSRatePerSec  float64 `envconfig:"SMS_RPS" default:"2"`
	SMSBurst       int     `envconfig:"SMS_BURST" default:"4"`

	// Breaker trips after this many consecutive failures and stays open for BreakerOpenFor.
	BreakerFailures uint32        `envconfig:"SMS_BREAKER_FAILURES" default:"5"`
	BreakerOpenFor  time.Duration `envconfig:"SMS_BREAKER_OPEN_FOR" default:"30s"`

	PortalBaseURL string `envconfig:"PORTAL_BASE_URL"`
	PropertyName  string `envconfig:"PROPERTY_NAME"`
}

type APIConfig struct {
	Common
	AWS
	Notify

	Port string `envconfig:"PORT" default:"8080"`

	// Empty Stripe secrets are allowed; the affected operations fail instead.
	StripeSecretKey     string        `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string        `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripeBaseURL       string        `envconfig:"STRIPE_BASE_URL" default:"https://api.stripe.com/v1"`
	StripeDocumentTypes []string      `envconfig:"STRIPE_ALLOWED_DOCUMENT_TYPES" default:"driving_license,passport,id_card"`
	StripeReturnURL     string        `envconfig:"STRIPE_RETURN_URL"`
	StripeAPITimeout    time.Duration `envconfig:"STRIPE_API_TIMEOUT" default:"30s"`
	StripeFileTimeout   time.Duration `envconfig:"STRIPE_FILE_TIMEOUT" default:"60s"`

	MediaBucket        string `envconfig:"MEDIA_BUCKET" default:"checkin-media"`
	MediaPublicBaseURL string `envconfig:"MEDIA_PUBLIC_BASE_URL"`
}

type WorkerConfig struct {
	Common
	AWS
	Notify

	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`

	SQSQueueURL   string `envconfig:"SQS_QUEUE_URL" required:"true"`
	SQSWaitTime   int32  `envconfig:"SQS_WAIT_TIME" default:"20"`
	SQSMaxMsgs    int32  `envconfig:"SQS_MAX_MSGS" default:"10"`
	SQSVizTimeout int32  `envconfig:"SQS_VISIBILITY_TIMEOUT" default:"60"`

	WorkerConcurrency int `envconfig:"WORKER_CONCURRENCY" default:"4"`
}

type ReminderConfig struct {
	Common
	AWS

	SQSQueueURL        string `envconfig:"SQS_QUEUE_URL" required:"true"`
	SQSFIFO            bool   `envconfig:"SQS_FIFO" default:"false"`
	ReminderWindowDays int    `envconfig:"REMINDER_WINDOW_DAYS" default:"3"`
	ReminderBatchLimit int    `envconfig:"REMINDER_BATCH_LIMIT" default:"500"`
}

func LoadAPI() APIConfig {
	var cfg APIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadWorker() WorkerConfig {
	var cfg WorkerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadReminder() ReminderConfig {
	var cfg ReminderConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

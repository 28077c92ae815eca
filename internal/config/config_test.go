package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadAPIDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/checkin")
	t.Setenv("STRIPE_ALLOWED_DOCUMENT_TYPES", "passport,id_card")

	cfg := LoadAPI()
	if cfg.Port != "8080" || cfg.LogFormat != "json" || cfg.AWSRegion != "us-east-1" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(cfg.StripeDocumentTypes) != 2 || cfg.StripeDocumentTypes[0] != "passport" {
		t.Fatalf("unexpected document types %v", cfg.StripeDocumentTypes)
	}
	if cfg.StripeSecretKey != "" || cfg.StripeFileTimeout != 60*time.Second {
		t.Fatalf("unexpected stripe settings %+v", cfg)
	}
	if cfg.BreakerFailures != 5 || cfg.SMSBurst != 4 {
		t.Fatalf("unexpected sms settings %+v", cfg.Notify)
	}
}

func TestLoadReminderRequiresQueue(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/checkin")
	t.Setenv("SQS_QUEUE_URL", "")
	os.Unsetenv("SQS_QUEUE_URL")
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic without SQS_QUEUE_URL")
		}
	}()
	LoadReminder()
}

package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"checkin/internal/awsutil"
	"checkin/internal/config"
	"checkin/internal/logging"
	sqsqueue "checkin/internal/queue/sqs"
	"checkin/internal/reminder"
	"checkin/internal/store/pg"
)

// reminder runs one sweep and exits; schedule it daily.
func main() {
	cfg := config.LoadReminder()
	logging.Init("reminder", cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{MaxConns: 2, MinConns: 0})
	if err != nil {
		slog.Error("reminder db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("reminder sqs client init failed", "err", err)
		os.Exit(1)
	}

	sweep := &reminder.Sweep{
		Store:      pg.New(db),
		Queue:      &sqsqueue.Producer{SQS: sqsClient, QueueURL: cfg.SQSQueueURL, FIFO: cfg.SQSFIFO},
		WindowDays: cfg.ReminderWindowDays,
		Limit:      cfg.ReminderBatchLimit,
	}
	res, err := sweep.Run(ctx)
	if err != nil {
		slog.Error("reminder sweep failed", "err", err)
		os.Exit(1)
	}
	if res.Failed > 0 {
		os.Exit(2)
	}
}

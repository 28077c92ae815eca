package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"checkin/internal/domain"
	"checkin/internal/notify"
	"checkin/internal/observability"
	sqsqueue "checkin/internal/queue/sqs"
	"checkin/internal/util"
)

type CandidateStore interface {
	ListReminderCandidates(ctx context.Context, now time.Time, windowDays, limit int) ([]domain.Reservation, error)
}

type Queue interface {
	EnqueueReminder(ctx context.Context, job sqsqueue.ReminderJob) error
}

// Sweep enqueues one reminder per pending, unverified reservation checking
// in within the window. Enqueue failures are counted and the sweep goes on.
type Sweep struct {
	Store      CandidateStore
	Queue      Queue
	WindowDays int
	Limit      int
	Now        func() time.Time
}

type SweepResult struct {
	Candidates int
	Enqueued   int
	Failed     int
}

func (s *Sweep) Run(ctx context.Context) (SweepResult, error) {
	now := util.NowUTC()
	if s.Now != nil {
		now = s.Now()
	}
	limit := s.Limit
	if limit <= 0 {
		limit = 500
	}
	window := s.WindowDays
	if window <= 0 {
		window = 3
	}

	list, err := s.Store.ListReminderCandidates(ctx, now, window, limit)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list reminder candidates: %w", err)
	}
	out := SweepResult{Candidates: len(list)}
	for _, r := range list {
		if err := s.Queue.EnqueueReminder(ctx, sqsqueue.NewReminderJob(r.ID, now)); err != nil {
			out.Failed++
			observability.ReminderEnqueues.WithLabelValues("error").Inc()
			slog.Error("reminder enqueue failed", "reservation_id", r.ID, "err", err)
			continue
		}
		out.Enqueued++
		observability.ReminderEnqueues.WithLabelValues("ok").Inc()
	}
	slog.Info("reminder sweep done", "candidates", out.Candidates, "enqueued", out.Enqueued, "failed", out.Failed)
	return out, nil
}

type ReservationStore interface {
	GetReservation(ctx context.Context, id int64) (domain.Reservation, bool, error)
	MarkReminderSent(ctx context.Context, id int64, now time.Time) error
}

type Notifier interface {
	SendReminder(ctx context.Context, res domain.Reservation) []notify.Delivery
}

// Processor delivers reminder jobs taken off the queue.
type Processor struct {
	Store    ReservationStore
	Notifier Notifier
	Now      func() time.Time
}

// Process is idempotent per reservation state: verified, cancelled or
// unknown reservations are skipped. Delivery failures are already in the
// communication log and do not fail the job.
func (p *Processor) Process(ctx context.Context, job sqsqueue.ReminderJob) error {
	res, found, err := p.Store.GetReservation(ctx, job.ReservationID)
	if err != nil {
		return err
	}
	if !found {
		slog.Warn("reminder for unknown reservation", "reservation_id", job.ReservationID)
		return nil
	}
	if res.VerificationStatus == string(domain.SessionVerified) ||
		res.Status == domain.ReservationCancelled || res.Status == domain.ReservationCompleted {
		return nil
	}

	deliveries := p.Notifier.SendReminder(ctx, res)
	sent := 0
	for _, d := range deliveries {
		if d.Sent() {
			sent++
		}
	}
	if sent == 0 {
		slog.Warn("reminder not delivered", "reservation_id", res.ID, "attempts", len(deliveries))
		return nil
	}

	now := util.NowUTC()
	if p.Now != nil {
		now = p.Now()
	}
	return p.Store.MarkReminderSent(ctx, res.ID, now)
}

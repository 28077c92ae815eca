package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"checkin/internal/domain"
	"checkin/internal/notify"
	sqsqueue "checkin/internal/queue/sqs"
)

type fakeStore struct {
	candidates []domain.Reservation
	byID       map[int64]domain.Reservation
	reminded   map[int64]time.Time
	gotWindow  int
}

func (f *fakeStore) ListReminderCandidates(_ context.Context, _ time.Time, windowDays, _ int) ([]domain.Reservation, error) {
	f.gotWindow = windowDays
	return f.candidates, nil
}

func (f *fakeStore) GetReservation(_ context.Context, id int64) (domain.Reservation, bool, error) {
	r, ok := f.byID[id]
	return r, ok, nil
}

func (f *fakeStore) MarkReminderSent(_ context.Context, id int64, now time.Time) error {
	f.reminded[id] = now
	return nil
}

type fakeQueue struct {
	jobs   []sqsqueue.ReminderJob
	failOn int64
}

func (f *fakeQueue) EnqueueReminder(_ context.Context, job sqsqueue.ReminderJob) error {
	if job.ReservationID == f.failOn {
		return errors.New("throttled")
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeNotifier struct {
	calls  int
	status domain.DeliveryStatus
}

func (f *fakeNotifier) SendReminder(_ context.Context, _ domain.Reservation) []notify.Delivery {
	f.calls++
	return []notify.Delivery{{Channel: domain.ChannelEmail, Status: f.status}}
}

var now = time.Date(2026, 7, 1, 14, 0, 0, 0, time.UTC)

func TestSweepContinuesPastFailures(t *testing.T) {
	st := &fakeStore{candidates: []domain.Reservation{{ID: 1}, {ID: 2}, {ID: 3}}}
	q := &fakeQueue{failOn: 2}
	s := &Sweep{Store: st, Queue: q, WindowDays: 5, Now: func() time.Time { return now }}

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Candidates != 3 || res.Enqueued != 2 || res.Failed != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if st.gotWindow != 5 || q.jobs[0].Day != "2026-07-01" {
		t.Fatalf("unexpected window/day %d %s", st.gotWindow, q.jobs[0].Day)
	}
}

func TestProcessSkipsVerifiedAndCancelled(t *testing.T) {
	st := &fakeStore{reminded: map[int64]time.Time{}, byID: map[int64]domain.Reservation{
		1: {ID: 1, Status: domain.ReservationPending, VerificationStatus: "verified"},
		2: {ID: 2, Status: domain.ReservationCancelled},
		3: {ID: 3, Status: domain.ReservationPending},
	}}
	n := &fakeNotifier{status: domain.DeliverySent}
	p := &Processor{Store: st, Notifier: n, Now: func() time.Time { return now }}

	for _, id := range []int64{1, 2, 3, 99} {
		if err := p.Process(context.Background(), sqsqueue.ReminderJob{ReservationID: id}); err != nil {
			t.Fatalf("process %d: %v", id, err)
		}
	}
	if n.calls != 1 {
		t.Fatalf("expected one reminder, got %d", n.calls)
	}
	if _, ok := st.reminded[3]; !ok || len(st.reminded) != 1 {
		t.Fatalf("expected reservation 3 marked, got %v", st.reminded)
	}
}

func TestProcessDoesNotMarkUndelivered(t *testing.T) {
	st := &fakeStore{reminded: map[int64]time.Time{}, byID: map[int64]domain.Reservation{3: {ID: 3, Status: domain.ReservationPending}}}
	p := &Processor{Store: st, Notifier: &fakeNotifier{status: domain.DeliveryFailed}}
	if err := p.Process(context.Background(), sqsqueue.ReminderJob{ReservationID: 3}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(st.reminded) != 0 {
		t.Fatalf("undelivered reminders must not be marked")
	}
}

package sqsqueue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type fakeSQS struct {
	mu       sync.Mutex
	sent     []*sqs.SendMessageInput
	batches  [][]types.Message
	deleted  []string
	received chan struct{}
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	if len(f.batches) > 0 {
		b := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return &sqs.ReceiveMessageOutput{Messages: b}, nil
	}
	f.mu.Unlock()
	if f.received != nil {
		select {
		case f.received <- struct{}{}:
		default:
		}
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, *in.ReceiptHandle)
	return &sqs.DeleteMessageOutput{}, nil
}

func TestMessageGroupIDBucketed(t *testing.T) {
	got1 := messageGroupIDBucketed(42, 16)
	got2 := messageGroupIDBucketed(42, 16)
	if got1 != got2 {
		t.Fatalf("expected stable group id, got %q vs %q", got1, got2)
	}
	if len(got1) == 0 {
		t.Fatalf("expected non-empty group id")
	}

	// buckets<=0 should use default.
	got3 := messageGroupIDBucketed(42, 0)
	if got3 == "" {
		t.Fatalf("expected non-empty group id for default buckets")
	}
}

func TestEnqueueReminderFIFO(t *testing.T) {
	f := &fakeSQS{}
	p := &Producer{SQS: f, QueueURL: "q", FIFO: true}
	job := NewReminderJob(42, time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC))
	if err := p.EnqueueReminder(context.Background(), job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	in := f.sent[0]
	if in.MessageDeduplicationId == nil || *in.MessageDeduplicationId != "reminder-42-2026-07-01" {
		t.Fatalf("unexpected dedup id %v", in.MessageDeduplicationId)
	}
	var got ReminderJob
	if err := json.Unmarshal([]byte(*in.MessageBody), &got); err != nil || got.ReservationID != 42 {
		t.Fatalf("unexpected body %s", *in.MessageBody)
	}

	p.FIFO = false
	_ = p.EnqueueReminder(context.Background(), job)
	if f.sent[1].MessageGroupId != nil {
		t.Fatalf("standard queues must not carry a group id")
	}
}

func TestPollConcurrentDeletesOnlyHandledMessages(t *testing.T) {
	body := func(id int64) *string {
		b, _ := json.Marshal(ReminderJob{ReservationID: id})
		return str(string(b))
	}
	f := &fakeSQS{
		received: make(chan struct{}, 1),
		batches: [][]types.Message{{
			{ReceiptHandle: str("ok"), Body: body(1)},
			{ReceiptHandle: str("fail"), Body: body(2)},
			{ReceiptHandle: str("bad"), Body: str("{not json")},
		}},
	}
	c := &Consumer{SQS: f, QueueURL: "q"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.PollConcurrent(ctx, 2, func(_ context.Context, job ReminderJob) error {
			if job.ReservationID == 2 {
				return errors.New("smtp down")
			}
			return nil
		})
	}()

	<-f.received
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}

	deleted := map[string]bool{}
	for _, d := range f.deleted {
		deleted[d] = true
	}
	if !deleted["ok"] || !deleted["bad"] || deleted["fail"] {
		t.Fatalf("unexpected deletions %v", f.deleted)
	}
}

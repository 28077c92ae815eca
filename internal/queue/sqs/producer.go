package sqsqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// API is the subset of the SQS client used by the producer and consumer.
type API interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type Producer struct {
	SQS      API
	QueueURL string

	// FIFO queues get a group id and a per-day deduplication id.
	FIFO         bool
	GroupBuckets int
}

// ReminderJob asks the worker to remind one reservation's guest.
type ReminderJob struct {
	ReservationID int64     `json:"reservationId"`
	Day           string    `json:"day"`
	EnqueuedAt    time.Time `json:"enqueuedAt"`
}

func NewReminderJob(reservationID int64, now time.Time) ReminderJob {
	now = now.UTC()
	return ReminderJob{ReservationID: reservationID, Day: now.Format("2006-01-02"), EnqueuedAt: now}
}

func (p *Producer) EnqueueReminder(ctx context.Context, job ReminderJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	in := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: str(string(body)),
	}
	if p.FIFO {
		in.MessageGroupId = str(messageGroupIDBucketed(job.ReservationID, p.GroupBuckets))
		// one reminder per reservation per day
		in.MessageDeduplicationId = str(fmt.Sprintf("reminder-%d-%s", job.ReservationID, job.Day))
	}
	_, err = p.SQS.SendMessage(ctx, in)
	return err
}

const defaultGroupBuckets = 64

// messageGroupIDBucketed spreads reservations over a fixed number of FIFO
// groups so ordering is kept per reservation without a group per row.
func messageGroupIDBucketed(reservationID int64, buckets int) string {
	if buckets <= 0 {
		buckets = defaultGroupBuckets
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(reservationID, 10)))
	return "reminders-" + strconv.Itoa(int(h.Sum32()%uint32(buckets)))
}

func str(s string) *string { return &s }

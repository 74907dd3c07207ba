package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type EventType string

const (
	BookingRequested EventType = "booking.requested"
	BookingAccepted  EventType = "booking.accepted"
	BookingRejected  EventType = "booking.rejected"
	BookingCancelled EventType = "booking.cancelled"
)

// Event is what the mail sender needs to render a booking notification.
type Event struct {
	Type       EventType `json:"type"`
	BookingID  uuid.UUID `json:"bookingId"`
	DoctorID   uuid.UUID `json:"doctorId"`
	PatientID  uuid.UUID `json:"patientId"`
	Recipients []string  `json:"recipients"`
	SlotStart  time.Time `json:"slotStart"`
	SlotEnd    time.Time `json:"slotEnd"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Notifier delivers booking events. Delivery is advisory: callers log failures and move on.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// LogNotifier only records events; used when no broker is configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, ev Event) error {
	n.log.Info("notification",
		zap.String("type", string(ev.Type)),
		zap.String("booking_id", ev.BookingID.String()),
		zap.Strings("recipients", ev.Recipients),
	)
	return nil
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes events as persistent JSON messages onto a queue.
type AMQPNotifier struct {
	mu    sync.Mutex
	ch    publisher
	queue string
}

func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	return conn, nil
}

// NewAMQPNotifier opens a channel on conn and declares the durable queue.
func NewAMQPNotifier(conn *amqp.Connection, queue string) (*AMQPNotifier, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &AMQPNotifier{ch: ch, queue: queue}, nil
}

func (n *AMQPNotifier) Notify(ctx context.Context, ev Event) error {
	if len(ev.Recipients) == 0 {
		return nil
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Type:         string(ev.Type),
		Timestamp:    ev.OccurredAt,
		Headers: amqp.Table{
			"message_type":     "JSON",
			"requeue_strategy": "DROP",
		},
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ch.PublishWithContext(ctx, "", n.queue, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

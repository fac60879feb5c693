package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/example/vetclinic-scheduler/internal/application"
)

const (
	TopicAppointmentScheduled = "vetclinic.appointment.scheduled.v1"
	TopicAppointmentCancelled = "vetclinic.appointment.cancelled.v1"
	TopicAppointmentCompleted = "vetclinic.appointment.completed.v1"
)

// ErrUnknownEventType is returned for event types without a topic.
var ErrUnknownEventType = errors.New("events: unknown event type")

// TopicFor returns the topic an event type is published to.
func TopicFor(eventType application.AppointmentEventType) (string, error) {
	switch eventType {
	case application.EventAppointmentScheduled:
		return TopicAppointmentScheduled, nil
	case application.EventAppointmentCancelled:
		return TopicAppointmentCancelled, nil
	case application.EventAppointmentCompleted:
		return TopicAppointmentCompleted, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}
}

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implements application.EventPublisher on top of kafka-go.
type KafkaPublisher struct {
	writer  messageWriter
	newID   func() string
	timeout time.Duration
	logger  *slog.Logger
}

// Config describes the Kafka connection of the publisher.
type Config struct {
	Brokers      []string
	WriteTimeout time.Duration
}

// NewKafkaPublisher builds a publisher writing to brokers. Topics must already exist.
func NewKafkaPublisher(cfg Config, logger *slog.Logger) *KafkaPublisher {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.WriteTimeout,
	}
	return newPublisher(writer, nil, cfg.WriteTimeout, logger)
}

func newPublisher(writer messageWriter, newID func() string, timeout time.Duration, logger *slog.Logger) *KafkaPublisher {
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{writer: writer, newID: newID, timeout: timeout, logger: logger}
}

// PublishAppointmentEvent writes event to its topic.
func (p *KafkaPublisher) PublishAppointmentEvent(ctx context.Context, event application.AppointmentEvent) error {
	if p == nil || p.writer == nil {
		return nil
	}
	msg, err := p.message(ctx, event)
	if err != nil {
		return err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s: %w", msg.Topic, err)
	}
	p.logger.DebugContext(ctx, "appointment event published",
		"topic", msg.Topic,
		"appointment_id", event.Appointment.ID,
	)
	return nil
}

// Close flushes pending writes and releases the broker connections.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func (p *KafkaPublisher) message(ctx context.Context, event application.AppointmentEvent) (kafka.Message, error) {
	topic, err := TopicFor(event.Type)
	if err != nil {
		return kafka.Message{}, err
	}
	eventID := p.newID()
	payload, err := json.Marshal(newPayload(eventID, event))
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s: %w", event.Type, err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(event.Appointment.ID),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	msg.Headers = InjectTraceHeaders(ctx, msg.Headers)
	return msg, nil
}

// Payload is the JSON body of every lifecycle message.
type Payload struct {
	EventID         string    `json:"event_id"`
	EventType       string    `json:"event_type"`
	OccurredAt      time.Time `json:"occurred_at"`
	ActorID         string    `json:"actor_id"`
	AppointmentID   string    `json:"appointment_id"`
	ClinicID        string    `json:"clinic_id"`
	AnimalID        string    `json:"animal_id"`
	Datetime        time.Time `json:"datetime"`
	DurationMinutes int       `json:"duration_minutes"`
	ServiceType     string    `json:"service_type"`
	Status          string    `json:"status"`
}

func newPayload(eventID string, event application.AppointmentEvent) Payload {
	appointment := event.Appointment
	return Payload{
		EventID:         eventID,
		EventType:       string(event.Type),
		OccurredAt:      event.OccurredAt.UTC(),
		ActorID:         event.ActorID,
		AppointmentID:   appointment.ID,
		ClinicID:        appointment.ClinicID,
		AnimalID:        appointment.AnimalID,
		Datetime:        appointment.Datetime.UTC(),
		DurationMinutes: appointment.DurationMinutes,
		ServiceType:     appointment.ServiceType,
		Status:          string(appointment.Status),
	}
}

// NopPublisher drops every event. It is used when no brokers are configured.
type NopPublisher struct{}

// PublishAppointmentEvent implements application.EventPublisher.
func (NopPublisher) PublishAppointmentEvent(context.Context, application.AppointmentEvent) error {
	return nil
}

// SplitBrokers parses a comma separated broker list, skipping blanks.
func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// ReadyCheck dials the first broker.
func ReadyCheck(brokers []string) func(context.Context) error {
	return func(ctx context.Context) error {
		if len(brokers) == 0 {
			return errors.New("kafka brokers not configured")
		}
		dialer := kafka.Dialer{Timeout: 2 * time.Second}
		conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
		if err != nil {
			return err
		}
		_ = conn.Close()
		return nil
	}
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ds124wfegd/crossedpaths/internal/entity"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Notifier hands admission, cancellation and match values to the delivery
// side. The engine never formats or delivers messages itself.
type Notifier interface {
	NotifyAdmission(ctx context.Context, result *entity.AdmissionResult) error
	NotifyCancellation(ctx context.Context, result *entity.CancelResult) error
	NotifyMatch(ctx context.Context, event *entity.MatchEvent) error
}

// MessagePublisher is implemented by the kafka producer and the rabbitmq publisher.
type MessagePublisher interface {
	Publish(ctx context.Context, key string, message interface{}) error
	Close() error
}

// Envelope wraps every outbound value with a type and a unique id so consumers
// can dedupe redeliveries.
type Envelope struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	SentAt  time.Time   `json:"sent_at"`
	Payload interface{} `json:"payload"`
}

func eventKey(eventID int64) string {
	return fmt.Sprintf("event:%d", eventID)
}

func pairKey(lo, hi int64) string {
	return fmt.Sprintf("pair:%d:%d", lo, hi)
}

// LogNotifier only logs. Used when notify.driver is none.
type LogNotifier struct{}

func (LogNotifier) NotifyAdmission(ctx context.Context, result *entity.AdmissionResult) error {
	logrus.WithFields(logrus.Fields{
		"event_id": result.EventID,
		"user_id":  result.UserID,
		"outcome":  result.Outcome,
	}).Debug("admission result")
	return nil
}

func (LogNotifier) NotifyCancellation(ctx context.Context, result *entity.CancelResult) error {
	logrus.WithFields(logrus.Fields{
		"event_id": result.EventID,
		"user_id":  result.UserID,
		"outcome":  result.Outcome,
	}).Debug("cancellation result")
	return nil
}

func (LogNotifier) NotifyMatch(ctx context.Context, event *entity.MatchEvent) error {
	logrus.WithFields(logrus.Fields{
		"user_lo":     event.UserLo,
		"user_hi":     event.UserHi,
		"venue_id":    event.VenueID,
		"cross_count": event.CrossCount,
		"new_match":   event.NewMatch,
	}).Debug("crossed paths")
	return nil
}

// BrokerNotifier publishes envelopes to kafka or rabbitmq.
type BrokerNotifier struct {
	publisher MessagePublisher
	clock     Clock
}

func NewBrokerNotifier(publisher MessagePublisher, clock Clock) *BrokerNotifier {
	return &BrokerNotifier{publisher: publisher, clock: clock}
}

func (n *BrokerNotifier) publish(ctx context.Context, key, typ string, payload interface{}) error {
	env := &Envelope{
		ID:      uuid.NewString(),
		Type:    typ,
		SentAt:  n.clock.Now(),
		Payload: payload,
	}
	if err := n.publisher.Publish(ctx, key, env); err != nil {
		return fmt.Errorf("failed to publish %s: %w", typ, err)
	}
	return nil
}

func (n *BrokerNotifier) NotifyAdmission(ctx context.Context, result *entity.AdmissionResult) error {
	return n.publish(ctx, eventKey(result.EventID), TaskTypeNotifyAdmission, result)
}

func (n *BrokerNotifier) NotifyCancellation(ctx context.Context, result *entity.CancelResult) error {
	return n.publish(ctx, eventKey(result.EventID), TaskTypeNotifyCancellation, result)
}

func (n *BrokerNotifier) NotifyMatch(ctx context.Context, event *entity.MatchEvent) error {
	return n.publish(ctx, pairKey(event.UserLo, event.UserHi), TaskTypeNotifyMatch, event)
}

// QueueNotifier enqueues notification tasks on the redis queue.
type QueueNotifier struct {
	tasks TaskPublisher
}

func NewQueueNotifier(tasks TaskPublisher) *QueueNotifier {
	return &QueueNotifier{tasks: tasks}
}

func (n *QueueNotifier) publish(ctx context.Context, typ string, payload interface{}) error {
	data, err := toTaskData(payload)
	if err != nil {
		return err
	}
	task := &Task{
		ID:   fmt.Sprintf("%s_%s", typ, uuid.NewString()),
		Type: typ,
		Data: data,
	}
	if err := n.tasks.Publish(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", typ, err)
	}
	return nil
}

func (n *QueueNotifier) NotifyAdmission(ctx context.Context, result *entity.AdmissionResult) error {
	return n.publish(ctx, TaskTypeNotifyAdmission, result)
}

func (n *QueueNotifier) NotifyCancellation(ctx context.Context, result *entity.CancelResult) error {
	return n.publish(ctx, TaskTypeNotifyCancellation, result)
}

func (n *QueueNotifier) NotifyMatch(ctx context.Context, event *entity.MatchEvent) error {
	return n.publish(ctx, TaskTypeNotifyMatch, event)
}

// toTaskData flattens a value into the generic map tasks carry.
func toTaskData(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode task payload: %w", err)
	}
	return data, nil
}

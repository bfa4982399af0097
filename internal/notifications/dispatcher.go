package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	"github.com/angelmondragon/fulfillment-engine/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Notice is one message addressed to one user.
type Notice struct {
	UserID  uuid.UUID
	Kind    enums.NotificationKind
	Message string
	Payload map[string]any
}

// Sink delivers notices somewhere: the inbox table, a topic, a test recorder.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, notices []Notice) error
}

// Notifier is what domain services call after commit. It never fails the
// caller; delivery problems are logged.
type Notifier interface {
	Notify(ctx context.Context, notices ...Notice)
}

// Dispatcher fans notices out to every sink concurrently.
type Dispatcher struct {
	sinks []Sink
	logg  *logger.Logger
}

func NewDispatcher(logg *logger.Logger, sinks ...Sink) *Dispatcher {
	if logg == nil {
		logg = logger.Nop()
	}
	active := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	return &Dispatcher{sinks: active, logg: logg}
}

func (d *Dispatcher) Notify(ctx context.Context, notices ...Notice) {
	if err := d.Dispatch(ctx, notices...); err != nil {
		d.logg.Error(d.logg.WithField(ctx, "notices", len(notices)), "notification delivery incomplete", err)
	}
}

// Dispatch delivers to all sinks and returns every sink failure combined.
// One failing sink does not stop the others.
func (d *Dispatcher) Dispatch(ctx context.Context, notices ...Notice) error {
	valid := make([]Notice, 0, len(notices))
	for _, n := range notices {
		if n.UserID == uuid.Nil || !n.Kind.IsValid() {
			continue
		}
		valid = append(valid, n)
	}
	if len(valid) == 0 || len(d.sinks) == 0 {
		return nil
	}

	errs := make([]error, len(d.sinks))
	var g errgroup.Group
	for i, sink := range d.sinks {
		i, sink := i, sink
		g.Go(func() error {
			if err := sink.Deliver(ctx, valid); err != nil {
				errs[i] = fmt.Errorf("%s: %w", sink.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return multierr.Combine(errs...)
}

// InboxSink persists notices as in-app notifications.
type InboxSink struct {
	repo Repository
}

func NewInboxSink(repo Repository) *InboxSink {
	return &InboxSink{repo: repo}
}

func (s *InboxSink) Name() string { return "inbox" }

func (s *InboxSink) Deliver(ctx context.Context, notices []Notice) error {
	var err error
	for _, n := range notices {
		row := &models.Notification{
			UserID:  n.UserID,
			Kind:    n.Kind,
			Message: n.Message,
			Payload: n.Payload,
		}
		err = multierr.Append(err, s.repo.Create(ctx, row))
	}
	return err
}

type publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// TopicSink publishes each notice to the notification topic for push delivery.
type TopicSink struct {
	pub publisher
}

func NewTopicSink(pub publisher) *TopicSink {
	return &TopicSink{pub: pub}
}

func (s *TopicSink) Name() string { return "pubsub" }

type topicMessage struct {
	UserID  uuid.UUID              `json:"user_id"`
	Kind    enums.NotificationKind `json:"kind"`
	Message string                 `json:"message"`
	Payload map[string]any         `json:"payload,omitempty"`
}

func (s *TopicSink) Deliver(ctx context.Context, notices []Notice) error {
	var err error
	for _, n := range notices {
		data, mErr := json.Marshal(topicMessage{UserID: n.UserID, Kind: n.Kind, Message: n.Message, Payload: n.Payload})
		if mErr != nil {
			err = multierr.Append(err, mErr)
			continue
		}
		_, pErr := s.pub.Publish(ctx, data, map[string]string{
			"kind":    n.Kind.String(),
			"user_id": n.UserID.String(),
		})
		err = multierr.Append(err, pErr)
	}
	return err
}

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/skydeck/skydeck/internal/precipitation"
)

// PubSubHandler handles Pub/Sub job messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	Client           *pubsub.Client
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(cfg PubSubConfig) *PubSubHandler {
	subscriber := cfg.Client.Subscriber(cfg.SubscriptionName)

	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           cfg.Client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}
}

// Start processes Pub/Sub messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()
	jobType := JobType(msg.Data)

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Str("job_type", jobType).
		Logger()

	logger.Debug().Msg("received pubsub message")

	if err := h.dispatcher.Dispatch(ctx, msg.Data); err != nil {
		if IsPermanent(err) {
			// Redelivery cannot succeed.
			logger.Warn().Err(err).Msg("dropping job")
			msg.Ack()
			return
		}
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
		return
	}

	logger.Info().
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")

	msg.Ack()
}

// PubSubPublisher publishes precipitation alerts to a topic.
type PubSubPublisher struct {
	publisher *pubsub.Publisher
	topic     string
	logger    zerolog.Logger
}

// NewPubSubPublisher creates an alert publisher for topic.
func NewPubSubPublisher(client *pubsub.Client, topic string, logger zerolog.Logger) *PubSubPublisher {
	return &PubSubPublisher{
		publisher: client.Publisher(topic),
		topic:     topic,
		logger:    logger,
	}
}

// PublishAlert publishes alert and waits for the server to accept it.
func (p *PubSubPublisher) PublishAlert(ctx context.Context, alert precipitation.Alert) error {
	msg, err := AlertMessage(alert)
	if err != nil {
		return err
	}

	serverID, err := p.publisher.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return fmt.Errorf("publishing alert %s to %s: %w", alert.ID, p.topic, err)
	}

	p.logger.Debug().
		Str("alert_id", alert.ID).
		Str("server_id", serverID).
		Msg("alert published")
	return nil
}

// Stop flushes pending messages.
func (p *PubSubPublisher) Stop() {
	p.publisher.Stop()
}

// AlertMessage encodes alert as a Pub/Sub message. Attributes carry the
// location and type so subscribers can filter without decoding the body.
func AlertMessage(alert precipitation.Alert) (*pubsub.Message, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return nil, fmt.Errorf("encoding alert %s: %w", alert.ID, err)
	}
	return &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"alert_id":    alert.ID,
			"location_id": alert.LocationID,
			"type":        string(alert.Type),
			"intensity":   string(alert.Intensity),
		},
	}, nil
}

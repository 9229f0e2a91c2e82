package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	accountdomain "mailsync-backend/internal/account/domain"
	syncusecase "mailsync-backend/internal/sync/usecase"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// NotificationHandler turns a decoded Gmail notification payload into queued work.
type NotificationHandler interface {
	HandleNotification(ctx context.Context, data []byte) error
}

// Service pulls Gmail notifications from a Pub/Sub subscription. It is the
// pull-mode alternative to the push webhook; both feed the same handler.
type Service struct {
	pubsubClient *pubsub.Client
	handler      NotificationHandler
	topicName    string
	subName      string
	log          zerolog.Logger
}

func NewService(ctx context.Context, projectID, topicName, subName string, handler NotificationHandler, credentialsFile string, log zerolog.Logger) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	topicName = shortName(topicName)
	if subName == "" {
		subName = topicName + "-sub"
	}
	return &Service{
		pubsubClient: client,
		handler:      handler,
		topicName:    topicName,
		subName:      shortName(subName),
		log:          log,
	}, nil
}

// shortName strips a projects/<p>/topics/ style prefix.
func shortName(name string) string {
	if parts := strings.Split(name, "/"); len(parts) > 1 {
		return parts[len(parts)-1]
	}
	return name
}

// Start blocks receiving messages until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log := s.log.With().Str("topic", s.topicName).Str("subscription", s.subName).Logger()

	sub, err := s.ensureSubscription(ctx)
	if err != nil {
		return err
	}

	log.Info().Msg("listening for gmail notifications")
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg)
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("receive: %w", err)
	}
	return nil
}

func (s *Service) ensureSubscription(ctx context.Context) (*pubsub.Subscription, error) {
	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check subscription: %w", err)
	}
	if exists {
		return sub, nil
	}

	topic := s.pubsubClient.Topic(s.topicName)
	topicExists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic: %w", err)
	}
	if !topicExists {
		return nil, fmt.Errorf("topic %s does not exist", s.topicName)
	}

	sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	s.log.Info().Str("subscription", s.subName).Msg("created subscription")
	return sub, nil
}

func (s *Service) handleMessage(ctx context.Context, msg *pubsub.Message) {
	if s.process(ctx, msg.ID, msg.Data) {
		msg.Ack()
		return
	}
	msg.Nack()
}

// process reports whether the message should be acked. It acks once the job
// is durably queued. Unknown mailboxes and malformed payloads are acked too
// since redelivery cannot fix them.
func (s *Service) process(ctx context.Context, id string, data []byte) bool {
	err := s.handler.HandleNotification(ctx, data)
	switch {
	case err == nil:
		return true
	case errors.Is(err, accountdomain.ErrAccountNotFound):
		return true
	case errors.Is(err, syncusecase.ErrInvalidNotification):
		s.log.Warn().Err(err).Str("pubsub_id", id).Msg("dropping malformed notification")
		return true
	default:
		s.log.Error().Err(err).Str("pubsub_id", id).Msg("failed to queue notification, nacking")
		return false
	}
}

// Close releases the Pub/Sub client.
func (s *Service) Close() error {
	return s.pubsubClient.Close()
}

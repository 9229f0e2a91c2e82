package gmail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const user = "me"

// TokenUpdateFunc is called with the new token whenever the token source refreshes.
type TokenUpdateFunc func(token *oauth2.Token) error

// Credentials carries the stored OAuth tokens of one linked account.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Mailbox is the subset of the Gmail API used by sync, watch and classification.
type Mailbox interface {
	GetProfile(ctx context.Context) (*gmail.Profile, error)
	ListMessages(ctx context.Context, pageToken string, maxResults int64) (*gmail.ListMessagesResponse, error)
	GetMessage(ctx context.Context, id string) (*gmail.Message, error)
	ListHistory(ctx context.Context, startHistoryID uint64, pageToken string) (*gmail.ListHistoryResponse, error)
	ModifyLabels(ctx context.Context, id string, add, remove []string) error
	Watch(ctx context.Context, topicName string, labelIDs []string) (*gmail.WatchResponse, error)
	Stop(ctx context.Context) error
}

// Service builds per-account Gmail clients. All clients share one circuit breaker.
type Service struct {
	clientID     string
	clientSecret string
	cb           *gobreaker.CircuitBreaker
	log          zerolog.Logger
}

type notifyTokenSource struct {
	mu       sync.Mutex
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
	log      zerolog.Logger
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			s.log.Error().Err(err).Msg("failed to persist refreshed token")
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret string, log zerolog.Logger) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		cb:           newBreaker("gmail-api", log),
		log:          log,
	}
}

// Mailbox returns a client authenticated as the account owning creds.
func (s *Service) Mailbox(ctx context.Context, creds Credentials, onTokenRefresh TokenUpdateFunc) (Mailbox, error) {
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       creds.Expiry,
	}

	// Without a known expiry, force a refresh on first use when possible.
	if token.Expiry.IsZero() && creds.RefreshToken != "" {
		token.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailModifyScope},
	}

	wrapped := &notifyTokenSource{
		src:      config.TokenSource(context.Background(), token),
		current:  token,
		callback: onTokenRefresh,
		log:      s.log,
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(context.Background(), wrapped)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}

	return &apiMailbox{srv: srv, cb: s.cb}, nil
}

type apiMailbox struct {
	srv *gmail.Service
	cb  *gobreaker.CircuitBreaker
}

func (m *apiMailbox) GetProfile(ctx context.Context) (*gmail.Profile, error) {
	return execute(m.cb, func() (*gmail.Profile, error) {
		return m.srv.Users.GetProfile(user).Context(ctx).Do()
	})
}

func (m *apiMailbox) ListMessages(ctx context.Context, pageToken string, maxResults int64) (*gmail.ListMessagesResponse, error) {
	return execute(m.cb, func() (*gmail.ListMessagesResponse, error) {
		call := m.srv.Users.Messages.List(user).MaxResults(maxResults).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		return call.Do()
	})
}

func (m *apiMailbox) GetMessage(ctx context.Context, id string) (*gmail.Message, error) {
	return execute(m.cb, func() (*gmail.Message, error) {
		return m.srv.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
	})
}

func (m *apiMailbox) ListHistory(ctx context.Context, startHistoryID uint64, pageToken string) (*gmail.ListHistoryResponse, error) {
	return execute(m.cb, func() (*gmail.ListHistoryResponse, error) {
		call := m.srv.Users.History.List(user).StartHistoryId(startHistoryID).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		return call.Do()
	})
}

func (m *apiMailbox) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	_, err := execute(m.cb, func() (*gmail.Message, error) {
		return m.srv.Users.Messages.Modify(user, id, &gmail.ModifyMessageRequest{
			AddLabelIds:    add,
			RemoveLabelIds: remove,
		}).Context(ctx).Do()
	})
	return err
}

func (m *apiMailbox) Watch(ctx context.Context, topicName string, labelIDs []string) (*gmail.WatchResponse, error) {
	return execute(m.cb, func() (*gmail.WatchResponse, error) {
		return m.srv.Users.Watch(user, &gmail.WatchRequest{
			TopicName: topicName,
			LabelIds:  labelIDs,
		}).Context(ctx).Do()
	})
}

func (m *apiMailbox) Stop(ctx context.Context) error {
	_, err := execute(m.cb, func() (struct{}, error) {
		return struct{}{}, m.srv.Users.Stop(user).Context(ctx).Do()
	})
	return err
}

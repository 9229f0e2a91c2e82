package usecase

import (
	"context"
	"fmt"
	"sync"

	emaildomain "mailsync-backend/internal/email/domain"
	emailrepo "mailsync-backend/internal/email/repository"
	labeldomain "mailsync-backend/internal/label/domain"
	"mailsync-backend/internal/label/repository"
	"mailsync-backend/pkg/ai"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const defaultChunkSize = 5

// Result summarises one classification run.
type Result struct {
	Messages     int
	Chunks       int
	FailedChunks int
	Associations int
}

// Classifier assigns user labels to messages with a language model.
type Classifier struct {
	completer ai.Completer
	labels    repository.LabelRepository
	messages  emailrepo.MessageRepository
	chunkSize int
	log       zerolog.Logger
}

func NewClassifier(completer ai.Completer, labels repository.LabelRepository, messages emailrepo.MessageRepository, chunkSize int, log zerolog.Logger) *Classifier {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Classifier{
		completer: completer,
		labels:    labels,
		messages:  messages,
		chunkSize: chunkSize,
		log:       log,
	}
}

// ClassifyNewMessages classifies freshly synced messages against every label of the owner.
func (c *Classifier) ClassifyNewMessages(ctx context.Context, appUserID string, messages []*emaildomain.Message) (Result, error) {
	messages = emaildomain.FilterClassifiable(messages)
	if len(messages) == 0 {
		return Result{}, nil
	}

	labels, err := c.labels.FindByOwner(appUserID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load labels: %w", err)
	}
	if len(labels) == 0 {
		return Result{Messages: len(messages)}, nil
	}

	options := make([]LabelOption, len(labels))
	for i, l := range labels {
		options[i] = LabelOption{Name: l.Name, Criteria: l.Prompt}
	}

	return c.run(ctx, messages, func(ctx context.Context, chunk []EmailInput, allowed map[string]bool) ([]labeldomain.MessageLabel, error) {
		prompt, err := BuildBatchPrompt(options, chunk)
		if err != nil {
			return nil, err
		}
		raw, err := c.completer.Complete(ctx, prompt)
		if err != nil {
			return nil, err
		}
		assignments, dropped, err := ParseBatchResponse(raw, len(labels), allowed)
		if err != nil {
			return nil, err
		}
		if dropped > 0 {
			c.log.Warn().Int("dropped", dropped).Msg("skipped malformed classification items")
		}

		var pairs []labeldomain.MessageLabel
		for messageID, vector := range assignments {
			for i, applies := range vector {
				if applies {
					pairs = append(pairs, labeldomain.MessageLabel{MessageID: messageID, LabelID: labels[i].ID})
				}
			}
		}
		return pairs, nil
	})
}

// ClassifyForNewLabel checks the owner's most recent messages against one new label.
func (c *Classifier) ClassifyForNewLabel(ctx context.Context, appUserID string, label *labeldomain.UserLabel, limit int) (Result, error) {
	messages, err := c.messages.ListClassifiable(appUserID, limit)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load messages: %w", err)
	}
	messages = emaildomain.FilterClassifiable(messages)
	if len(messages) == 0 {
		return Result{}, nil
	}

	option := LabelOption{Name: label.Name, Criteria: label.Prompt}
	return c.run(ctx, messages, func(ctx context.Context, chunk []EmailInput, allowed map[string]bool) ([]labeldomain.MessageLabel, error) {
		prompt, err := BuildSingleLabelPrompt(option, chunk)
		if err != nil {
			return nil, err
		}
		raw, err := c.completer.Complete(ctx, prompt)
		if err != nil {
			return nil, err
		}
		ids, dropped, err := ParseSingleLabelResponse(raw, allowed)
		if err != nil {
			return nil, err
		}
		if dropped > 0 {
			c.log.Warn().Int("dropped", dropped).Msg("skipped malformed classification items")
		}

		pairs := make([]labeldomain.MessageLabel, 0, len(ids))
		for _, id := range ids {
			pairs = append(pairs, labeldomain.MessageLabel{MessageID: id, LabelID: label.ID})
		}
		return pairs, nil
	})
}

type chunkFunc func(ctx context.Context, chunk []EmailInput, allowed map[string]bool) ([]labeldomain.MessageLabel, error)

// run classifies all chunks concurrently. A failing chunk only loses its own
// associations.
func (c *Classifier) run(ctx context.Context, messages []*emaildomain.Message, classify chunkFunc) (Result, error) {
	inputs := make([]EmailInput, len(messages))
	for i, m := range messages {
		inputs[i] = Preprocess(m)
	}

	var (
		mu     sync.Mutex
		pairs  []labeldomain.MessageLabel
		result = Result{Messages: len(messages)}
	)

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(inputs); start += c.chunkSize {
		end := start + c.chunkSize
		if end > len(inputs) {
			end = len(inputs)
		}
		chunk := inputs[start:end]
		index := result.Chunks
		result.Chunks++

		g.Go(func() error {
			allowed := make(map[string]bool, len(chunk))
			for _, in := range chunk {
				allowed[in.ID] = true
			}

			got, err := classify(gctx, chunk, allowed)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.FailedChunks++
				c.log.Error().Err(err).Int("chunk", index).Int("size", len(chunk)).Msg("classification chunk failed")
				return nil
			}
			pairs = append(pairs, got...)
			return nil
		})
	}
	_ = g.Wait()

	if len(pairs) == 0 {
		return result, nil
	}
	if err := c.labels.AddAssociations(pairs); err != nil {
		return result, fmt.Errorf("failed to store label associations: %w", err)
	}
	result.Associations = len(pairs)
	return result, nil
}

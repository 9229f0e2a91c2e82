package usecase

import (
	"context"
	"fmt"
	"sync"

	"mailsync-backend/pkg/gmail"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	gmailapi "google.golang.org/api/gmail/v1"
)

const (
	listPageMax        = 500
	defaultConcurrency = 15
)

// FetchResult holds fetched messages. Failed lists ids whose fetch failed for
// a reason other than the message no longer existing.
type FetchResult struct {
	Messages []*gmailapi.Message
	Missing  []string
	Failed   []string
}

// Fetcher lists and downloads messages with a bounded number of in-flight requests.
type Fetcher struct {
	concurrency int
	log         zerolog.Logger
}

func NewFetcher(concurrency int, log zerolog.Logger) *Fetcher {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Fetcher{concurrency: concurrency, log: log}
}

// ListAllIDs pages through the mailbox until maxCount ids are collected or
// there are no more pages. complete is true only when the listing reached the
// end of the mailbox.
func (f *Fetcher) ListAllIDs(ctx context.Context, mailbox gmail.Mailbox, maxCount int) (ids []string, complete bool, err error) {
	var pageToken string
	for len(ids) < maxCount {
		pageSize := maxCount - len(ids)
		if pageSize > listPageMax {
			pageSize = listPageMax
		}
		resp, err := mailbox.ListMessages(ctx, pageToken, int64(pageSize))
		if err != nil {
			return ids, false, fmt.Errorf("list messages: %w", err)
		}
		for _, m := range resp.Messages {
			if m != nil && m.Id != "" {
				ids = append(ids, m.Id)
			}
		}
		if resp.NextPageToken == "" {
			complete = true
			break
		}
		pageToken = resp.NextPageToken
	}
	if len(ids) > maxCount {
		ids = ids[:maxCount]
		complete = false
	}
	return ids, complete, nil
}

// FetchDetails downloads full messages. A failed id is logged and left out of
// the result without affecting the others. Result order is unspecified.
func (f *Fetcher) FetchDetails(ctx context.Context, mailbox gmail.Mailbox, ids []string) FetchResult {
	var (
		mu  sync.Mutex
		res FetchResult
	)

	g := new(errgroup.Group)
	g.SetLimit(f.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			msg, err := mailbox.GetMessage(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && msg != nil:
				res.Messages = append(res.Messages, msg)
			case gmail.IsNotFound(err):
				f.log.Info().Str("gmail_message_id", id).Msg("message gone before fetch")
				res.Missing = append(res.Missing, id)
			default:
				f.log.Error().Err(err).Str("gmail_message_id", id).Msg("failed to fetch message")
				res.Failed = append(res.Failed, id)
			}
			return nil
		})
	}
	_ = g.Wait()
	return res
}

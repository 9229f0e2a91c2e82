package usecase

import (
	emaildomain "mailsync-backend/internal/email/domain"
	emailrepo "mailsync-backend/internal/email/repository"

	"github.com/rs/zerolog"
)

const defaultBatchSize = 250

// Upserter writes normalized messages in bounded batches.
type Upserter struct {
	repo      emailrepo.MessageRepository
	batchSize int
	log       zerolog.Logger
}

func NewUpserter(repo emailrepo.MessageRepository, batchSize int, log zerolog.Logger) *Upserter {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Upserter{repo: repo, batchSize: batchSize, log: log}
}

// Upsert writes messages last-writer-wins on (account, gmail id). A failing
// batch is logged and skipped; it returns the persisted messages and the number
// of failed batches.
func (u *Upserter) Upsert(messages []*emaildomain.Message) ([]*emaildomain.Message, int) {
	messages = dedupeByKey(messages)

	var (
		persisted []*emaildomain.Message
		failed    int
	)
	for start := 0; start < len(messages); start += u.batchSize {
		end := start + u.batchSize
		if end > len(messages) {
			end = len(messages)
		}
		batch := messages[start:end]
		if err := u.repo.UpsertBatch(batch); err != nil {
			failed++
			u.log.Error().Err(err).Int("batch_start", start).Int("batch_size", len(batch)).Msg("upsert batch failed")
			continue
		}
		persisted = append(persisted, batch...)
	}
	return persisted, failed
}

// dedupeByKey keeps the last message per (account, gmail id) since one upsert
// statement cannot touch the same row twice.
func dedupeByKey(messages []*emaildomain.Message) []*emaildomain.Message {
	type key struct{ account, id string }
	index := make(map[key]int, len(messages))
	out := make([]*emaildomain.Message, 0, len(messages))
	for _, m := range messages {
		if m == nil {
			continue
		}
		k := key{m.GmailAccountID, m.GmailMessageID}
		if i, ok := index[k]; ok {
			out[i] = m
			continue
		}
		index[k] = len(out)
		out = append(out, m)
	}
	return out
}

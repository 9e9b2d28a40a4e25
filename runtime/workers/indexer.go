package workers

import (
	"context"
	"log/slog"

	"educhat/domain/chat"
	"educhat/repositories"
)

// IndexerWorker drains the indexing queue and feeds the full-text index.
// Indexing stays off the message send path so a slow index never delays
// delivery.
type IndexerWorker struct {
	log   *slog.Logger
	queue chan chat.GroupMessage
	index repositories.ISearchIndex
}

func NewIndexerWorker(log *slog.Logger, queue chan chat.GroupMessage,
	index repositories.ISearchIndex) *IndexerWorker {
	return &IndexerWorker{log: log, queue: queue, index: index}
}

func (w IndexerWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-w.queue:
			if !ok {
				w.log.Debug("Indexing queue closed")
				return nil
			}
			if err := w.index.Index(msg); err != nil {
				w.log.Warn("Indexing failed", "message_id", msg.ID, "error", err)
			}
		}
	}
}

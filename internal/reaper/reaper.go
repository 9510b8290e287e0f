package reaper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"messenger-service/internal/fanout"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
)

// DeletionNotice is the message-deleted event payload.
type DeletionNotice struct {
	MessageID int       `json:"messageId"`
	DeletedAt time.Time `json:"deletedAt"`
}

// Reaper removes disappearing messages, either on a timer or when a
// disappear-after-read message gets read. Deletions are soft and
// guarded in SQL, so overlapping runs delete each message once.
type Reaper struct {
	messages   repositories.MessageRepository
	fan        fanout.Fanout
	invalidate func(ctx context.Context, userA, userB int)
	logger     *zap.SugaredLogger
	interval   time.Duration
}

// New constructs a Reaper. invalidate may be nil when no cache sits in
// front of the store.
func New(
	messages repositories.MessageRepository,
	fan fanout.Fanout,
	invalidate func(ctx context.Context, userA, userB int),
	logger *zap.SugaredLogger,
	interval time.Duration,
) *Reaper {
	return &Reaper{
		messages:   messages,
		fan:        fan,
		invalidate: invalidate,
		logger:     logger,
		interval:   interval,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Infow("reaper started", "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Infow("reaper stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep deletes every timed disappearing message past its deadline and
// reports how many were removed.
func (r *Reaper) Sweep(ctx context.Context) int {
	deleted, err := r.messages.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		r.logger.Errorw("sweep failed", "error", err)
		return 0
	}
	if len(deleted) == 0 {
		return 0
	}
	r.logger.Infow("swept expired messages", "count", len(deleted))
	r.notify(ctx, deleted, "expired")
	return len(deleted)
}

// DeleteAfterRead deletes the disappear-after-read messages among ids
// that are already read. Ids that do not match are left alone, so the
// caller can pass a whole read batch unfiltered.
func (r *Reaper) DeleteAfterRead(ctx context.Context, messageIDs []int) {
	if len(messageIDs) == 0 {
		return
	}
	deleted, err := r.messages.DeleteReadDisappearing(ctx, messageIDs, time.Now().UTC())
	if err != nil {
		r.logger.Errorw("read-triggered deletion failed", "message_ids", messageIDs, "error", err)
		return
	}
	if len(deleted) == 0 {
		return
	}
	r.notify(ctx, deleted, "read")
}

func (r *Reaper) notify(ctx context.Context, deleted []models.DeletedMessage, trigger string) {
	observability.AddMessagesDeleted(trigger, len(deleted))
	for _, msg := range deleted {
		notice := DeletionNotice{MessageID: msg.ID, DeletedAt: msg.DeletedAt}
		r.fan.EmitToUser(msg.SenderID, fanout.EventMessageDeleted, notice)
		r.fan.EmitToUser(msg.ReceiverID, fanout.EventMessageDeleted, notice)
		if r.invalidate != nil {
			r.invalidate(ctx, msg.SenderID, msg.ReceiverID)
		}
	}
}

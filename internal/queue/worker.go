package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// HandlePublishContentTask consumes one publish task. Dispatch errors are
// swallowed on purpose: every attempt is already recorded in the send
// ledger, and the next poll round rediscovers anything still scheduled, so
// asynq's own retry layer must not stack a second retry policy on top.
func (q *Queue) HandlePublishContentTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishContentPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	if err := q.ds.DispatchDueItem(ctx, payload.ContentItemID); err != nil {
		slog.Info("dispatch failed", "content_item_id", payload.ContentItemID, "error", err.Error())
	}

	return nil
}

package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// EnqueuePublish queues one content item for dispatch. The task id pins the
// task to the item, so a poll round that rediscovers a still-pending item
// does not enqueue a second copy.
func EnqueuePublish(asynqClient *asynq.Client, payload PublishContentPayload) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishContent, taskPayload)

	_, err = asynqClient.Enqueue(task, asynq.TaskID(fmt.Sprintf("publish:content:%d", payload.ContentItemID)))
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return err
	}

	slog.Info("publish task enqueued", "content_item_id", payload.ContentItemID)
	return nil
}

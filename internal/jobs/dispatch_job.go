package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/getpublora/publora/internal/queue"
	"github.com/getpublora/publora/internal/service"
	"github.com/hibiken/asynq"
)

// DispatchJob is the timer-driven producer: on each tick it discovers
// content items whose scheduled time has arrived, across all organizations,
// and enqueues one publish task per item for the worker pool to consume.
type DispatchJob struct {
	ds     service.DispatchService
	client *asynq.Client
}

func NewDispatchJob(ds service.DispatchService, client *asynq.Client) *DispatchJob {
	return &DispatchJob{
		ds:     ds,
		client: client,
	}
}

func (j *DispatchJob) Run() {
	ctx := context.Background()

	due, err := j.ds.DueItems(ctx, 0, time.Now())
	if err != nil {
		// discovery failure aborts this round; the next tick retries
		slog.Info(err.Error())
		return
	}

	for _, item := range due {
		err := queue.EnqueuePublish(j.client, queue.PublishContentPayload{ContentItemID: item.ID})
		if err != nil {
			slog.Info("enqueue failed", "content_item_id", item.ID, "error", err.Error())
		}
	}
}

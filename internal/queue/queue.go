package queue

import (
	"github.com/getpublora/publora/internal/service"
)

// Queue is the consuming side of the publish work queue: it turns an
// enqueued content-item id back into a dispatch round.
type Queue struct {
	ds service.DispatchService
}

func NewQueue(ds service.DispatchService) *Queue {
	return &Queue{ds: ds}
}

const TaskTypePublishContent = "publish:content"

type PublishContentPayload struct {
	ContentItemID int64 `json:"content_item_id"`
}

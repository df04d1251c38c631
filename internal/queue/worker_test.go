package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/getpublora/publora/internal/models"
	"github.com/getpublora/publora/internal/transfer"
	"github.com/hibiken/asynq"
)

type fakeDispatchService struct {
	dispatched []int64
	err        error
}

func (f *fakeDispatchService) RunPoll(ctx context.Context, orgID int64) (int, error) {
	return 0, nil
}

func (f *fakeDispatchService) DueItems(ctx context.Context, orgID int64, now time.Time) ([]*models.ContentItem, error) {
	return nil, nil
}

func (f *fakeDispatchService) DispatchItem(ctx context.Context, item *models.ContentItem) ([]transfer.SendResult, error) {
	return nil, nil
}

func (f *fakeDispatchService) DispatchDueItem(ctx context.Context, contentItemID int64) error {
	f.dispatched = append(f.dispatched, contentItemID)
	return f.err
}

func (f *fakeDispatchService) ManualDispatch(ctx context.Context, orgID int64, req *transfer.PublishRequest) ([]transfer.SendResult, error) {
	return nil, nil
}

func publishTask(t *testing.T, itemID int64) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(PublishContentPayload{ContentItemID: itemID})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return asynq.NewTask(TaskTypePublishContent, payload)
}

func TestHandlePublishContentTask(t *testing.T) {
	ds := &fakeDispatchService{}
	q := NewQueue(ds)

	if err := q.HandlePublishContentTask(context.Background(), publishTask(t, 42)); err != nil {
		t.Fatalf("handle task: %v", err)
	}
	if len(ds.dispatched) != 1 || ds.dispatched[0] != 42 {
		t.Fatalf("expected item 42 dispatched, got %+v", ds.dispatched)
	}
}

func TestHandlePublishContentTaskSwallowsDispatchErrors(t *testing.T) {
	ds := &fakeDispatchService{err: errors.New("platform down")}
	q := NewQueue(ds)

	if err := q.HandlePublishContentTask(context.Background(), publishTask(t, 42)); err != nil {
		t.Fatalf("dispatch errors must not bubble into asynq retries, got %v", err)
	}
}

func TestHandlePublishContentTaskBadPayload(t *testing.T) {
	ds := &fakeDispatchService{}
	q := NewQueue(ds)

	task := asynq.NewTask(TaskTypePublishContent, []byte("not json"))
	if err := q.HandlePublishContentTask(context.Background(), task); err == nil {
		t.Fatal("expected an error for an undecodable payload")
	}
	if len(ds.dispatched) != 0 {
		t.Fatal("nothing should be dispatched for a bad payload")
	}
}

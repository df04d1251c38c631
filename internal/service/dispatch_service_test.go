package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/getpublora/publora/internal/models"
	"github.com/getpublora/publora/internal/transfer"
)

// fakePublishService records fan-outs so dispatch tests can assert on target
// selection without touching a real orchestrator.
type fakePublishService struct {
	dispatched  [][]*models.Connection
	results     []transfer.SendResult
	retried     []int64
	retryResult transfer.SendResult
	retryErr    error
}

func (f *fakePublishService) Dispatch(ctx context.Context, item *models.ContentItem, conns []*models.Connection) []transfer.SendResult {
	f.dispatched = append(f.dispatched, conns)
	if f.results != nil {
		return f.results
	}
	results := make([]transfer.SendResult, 0, len(conns))
	for _, conn := range conns {
		results = append(results, transfer.SendResult{ConnectionID: conn.ID, Platform: conn.Platform, Success: true})
	}
	return results
}

func (f *fakePublishService) RetryOne(ctx context.Context, item *models.ContentItem, conn *models.Connection) (transfer.SendResult, error) {
	f.retried = append(f.retried, conn.ID)
	return f.retryResult, f.retryErr
}

func (f *fakePublishService) Aggregate(ctx context.Context, contentItemID int64) error {
	return nil
}

func (f *fakePublishService) History(ctx context.Context, orgID, contentItemID int64) ([]*models.SendLedgerEntry, error) {
	return nil, nil
}

func scheduledItem(id, orgID int64, platforms ...string) *models.ContentItem {
	return &models.ContentItem{
		ID:            id,
		OrgID:         orgID,
		Status:        models.ContentStatusScheduled,
		ScheduledDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		ScheduledTime: "14:00",
		Platforms:     platforms,
	}
}

func TestDueDeadlineUsesFixedOffset(t *testing.T) {
	item := scheduledItem(1, 10)

	// 14:00 local at UTC+1 is 13:00 UTC
	want := time.Date(2024, 3, 10, 13, 0, 0, 0, time.UTC)
	got := DueDeadline(item, 60)
	if !got.Equal(want) {
		t.Fatalf("expected deadline %v, got %v", want, got)
	}
}

func TestDueDeadlineBadClockFallsBackToMidnight(t *testing.T) {
	item := scheduledItem(1, 10)
	item.ScheduledTime = "garbage"

	want := time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)
	got := DueDeadline(item, 60)
	if !got.Equal(want) {
		t.Fatalf("expected midnight fallback %v, got %v", want, got)
	}
}

func TestDueItemsHonorsDeadlineBoundary(t *testing.T) {
	item := scheduledItem(1, 10)
	ci := newFakeContentItemRepo(item)
	ci.due = []*models.ContentItem{item}
	ds := NewDispatchService(testConfig(), ci, newFakeConnectionRepo(), &fakePublishService{})

	deadline := time.Date(2024, 3, 10, 13, 0, 0, 0, time.UTC)

	due, err := ds.DueItems(context.Background(), 10, deadline.Add(-time.Minute))
	if err != nil {
		t.Fatalf("due items: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("item before its deadline must not be due, got %d", len(due))
	}

	due, err = ds.DueItems(context.Background(), 10, deadline)
	if err != nil {
		t.Fatalf("due items: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("item at its deadline must be due, got %d", len(due))
	}
}

func TestDispatchItemFiltersFacebookProfiles(t *testing.T) {
	item := scheduledItem(1, 10, models.PlatformFacebook)
	page := &models.Connection{ID: 5, OrgID: 10, Platform: models.PlatformFacebook, AccountKind: models.AccountKindPage, IsActive: true}
	profile := &models.Connection{ID: 6, OrgID: 10, Platform: models.PlatformFacebook, AccountKind: models.AccountKindProfile, IsActive: true}

	ps := &fakePublishService{}
	ds := NewDispatchService(testConfig(), newFakeContentItemRepo(item), newFakeConnectionRepo(page, profile), ps)

	if _, err := ds.DispatchItem(context.Background(), item); err != nil {
		t.Fatalf("dispatch item: %v", err)
	}
	if len(ps.dispatched) != 1 || len(ps.dispatched[0]) != 1 {
		t.Fatalf("expected one fan-out with one target, got %+v", ps.dispatched)
	}
	if ps.dispatched[0][0].ID != page.ID {
		t.Fatalf("only the page connection is eligible, got id %d", ps.dispatched[0][0].ID)
	}
}

func TestDispatchItemHonorsPlatformList(t *testing.T) {
	item := scheduledItem(1, 10, models.PlatformInstagram)
	insta := &models.Connection{ID: 5, OrgID: 10, Platform: models.PlatformInstagram, AccountKind: models.AccountKindProfile, IsActive: true}
	tiktok := &models.Connection{ID: 6, OrgID: 10, Platform: models.PlatformTiktok, AccountKind: models.AccountKindProfile, IsActive: true}

	ps := &fakePublishService{}
	ds := NewDispatchService(testConfig(), newFakeContentItemRepo(item), newFakeConnectionRepo(insta, tiktok), ps)

	if _, err := ds.DispatchItem(context.Background(), item); err != nil {
		t.Fatalf("dispatch item: %v", err)
	}
	if len(ps.dispatched[0]) != 1 || ps.dispatched[0][0].ID != insta.ID {
		t.Fatalf("expected only the instagram connection, got %+v", ps.dispatched[0])
	}
}

func TestDispatchItemNoEligibleConnections(t *testing.T) {
	item := scheduledItem(1, 10, models.PlatformYoutube)
	ps := &fakePublishService{}
	ds := NewDispatchService(testConfig(), newFakeContentItemRepo(item), newFakeConnectionRepo(), ps)

	results, err := ds.DispatchItem(context.Background(), item)
	if err != nil {
		t.Fatalf("no eligible connections is not an error, got %v", err)
	}
	if results != nil || len(ps.dispatched) != 0 {
		t.Fatalf("expected no fan-out, got %+v", ps.dispatched)
	}
}

func TestRunPollCountsFreshPublishesOnly(t *testing.T) {
	item := scheduledItem(1, 10, models.PlatformInstagram)
	insta := &models.Connection{ID: 5, OrgID: 10, Platform: models.PlatformInstagram, AccountKind: models.AccountKindProfile, IsActive: true}
	ci := newFakeContentItemRepo(item)
	ci.due = []*models.ContentItem{item}

	ps := &fakePublishService{results: []transfer.SendResult{
		{ConnectionID: 5, Success: true},
		{ConnectionID: 6, Success: true, Skipped: true}, // already published earlier
		{ConnectionID: 7, Error: "boom"},
	}}
	ds := NewDispatchService(testConfig(), ci, newFakeConnectionRepo(insta), ps)

	// the item's deadline (2024-03-10 13:00 UTC) is well in the past here
	published, err := ds.RunPoll(context.Background(), 10)
	if err != nil {
		t.Fatalf("run poll: %v", err)
	}
	if published != 1 {
		t.Fatalf("only fresh successes count, got %d", published)
	}
}

func TestDispatchDueItemSkipsUnscheduled(t *testing.T) {
	item := scheduledItem(1, 10, models.PlatformInstagram)
	item.Status = models.ContentStatusPublished
	ps := &fakePublishService{}
	ds := NewDispatchService(testConfig(), newFakeContentItemRepo(item), newFakeConnectionRepo(), ps)

	if err := ds.DispatchDueItem(context.Background(), item.ID); err != nil {
		t.Fatalf("dispatch due item: %v", err)
	}
	if len(ps.dispatched) != 0 {
		t.Fatal("a no-longer-scheduled item must not be dispatched")
	}
}

func TestDispatchDueItemSkipsNotYetDue(t *testing.T) {
	item := scheduledItem(1, 10, models.PlatformInstagram)
	item.ScheduledDate = time.Now().AddDate(1, 0, 0)
	ps := &fakePublishService{}
	ds := NewDispatchService(testConfig(), newFakeContentItemRepo(item), newFakeConnectionRepo(), ps)

	if err := ds.DispatchDueItem(context.Background(), item.ID); err != nil {
		t.Fatalf("dispatch due item: %v", err)
	}
	if len(ps.dispatched) != 0 {
		t.Fatal("a stale queue task for a future item must be a no-op")
	}
}

func TestManualDispatchValidation(t *testing.T) {
	item := scheduledItem(1, 10, models.PlatformInstagram)
	insta := &models.Connection{ID: 5, OrgID: 10, Platform: models.PlatformInstagram, AccountKind: models.AccountKindProfile, IsActive: true}
	inactive := &models.Connection{ID: 6, OrgID: 10, Platform: models.PlatformInstagram, AccountKind: models.AccountKindProfile, IsActive: false}
	foreign := &models.Connection{ID: 7, OrgID: 99, Platform: models.PlatformInstagram, AccountKind: models.AccountKindProfile, IsActive: true}
	fbProfile := &models.Connection{ID: 8, OrgID: 10, Platform: models.PlatformFacebook, AccountKind: models.AccountKindProfile, IsActive: true}

	ps := &fakePublishService{}
	ds := NewDispatchService(testConfig(), newFakeContentItemRepo(item), newFakeConnectionRepo(insta, inactive, foreign, fbProfile), ps)

	cases := []struct {
		name string
		req  *transfer.PublishRequest
		want error
	}{
		{"missing item", &transfer.PublishRequest{ContentItemID: 404, Platforms: []string{"instagram"}}, ErrNotFound},
		{"neither selector", &transfer.PublishRequest{ContentItemID: 1}, ErrInvalidTargets},
		{"both selectors", &transfer.PublishRequest{ContentItemID: 1, Platforms: []string{"instagram"}, ConnectionIDs: []int64{5}}, ErrInvalidTargets},
		{"unknown connection", &transfer.PublishRequest{ContentItemID: 1, ConnectionIDs: []int64{404}}, ErrInvalidTargets},
		{"inactive connection", &transfer.PublishRequest{ContentItemID: 1, ConnectionIDs: []int64{6}}, ErrInvalidTargets},
		{"foreign connection", &transfer.PublishRequest{ContentItemID: 1, ConnectionIDs: []int64{7}}, ErrForbidden},
		{"facebook profile", &transfer.PublishRequest{ContentItemID: 1, ConnectionIDs: []int64{8}}, ErrInvalidTargets},
		{"retry without target", &transfer.PublishRequest{ContentItemID: 1, Retry: true}, ErrInvalidTargets},
		{"retry unknown target", &transfer.PublishRequest{ContentItemID: 1, Retry: true, RetryConnectionID: 404}, ErrRetryTargetNotFound},
	}

	for _, tc := range cases {
		_, err := ds.ManualDispatch(context.Background(), 10, tc.req)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	if _, err := ds.ManualDispatch(context.Background(), 99, &transfer.PublishRequest{ContentItemID: 1, ConnectionIDs: []int64{5}}); !errors.Is(err, ErrForbidden) {
		t.Errorf("foreign org item: expected ErrForbidden, got %v", err)
	}
	if len(ps.dispatched) != 0 {
		t.Fatal("no validation failure may reach the orchestrator")
	}
}

func TestManualDispatchByConnectionIDs(t *testing.T) {
	item := scheduledItem(1, 10, models.PlatformInstagram)
	insta := &models.Connection{ID: 5, OrgID: 10, Platform: models.PlatformInstagram, AccountKind: models.AccountKindProfile, IsActive: true}

	ps := &fakePublishService{}
	ds := NewDispatchService(testConfig(), newFakeContentItemRepo(item), newFakeConnectionRepo(insta), ps)

	results, err := ds.ManualDispatch(context.Background(), 10, &transfer.PublishRequest{ContentItemID: 1, ConnectionIDs: []int64{5}})
	if err != nil {
		t.Fatalf("manual dispatch: %v", err)
	}
	if len(results) != 1 || results[0].ConnectionID != 5 {
		t.Fatalf("expected one result for connection 5, got %+v", results)
	}
}

func TestManualDispatchRetryPath(t *testing.T) {
	item := scheduledItem(1, 10, models.PlatformInstagram)
	insta := &models.Connection{ID: 5, OrgID: 10, Platform: models.PlatformInstagram, AccountKind: models.AccountKindProfile, IsActive: true}

	ps := &fakePublishService{retryResult: transfer.SendResult{ConnectionID: 5, Success: true}}
	ds := NewDispatchService(testConfig(), newFakeContentItemRepo(item), newFakeConnectionRepo(insta), ps)

	results, err := ds.ManualDispatch(context.Background(), 10, &transfer.PublishRequest{ContentItemID: 1, Retry: true, RetryConnectionID: 5})
	if err != nil {
		t.Fatalf("manual retry: %v", err)
	}
	if len(ps.retried) != 1 || ps.retried[0] != 5 {
		t.Fatalf("expected a single retry of connection 5, got %+v", ps.retried)
	}
	if len(results) != 1 || !results[0].Success {
		t.Fatalf("expected the retry result, got %+v", results)
	}
}

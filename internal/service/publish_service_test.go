package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/getpublora/publora/internal/models"
	"github.com/getpublora/publora/internal/platform"
)

type publishFixture struct {
	ps    PublishService
	sl    *fakeSendLedgerRepo
	ci    *fakeContentItemRepo
	pub   *fakePublisher
	item  *models.ContentItem
	conns map[int64]*models.Connection
}

func newPublishFixture(t *testing.T) *publishFixture {
	t.Helper()

	item := &models.ContentItem{
		ID:            1,
		OrgID:         10,
		Title:         "Launch day",
		Body:          "We are live.",
		Status:        models.ContentStatusScheduled,
		ScheduledDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		ScheduledTime: "14:00",
	}

	sl := newFakeSendLedgerRepo()
	ci := newFakeContentItemRepo(item)
	pub := &fakePublisher{failAccounts: make(map[string]string)}

	registry := platform.NewRegistry()
	registry.Register(models.PlatformInstagram, pub)
	registry.Register(models.PlatformFacebook, pub)

	return &publishFixture{
		ps:    NewPublishService(testConfig(), sl, ci, registry),
		sl:    sl,
		ci:    ci,
		pub:   pub,
		item:  item,
		conns: make(map[int64]*models.Connection),
	}
}

func (fx *publishFixture) connection(t *testing.T, id int64, platformName, accountID string) *models.Connection {
	t.Helper()
	conn := &models.Connection{
		ID:          id,
		OrgID:       fx.item.OrgID,
		Platform:    platformName,
		AccountID:   accountID,
		AccountKind: models.AccountKindPage,
		IsActive:    true,
		AccessToken: encryptToken(t, "token-"+accountID),
	}
	fx.conns[id] = conn
	return conn
}

func TestDispatchFirstAttemptSucceeds(t *testing.T) {
	fx := newPublishFixture(t)
	conn := fx.connection(t, 5, models.PlatformInstagram, "acc5")

	results := fx.ps.Dispatch(context.Background(), fx.item, []*models.Connection{conn})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !results[0].Success || results[0].Skipped {
		t.Fatalf("expected fresh success, got %+v", results[0])
	}
	entry, _ := fx.sl.GetByPair(context.Background(), fx.item.ID, conn.ID)
	if entry == nil || entry.Status != models.SendStatusPublished {
		t.Fatalf("expected published ledger entry, got %+v", entry)
	}
	if fx.item.Status != models.ContentStatusPublished {
		t.Fatalf("expected item published, got %s", fx.item.Status)
	}
}

func TestDispatchFirstAttemptFails(t *testing.T) {
	fx := newPublishFixture(t)
	conn := fx.connection(t, 5, models.PlatformInstagram, "acc5")
	fx.pub.failAccounts["acc5"] = "rate limited"

	results := fx.ps.Dispatch(context.Background(), fx.item, []*models.Connection{conn})

	if results[0].Success {
		t.Fatal("expected failure")
	}
	if results[0].Error != "rate limited" {
		t.Fatalf("expected adapter error message, got %q", results[0].Error)
	}
	entry, _ := fx.sl.GetByPair(context.Background(), fx.item.ID, conn.ID)
	if entry.Status != models.SendStatusFailed || entry.RetryCount != 1 {
		t.Fatalf("expected failed entry with one attempt, got %+v", entry)
	}
	if fx.item.Status != models.ContentStatusScheduled {
		t.Fatalf("item must stay scheduled while nothing succeeded, got %s", fx.item.Status)
	}
}

func TestDispatchRetriesFailedEntryWithinBudget(t *testing.T) {
	fx := newPublishFixture(t)
	conn := fx.connection(t, 5, models.PlatformInstagram, "acc5")
	fx.pub.failAccounts["acc5"] = "still down"
	fx.sl.seed(&models.SendLedgerEntry{
		ContentItemID: fx.item.ID,
		ConnectionID:  conn.ID,
		Status:        models.SendStatusFailed,
		ErrorMessage:  "first failure",
		RetryCount:    RetryBudget - 1,
	})

	results := fx.ps.Dispatch(context.Background(), fx.item, []*models.Connection{conn})

	if fx.pub.calls != 1 {
		t.Fatalf("expected one retry attempt, got %d", fx.pub.calls)
	}
	if results[0].Success || results[0].Skipped {
		t.Fatalf("expected a real failed attempt, got %+v", results[0])
	}
	entry, _ := fx.sl.GetByPair(context.Background(), fx.item.ID, conn.ID)
	if entry.RetryCount != RetryBudget {
		t.Fatalf("expected retry count %d, got %d", RetryBudget, entry.RetryCount)
	}
}

func TestDispatchSkipsExhaustedEntry(t *testing.T) {
	fx := newPublishFixture(t)
	conn := fx.connection(t, 5, models.PlatformInstagram, "acc5")
	fx.sl.seed(&models.SendLedgerEntry{
		ContentItemID: fx.item.ID,
		ConnectionID:  conn.ID,
		Status:        models.SendStatusFailed,
		ErrorMessage:  "token revoked",
		RetryCount:    RetryBudget,
	})

	results := fx.ps.Dispatch(context.Background(), fx.item, []*models.Connection{conn})

	if fx.pub.calls != 0 {
		t.Fatalf("exhausted entry must not be attempted, got %d calls", fx.pub.calls)
	}
	if !results[0].Skipped || results[0].Error != "token revoked" {
		t.Fatalf("expected skip carrying the last error, got %+v", results[0])
	}
}

func TestDispatchPublishedEntryIsIdempotentNoOp(t *testing.T) {
	fx := newPublishFixture(t)
	conn := fx.connection(t, 5, models.PlatformInstagram, "acc5")
	fx.sl.seed(&models.SendLedgerEntry{
		ContentItemID: fx.item.ID,
		ConnectionID:  conn.ID,
		Status:        models.SendStatusPublished,
		RemotePostURL: "https://example.com/done",
	})

	results := fx.ps.Dispatch(context.Background(), fx.item, []*models.Connection{conn})

	if fx.pub.calls != 0 {
		t.Fatalf("published entry must not be re-sent, got %d calls", fx.pub.calls)
	}
	r := results[0]
	if !r.Success || !r.Skipped || r.PostURL != "https://example.com/done" {
		t.Fatalf("expected success+skip with existing url, got %+v", r)
	}
}

func TestDispatchSkipsInFlightEntry(t *testing.T) {
	fx := newPublishFixture(t)
	conn := fx.connection(t, 5, models.PlatformInstagram, "acc5")
	fx.sl.seed(&models.SendLedgerEntry{
		ContentItemID: fx.item.ID,
		ConnectionID:  conn.ID,
		Status:        models.SendStatusPublishing,
	})

	results := fx.ps.Dispatch(context.Background(), fx.item, []*models.Connection{conn})

	if fx.pub.calls != 0 {
		t.Fatalf("in-flight entry must not be attempted, got %d calls", fx.pub.calls)
	}
	if !results[0].Skipped || results[0].Success {
		t.Fatalf("expected skip, got %+v", results[0])
	}
}

func TestDispatchTwiceSendsOnce(t *testing.T) {
	fx := newPublishFixture(t)
	conn := fx.connection(t, 5, models.PlatformInstagram, "acc5")

	fx.ps.Dispatch(context.Background(), fx.item, []*models.Connection{conn})
	results := fx.ps.Dispatch(context.Background(), fx.item, []*models.Connection{conn})

	if fx.pub.calls != 1 {
		t.Fatalf("duplicate dispatch must not re-send, got %d calls", fx.pub.calls)
	}
	if !results[0].Skipped {
		t.Fatalf("second round should report a skip, got %+v", results[0])
	}
}

func TestPartialSuccessPublishesItem(t *testing.T) {
	fx := newPublishFixture(t)
	good := fx.connection(t, 5, models.PlatformInstagram, "acc5")
	bad := fx.connection(t, 6, models.PlatformFacebook, "acc6")
	fx.pub.failAccounts["acc6"] = "page unavailable"

	results := fx.ps.Dispatch(context.Background(), fx.item, []*models.Connection{good, bad})

	if !results[0].Success || results[1].Success {
		t.Fatalf("expected one success and one failure, got %+v", results)
	}
	if fx.item.Status != models.ContentStatusPublished {
		t.Fatalf("one published connection makes the item published, got %s", fx.item.Status)
	}
	entry, _ := fx.sl.GetByPair(context.Background(), fx.item.ID, bad.ID)
	if entry.Status != models.SendStatusFailed {
		t.Fatalf("failed connection keeps its ledger state, got %+v", entry)
	}
}

func TestAggregateDoesNotRestampPublishedItem(t *testing.T) {
	fx := newPublishFixture(t)
	conn := fx.connection(t, 5, models.PlatformInstagram, "acc5")
	fx.item.Status = models.ContentStatusPublished
	fx.sl.seed(&models.SendLedgerEntry{
		ContentItemID: fx.item.ID,
		ConnectionID:  conn.ID,
		Status:        models.SendStatusPublished,
	})

	if err := fx.ps.Aggregate(context.Background(), fx.item.ID); err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if fx.ci.publishedCalls != 0 {
		t.Fatalf("published item must not be restamped, got %d calls", fx.ci.publishedCalls)
	}
}

func TestRetryOneResetsBudgetAndAttemptsOnce(t *testing.T) {
	fx := newPublishFixture(t)
	conn := fx.connection(t, 5, models.PlatformInstagram, "acc5")
	fx.pub.failAccounts["acc5"] = "still broken"
	fx.sl.seed(&models.SendLedgerEntry{
		ContentItemID: fx.item.ID,
		ConnectionID:  conn.ID,
		Status:        models.SendStatusFailed,
		ErrorMessage:  "old error",
		RetryCount:    RetryBudget,
	})

	result, err := fx.ps.RetryOne(context.Background(), fx.item, conn)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if fx.pub.calls != 1 {
		t.Fatalf("manual retry does exactly one attempt, got %d", fx.pub.calls)
	}
	if result.Success {
		t.Fatal("expected the retry attempt to fail")
	}
	entry, _ := fx.sl.GetByPair(context.Background(), fx.item.ID, conn.ID)
	if entry.RetryCount != 1 {
		t.Fatalf("retry counter must restart from zero, got %d", entry.RetryCount)
	}
	if entry.ErrorMessage != "still broken" {
		t.Fatalf("expected the fresh error, got %q", entry.ErrorMessage)
	}
}

func TestRetryOneSucceedsAfterExhaustion(t *testing.T) {
	fx := newPublishFixture(t)
	conn := fx.connection(t, 5, models.PlatformInstagram, "acc5")
	fx.sl.seed(&models.SendLedgerEntry{
		ContentItemID: fx.item.ID,
		ConnectionID:  conn.ID,
		Status:        models.SendStatusFailed,
		ErrorMessage:  "old error",
		RetryCount:    RetryBudget,
	})

	result, err := fx.ps.RetryOne(context.Background(), fx.item, conn)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if fx.item.Status != models.ContentStatusPublished {
		t.Fatalf("successful retry rolls up to the item, got %s", fx.item.Status)
	}
}

func TestRetryOneRequiresExistingEntry(t *testing.T) {
	fx := newPublishFixture(t)
	conn := fx.connection(t, 5, models.PlatformInstagram, "acc5")

	_, err := fx.ps.RetryOne(context.Background(), fx.item, conn)
	if !errors.Is(err, ErrRetryTargetNotFound) {
		t.Fatalf("expected ErrRetryTargetNotFound, got %v", err)
	}
	if fx.pub.calls != 0 {
		t.Fatal("no attempt without a ledger entry")
	}
}

func TestHistoryScopedToOrganization(t *testing.T) {
	fx := newPublishFixture(t)

	if _, err := fx.ps.History(context.Background(), 99, fx.item.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for a foreign org, got %v", err)
	}
	if _, err := fx.ps.History(context.Background(), fx.item.OrgID, 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a missing item, got %v", err)
	}
}

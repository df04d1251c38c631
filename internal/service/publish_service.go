package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	config "github.com/getpublora/publora/configs"
	"github.com/getpublora/publora/internal/models"
	"github.com/getpublora/publora/internal/platform"
	"github.com/getpublora/publora/internal/repository"
	"github.com/getpublora/publora/internal/transfer"
	"github.com/getpublora/publora/pkg/utils"
)

// RetryBudget is the number of automatic attempts a (content item,
// connection) pair gets before it is skipped pending manual retry.
const RetryBudget = 3

// adapterTimeout bounds one platform call; expiry feeds the normal
// failed-attempt path.
const adapterTimeout = 2 * time.Minute

var (
	ErrNotFound            = errors.New("content item not found")
	ErrForbidden           = errors.New("not authorized for this organization")
	ErrInvalidTargets      = errors.New("exactly one of platforms or connection_ids must be provided")
	ErrRetryTargetNotFound = errors.New("retry target not found")
)

type PublishService interface {
	Dispatch(ctx context.Context, item *models.ContentItem, conns []*models.Connection) []transfer.SendResult
	RetryOne(ctx context.Context, item *models.ContentItem, conn *models.Connection) (transfer.SendResult, error)
	Aggregate(ctx context.Context, contentItemID int64) error
	History(ctx context.Context, orgID, contentItemID int64) ([]*models.SendLedgerEntry, error)
}

type publishService struct {
	cfg      config.Config
	sl       repository.SendLedgerRepository
	ci       repository.ContentItemRepository
	registry *platform.Registry
}

func NewPublishService(
	cfg config.Config,
	sl repository.SendLedgerRepository,
	ci repository.ContentItemRepository,
	registry *platform.Registry) PublishService {
	return &publishService{
		cfg:      cfg,
		sl:       sl,
		ci:       ci,
		registry: registry,
	}
}

// Dispatch fans one content item out to its target connections, one ledger
// write and at most one adapter call per connection. A failure on one
// connection never aborts the others; every outcome lands in the send ledger
// and the item's own status is rolled up once at the end of the round.
func (s *publishService) Dispatch(ctx context.Context, item *models.ContentItem, conns []*models.Connection) []transfer.SendResult {
	results := make([]transfer.SendResult, 0, len(conns))
	for _, conn := range conns {
		results = append(results, s.dispatchOne(ctx, item, conn))
	}

	if err := s.Aggregate(ctx, item.ID); err != nil {
		slog.Info(err.Error())
	}

	return results
}

func (s *publishService) dispatchOne(ctx context.Context, item *models.ContentItem, conn *models.Connection) transfer.SendResult {
	result := transfer.SendResult{ConnectionID: conn.ID, Platform: conn.Platform}

	entry, err := s.sl.GetByPair(ctx, item.ID, conn.ID)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	var entryID int64
	if entry == nil {
		id, claimed, err := s.sl.Claim(ctx, item.ID, conn.ID)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		if !claimed {
			// lost the race: another dispatch round owns this pair
			result.Skipped = true
			return result
		}
		entryID = id
	} else {
		switch {
		case entry.Status == models.SendStatusPublished:
			// already done, idempotent no-op
			result.Success = true
			result.Skipped = true
			result.PostURL = entry.RemotePostURL
			return result

		case entry.Status == models.SendStatusFailed && entry.RetryCount < RetryBudget:
			if err := s.sl.SetPublishing(ctx, entry.ID); err != nil {
				result.Error = err.Error()
				return result
			}
			entryID = entry.ID

		case entry.Status == models.SendStatusFailed:
			// budget exhausted; only the manual retry path touches it now
			result.Skipped = true
			result.Error = entry.ErrorMessage
			return result

		default:
			// still publishing in another round
			result.Skipped = true
			return result
		}
	}

	return s.attempt(ctx, entryID, item, conn, result)
}

// RetryOne is the operator's manual retry. It requires an existing ledger
// entry, resets its retry budget, and performs exactly one fresh attempt no
// matter how many automatic retries preceded it.
func (s *publishService) RetryOne(ctx context.Context, item *models.ContentItem, conn *models.Connection) (transfer.SendResult, error) {
	result := transfer.SendResult{ConnectionID: conn.ID, Platform: conn.Platform}

	entry, err := s.sl.GetByPair(ctx, item.ID, conn.ID)
	if err != nil {
		return result, err
	}
	if entry == nil {
		return result, ErrRetryTargetNotFound
	}

	if err := s.sl.ResetForRetry(ctx, entry.ID); err != nil {
		return result, err
	}

	result = s.attempt(ctx, entry.ID, item, conn, result)

	if err := s.Aggregate(ctx, item.ID); err != nil {
		slog.Info(err.Error())
	}

	return result, nil
}

func (s *publishService) attempt(ctx context.Context, entryID int64, item *models.ContentItem, conn *models.Connection, result transfer.SendResult) transfer.SendResult {
	outcome, err := s.publishOnce(ctx, item, conn)
	if err != nil {
		slog.Info("publish attempt failed", "content_item_id", item.ID, "connection_id", conn.ID, "platform", conn.Platform, "error", err.Error())
		result.Error = err.Error()
		if err := s.sl.MarkFailed(ctx, entryID, result.Error); err != nil {
			slog.Info(err.Error())
		}
		return result
	}

	if err := s.sl.MarkPublished(ctx, entryID, outcome.RemotePostID, outcome.RemotePostURL); err != nil {
		slog.Info(err.Error())
	}

	result.Success = true
	result.PostURL = outcome.RemotePostURL
	return result
}

func (s *publishService) publishOnce(ctx context.Context, item *models.ContentItem, conn *models.Connection) (*platform.Outcome, error) {
	pub, ok := s.registry.Get(conn.Platform)
	if !ok {
		return nil, fmt.Errorf("no publisher registered for platform %s", conn.Platform)
	}

	accessToken, err := utils.Decrypt(conn.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}

	creds := platform.Credentials{
		AccessToken: accessToken,
		AccountID:   conn.AccountID,
		AccountKind: conn.AccountKind,
	}
	payload := platform.Payload{
		Title:     item.Title,
		Body:      item.Body,
		LinkURL:   item.LinkURL,
		UTMParams: item.UTMParams,
		MediaURLs: item.MediaURLs,
	}

	callCtx, cancel := context.WithTimeout(ctx, adapterTimeout)
	defer cancel()

	return pub.Publish(callCtx, creds, payload)
}

// Aggregate rolls the ledger up into the content item's own status: one
// published connection makes the item published. When nothing has succeeded
// yet the item stays scheduled, so future rounds keep retrying; there is no
// terminal all-failed state.
func (s *publishService) Aggregate(ctx context.Context, contentItemID int64) error {
	entries, err := s.sl.ListByContentItem(ctx, contentItemID)
	if err != nil {
		return err
	}

	anyPublished := false
	for _, entry := range entries {
		if entry.Status == models.SendStatusPublished {
			anyPublished = true
			break
		}
	}
	if !anyPublished {
		return nil
	}

	item, err := s.ci.GetByID(ctx, contentItemID)
	if err != nil {
		return err
	}
	if item == nil || item.Status == models.ContentStatusPublished {
		return nil
	}

	return s.ci.MarkPublished(ctx, contentItemID, time.Now())
}

func (s *publishService) History(ctx context.Context, orgID, contentItemID int64) ([]*models.SendLedgerEntry, error) {
	item, err := s.ci.GetByID(ctx, contentItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}
	if item.OrgID != orgID {
		return nil, ErrForbidden
	}

	return s.sl.ListByContentItem(ctx, contentItemID)
}

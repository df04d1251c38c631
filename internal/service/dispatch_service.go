package service

import (
	"context"
	"log/slog"
	"time"

	config "github.com/getpublora/publora/configs"
	"github.com/getpublora/publora/internal/models"
	"github.com/getpublora/publora/internal/platform"
	"github.com/getpublora/publora/internal/repository"
	"github.com/getpublora/publora/internal/transfer"
)

type DispatchService interface {
	RunPoll(ctx context.Context, orgID int64) (int, error)
	DueItems(ctx context.Context, orgID int64, now time.Time) ([]*models.ContentItem, error)
	DispatchItem(ctx context.Context, item *models.ContentItem) ([]transfer.SendResult, error)
	DispatchDueItem(ctx context.Context, contentItemID int64) error
	ManualDispatch(ctx context.Context, orgID int64, req *transfer.PublishRequest) ([]transfer.SendResult, error)
}

type dispatchService struct {
	cfg config.Config
	ci  repository.ContentItemRepository
	cr  repository.ConnectionRepository
	ps  PublishService
}

func NewDispatchService(
	cfg config.Config,
	ci repository.ContentItemRepository,
	cr repository.ConnectionRepository,
	ps PublishService) DispatchService {
	return &dispatchService{
		cfg: cfg,
		ci:  ci,
		cr:  cr,
		ps:  ps,
	}
}

// DueDeadline combines a content item's scheduled date and local wall-clock
// time with the fixed regional UTC offset into the instant the item becomes
// dispatchable. The offset comes from configuration, never from the
// organization's own timezone setting.
func DueDeadline(item *models.ContentItem, offsetMinutes int) time.Time {
	loc := time.FixedZone("publish", offsetMinutes*60)

	clock, err := time.Parse("15:04", item.ScheduledTime)
	if err != nil {
		// unparseable clock time falls back to midnight
		clock = time.Time{}
	}

	d := item.ScheduledDate
	return time.Date(d.Year(), d.Month(), d.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
}

// DueItems returns scheduled items whose deadline is at or before now.
// orgID 0 spans all organizations (the background producer's scope).
func (s *dispatchService) DueItems(ctx context.Context, orgID int64, now time.Time) ([]*models.ContentItem, error) {
	items, err := s.ci.ListScheduledDue(ctx, orgID, now)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	var due []*models.ContentItem
	for _, item := range items {
		if !DueDeadline(item, s.cfg.PublishOffsetMinutes).After(now) {
			due = append(due, item)
		}
	}
	return due, nil
}

// RunPoll executes one dispatch round for an organization and returns how
// many connections were published in this round. A discovery error aborts
// the round; a per-item error is logged and the round moves on.
func (s *dispatchService) RunPoll(ctx context.Context, orgID int64) (int, error) {
	due, err := s.DueItems(ctx, orgID, time.Now())
	if err != nil {
		return 0, err
	}

	published := 0
	for _, item := range due {
		results, err := s.DispatchItem(ctx, item)
		if err != nil {
			slog.Info("dispatch failed", "content_item_id", item.ID, "error", err.Error())
			continue
		}
		for _, r := range results {
			if r.Success && !r.Skipped {
				published++
			}
		}
	}

	return published, nil
}

// DispatchItem expands one item into its eligible connections and hands the
// fan-out to the orchestrator. No eligible connections is not an error; the
// item is simply reconsidered next round.
func (s *dispatchService) DispatchItem(ctx context.Context, item *models.ContentItem) ([]transfer.SendResult, error) {
	conns, err := s.eligibleConnections(ctx, item)
	if err != nil {
		return nil, err
	}
	if len(conns) == 0 {
		return nil, nil
	}

	return s.ps.Dispatch(ctx, item, conns), nil
}

// DispatchDueItem is the work-queue entry point. It reloads the item and
// dispatches only if it is still scheduled and its deadline has passed, so a
// stale or duplicate task is a no-op.
func (s *dispatchService) DispatchDueItem(ctx context.Context, contentItemID int64) error {
	item, err := s.ci.GetByID(ctx, contentItemID)
	if err != nil {
		return err
	}
	if item == nil || item.Status != models.ContentStatusScheduled {
		return nil
	}
	if DueDeadline(item, s.cfg.PublishOffsetMinutes).After(time.Now()) {
		return nil
	}

	_, err = s.DispatchItem(ctx, item)
	return err
}

func (s *dispatchService) eligibleConnections(ctx context.Context, item *models.ContentItem) ([]*models.Connection, error) {
	conns, err := s.cr.ListActiveByOrgID(ctx, item.OrgID)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(item.Platforms))
	for _, p := range item.Platforms {
		wanted[p] = true
	}

	var eligible []*models.Connection
	for _, conn := range conns {
		if len(wanted) > 0 && !wanted[conn.Platform] {
			continue
		}
		if !platform.Eligible(conn.Platform, conn.AccountKind) {
			continue
		}
		eligible = append(eligible, conn)
	}
	return eligible, nil
}

// ManualDispatch serves the manual publish entry point: a fresh dispatch to
// explicit platforms or connection ids, or the single-connection manual
// retry when req.Retry is set.
func (s *dispatchService) ManualDispatch(ctx context.Context, orgID int64, req *transfer.PublishRequest) ([]transfer.SendResult, error) {
	item, err := s.ci.GetByID(ctx, req.ContentItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}
	if item.OrgID != orgID {
		return nil, ErrForbidden
	}

	if req.Retry {
		if req.RetryConnectionID == 0 {
			return nil, ErrInvalidTargets
		}
		conn, err := s.cr.GetByID(ctx, req.RetryConnectionID)
		if err != nil {
			return nil, err
		}
		if conn == nil {
			return nil, ErrRetryTargetNotFound
		}
		if conn.OrgID != orgID {
			return nil, ErrForbidden
		}

		result, err := s.ps.RetryOne(ctx, item, conn)
		if err != nil {
			return nil, err
		}
		return []transfer.SendResult{result}, nil
	}

	hasPlatforms := len(req.Platforms) > 0
	hasConnections := len(req.ConnectionIDs) > 0
	if hasPlatforms == hasConnections {
		return nil, ErrInvalidTargets
	}

	var targets []*models.Connection
	if hasPlatforms {
		conns, err := s.cr.ListActiveByOrgID(ctx, orgID)
		if err != nil {
			return nil, err
		}
		wanted := make(map[string]bool, len(req.Platforms))
		for _, p := range req.Platforms {
			wanted[p] = true
		}
		for _, conn := range conns {
			if wanted[conn.Platform] && platform.Eligible(conn.Platform, conn.AccountKind) {
				targets = append(targets, conn)
			}
		}
	} else {
		for _, id := range req.ConnectionIDs {
			conn, err := s.cr.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if conn == nil || !conn.IsActive {
				return nil, ErrInvalidTargets
			}
			if conn.OrgID != orgID {
				return nil, ErrForbidden
			}
			if !platform.Eligible(conn.Platform, conn.AccountKind) {
				return nil, ErrInvalidTargets
			}
			targets = append(targets, conn)
		}
	}

	if len(targets) == 0 {
		return nil, ErrInvalidTargets
	}

	return s.ps.Dispatch(ctx, item, targets), nil
}

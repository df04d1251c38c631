package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"time"

	"github.com/getpublora/publora/internal/models"
	"github.com/getpublora/publora/internal/repository"
	"github.com/getpublora/publora/internal/transfer"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type ContentService interface {
	Create(ctx context.Context, orgID int64, cc *transfer.ContentItemCreation) (int64, error)
	List(ctx context.Context, orgID int64) ([]*models.ContentItem, error)
	Info(ctx context.Context, orgID, itemID int64) (*models.ContentItem, error)
	Remove(ctx context.Context, orgID, itemID int64) error
	UploadMedia(ctx context.Context, orgID int64, files []*multipart.FileHeader) ([]string, error)
}

type contentService struct {
	ci repository.ContentItemRepository
	ma repository.MediaAssetRepository
	r2 R2Service
}

func NewContentService(
	ci repository.ContentItemRepository,
	ma repository.MediaAssetRepository,
	r2 R2Service) ContentService {
	return &contentService{
		ci: ci,
		ma: ma,
		r2: r2,
	}
}

// Create stores a content item in status scheduled. The payload fields are
// opaque to the publishing engine; only the schedule and the platform list
// are interpreted here.
func (s *contentService) Create(ctx context.Context, orgID int64, cc *transfer.ContentItemCreation) (int64, error) {
	if cc == nil {
		err := errors.New("content item data is nil")
		slog.Error(err.Error())
		return 0, err
	}
	if cc.Body == "" && len(cc.MediaURLs) == 0 {
		err := errors.New("content item needs a body or media")
		slog.Info(err.Error())
		return 0, err
	}

	scheduledDate, err := time.Parse("2006-01-02", cc.ScheduledDate)
	if err != nil {
		err = fmt.Errorf("invalid scheduled date format: %w", err)
		slog.Error(err.Error())
		return 0, err
	}
	if _, err := time.Parse("15:04", cc.ScheduledTime); err != nil {
		err = fmt.Errorf("invalid scheduled time format: %w", err)
		slog.Error(err.Error())
		return 0, err
	}

	item := models.ContentItem{
		OrgID:         orgID,
		Title:         cc.Title,
		Body:          cc.Body,
		LinkURL:       cc.LinkURL,
		UTMParams:     cc.UTMParams,
		MediaURLs:     cc.MediaURLs,
		Platforms:     cc.Platforms,
		ScheduledDate: scheduledDate,
		ScheduledTime: cc.ScheduledTime,
		Status:        models.ContentStatusScheduled,
	}

	itemID, err := s.ci.Create(ctx, nil, &item)
	if err != nil {
		return 0, fmt.Errorf("error creating content item: %w", err)
	}

	return itemID, nil
}

func (s *contentService) List(ctx context.Context, orgID int64) ([]*models.ContentItem, error) {
	items, err := s.ci.ListByOrgID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("error listing content items")
	}
	return items, nil
}

func (s *contentService) Info(ctx context.Context, orgID, itemID int64) (*models.ContentItem, error) {
	item, err := s.ci.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}
	if item.OrgID != orgID {
		return nil, ErrForbidden
	}
	return item, nil
}

func (s *contentService) Remove(ctx context.Context, orgID, itemID int64) error {
	isValid, err := s.ci.CheckByOrgID(ctx, itemID, orgID)
	if err != nil {
		return err
	}
	if !isValid {
		slog.Info("content item doesn't exist", "content_item_id", itemID)
		return ErrNotFound
	}

	if err := s.ci.Remove(ctx, itemID); err != nil {
		return fmt.Errorf("error removing content item")
	}

	return nil
}

// UploadMedia validates and stores payload media in R2, returning the public
// URLs the authoring flow embeds in a content item.
func (s *contentService) UploadMedia(ctx context.Context, orgID int64, files []*multipart.FileHeader) ([]string, error) {
	allowedTypes := map[string]struct{}{
		"mp4": {}, "mov": {}, "jpeg": {}, "png": {}, "jpg": {},
	}

	var urls []string
	for _, file := range files {
		fileContent, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("error opening file: %w", err)
		}

		fileBytes, err := io.ReadAll(fileContent)
		fileContent.Close()
		if err != nil {
			return nil, fmt.Errorf("error reading file content: %w", err)
		}

		fileType, err := filetype.Match(fileBytes)
		if err != nil || fileType == types.Unknown {
			return nil, fmt.Errorf("unsupported file type: %w", err)
		}
		if _, ok := allowedTypes[fileType.Extension]; !ok {
			return nil, fmt.Errorf("file type %s is not allowed", fileType.Extension)
		}

		fileURL, err := s.saveFile(ctx, orgID, fileType.MIME.Value, fileBytes)
		if err != nil {
			return nil, fmt.Errorf("error uploading file: %w", err)
		}
		urls = append(urls, fileURL)
	}

	return urls, nil
}

func (s *contentService) saveFile(ctx context.Context, orgID int64, fileType string, file []byte) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	if err := s.r2.UploadToR2(ctx, id, file, fileType); err != nil {
		slog.Info(err.Error())
		return "", err
	}

	asset := models.MediaAsset{
		OrgID:    orgID,
		FileName: id,
		FileType: fileType,
		FileSize: int64(len(file)),
		FileURL:  s.r2.PublicURL(id),
	}

	if _, err := s.ma.Create(ctx, nil, &asset); err != nil {
		return "", err
	}

	return asset.FileURL, nil
}

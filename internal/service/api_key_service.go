package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getpublora/publora/internal/models"
	"github.com/getpublora/publora/internal/repository"
	"github.com/getpublora/publora/pkg/utils"
)

type ApiKeyService interface {
	Create(ctx context.Context, orgID int64) (string, error)
	GetOrgID(ctx context.Context, apiKey string) (int64, error)
	List(ctx context.Context, orgID int64) ([]*models.ApiKey, error)
	Remove(ctx context.Context, orgID, keyID int64) error
}

type apiKeyService struct {
	r repository.ApiKeyRepository
}

func NewApiKeyService(r repository.ApiKeyRepository) ApiKeyService {
	return &apiKeyService{r: r}
}

func (s *apiKeyService) Create(ctx context.Context, orgID int64) (string, error) {
	key, err := utils.GenerateRandomKey(32)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	_, err = s.r.Create(ctx, &models.ApiKey{OrgID: orgID, ApiKey: key})
	if err != nil {
		return "", fmt.Errorf("error creating API key")
	}

	return key, nil
}

func (s *apiKeyService) GetOrgID(ctx context.Context, apiKey string) (int64, error) {
	orgID, err := s.r.GetOrgID(ctx, apiKey)
	if err != nil {
		return 0, err
	}
	if orgID == 0 {
		return 0, errors.New("invalid API key")
	}
	return orgID, nil
}

func (s *apiKeyService) List(ctx context.Context, orgID int64) ([]*models.ApiKey, error) {
	keys, err := s.r.ListByOrgID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("error getting API keys")
	}
	return keys, nil
}

func (s *apiKeyService) Remove(ctx context.Context, orgID, keyID int64) error {
	if keyID == 0 {
		err := errors.New("key id is not valid")
		slog.Info(err.Error())
		return err
	}
	return s.r.Remove(ctx, orgID, keyID)
}

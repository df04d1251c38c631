package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/getpublora/publora/internal/models"
	"github.com/getpublora/publora/internal/repository"
	"github.com/getpublora/publora/internal/service"
)

// TokenRefreshJob keeps connection credentials valid ahead of dispatch. The
// publishing core itself never refreshes tokens; it reads whatever this job
// last wrote.
type TokenRefreshJob struct {
	cr repository.ConnectionRepository
	cs service.ConnectionService
}

func NewTokenRefreshJob(cr repository.ConnectionRepository, cs service.ConnectionService) *TokenRefreshJob {
	return &TokenRefreshJob{
		cr: cr,
		cs: cs,
	}
}

func (j *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	connections, err := j.cr.ListByTokenExpiry(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, conn := range connections {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(conn *models.Connection) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := j.cs.RefreshToken(ctx, conn); err != nil {
				slog.Info("unable to refresh token", "platform", conn.Platform, "connection_id", conn.ID)
			}
		}(conn)
	}

	wg.Wait()
}

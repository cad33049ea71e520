package service

// results.go holds finished registrations in memory so their exports and
// summary page stay available until ResultTTL passes. A background sweeper
// evicts expired entries; Get also refuses expired ones in between sweeps.

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/register/internal/registration"
)

// Result is a finished registration.
type Result struct {
	UploadID  uuid.UUID `json:"uploadId"`
	FileName  string    `json:"fileName"`
	CreatedAt time.Time `json:"createdAt"`
	BytesRead int64     `json:"bytesRead"`
	registration.Summary

	batch   *registration.Batch
	expires time.Time
}

func (r *Result) expired(now time.Time) bool {
	return !now.Before(r.expires)
}

// PurgeExpired drops expired results and returns how many were removed.
func (s *Service) PurgeExpired() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, res := range s.results {
		if res.expired(now) {
			delete(s.results, id)
			removed++
		}
	}
	return removed
}

// StartCleanup purges expired results every interval until ctx is cancelled.
func (s *Service) StartCleanup(ctx context.Context, interval time.Duration) {
	slog.Info("result cleanup started", "interval", interval, "ttl", s.resultTTL)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("result cleanup stopped")
			return
		case <-ticker.C:
			if n := s.PurgeExpired(); n > 0 {
				slog.Debug("purged expired results", "count", n)
			}
		}
	}
}

package memory

import (
	"context"
	"sync"
	"time"

	"agribid-backend/internal/domain"
)

type profileRepository struct {
	mu      sync.RWMutex
	records map[string]domain.ProfileRecord
	now     func() time.Time
}

// NewProfileRepository returns a process-local user_profiles table.
func NewProfileRepository() domain.ProfileRepository {
	return &profileRepository{records: make(map[string]domain.ProfileRecord), now: time.Now}
}

func (r *profileRepository) GetByUserID(ctx context.Context, userID string) (*domain.ProfileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	rec.ProfileData = append([]byte(nil), rec.ProfileData...)
	return &rec, nil
}

func (r *profileRepository) Upsert(ctx context.Context, record *domain.ProfileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	rec := *record
	rec.ProfileData = append([]byte(nil), record.ProfileData...)
	if existing, ok := r.records[record.UserID]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	r.records[record.UserID] = rec
	return nil
}

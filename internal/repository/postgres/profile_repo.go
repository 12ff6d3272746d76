package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"agribid-backend/internal/domain"

	"github.com/jackc/pgx/v5"
)

type profileRepo struct {
	db DBTX
}

// NewProfileRepository stores user profiles in the user_profiles table.
func NewProfileRepository(db DBTX) domain.ProfileRepository {
	return &profileRepo{db: db}
}

func (r *profileRepo) GetByUserID(ctx context.Context, userID string) (*domain.ProfileRecord, error) {
	query := `
		SELECT user_id, email, phone, user_type, profile_data, created_at, updated_at
		FROM user_profiles
		WHERE user_id = $1`

	var record domain.ProfileRecord
	var userType string
	var data []byte
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&record.UserID, &record.Email, &record.Phone, &userType,
		&data, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select profile: %w", err)
	}
	record.UserType = domain.UserType(userType)
	record.ProfileData = json.RawMessage(data)
	return &record, nil
}

// Upsert inserts the record or replaces the existing row for the same user.
// created_at is kept from the first insert.
func (r *profileRepo) Upsert(ctx context.Context, record *domain.ProfileRecord) error {
	query := `
		INSERT INTO user_profiles (user_id, email, phone, user_type, profile_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			user_type = EXCLUDED.user_type,
			profile_data = EXCLUDED.profile_data,
			updated_at = NOW()`

	data := []byte(record.ProfileData)
	if len(data) == 0 {
		data = []byte("null")
	}
	_, err := r.db.Exec(ctx, query,
		record.UserID, record.Email, record.Phone, string(record.UserType), data,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

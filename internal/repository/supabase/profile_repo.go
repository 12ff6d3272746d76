package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"agribid-backend/internal/domain"
)

const profilesPath = "/rest/v1/user_profiles"

// TokenSource yields the bearer token for PostgREST calls. Row-level security
// on user_profiles requires the caller's access token rather than the anon key.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken always returns key. Useful with a service-role key.
func StaticToken(key string) TokenSource {
	return func(context.Context) (string, error) { return key, nil }
}

// ContextToken reads the caller's access token from ctx (set by the auth
// middleware under domain.KeyAccessToken) and falls back to fallback.
func ContextToken(fallback string) TokenSource {
	return func(ctx context.Context) (string, error) {
		if token, ok := ctx.Value(domain.KeyAccessToken).(string); ok && token != "" {
			return token, nil
		}
		return fallback, nil
	}
}

type profileRow struct {
	UserID      string          `json:"user_id"`
	Email       string          `json:"email,omitempty"`
	Phone       string          `json:"phone,omitempty"`
	UserType    domain.UserType `json:"user_type"`
	ProfileData json.RawMessage `json:"profile_data"`
	CreatedAt   *time.Time      `json:"created_at,omitempty"`
	UpdatedAt   *time.Time      `json:"updated_at,omitempty"`
}

type profileRepository struct {
	client *Client
	tokens TokenSource
}

// NewProfileRepository stores profiles in the user_profiles table. A nil
// tokens falls back to the client's API key.
func NewProfileRepository(client *Client, tokens TokenSource) domain.ProfileRepository {
	if tokens == nil {
		tokens = StaticToken(client.APIKey())
	}
	return &profileRepository{client: client, tokens: tokens}
}

func (r *profileRepository) GetByUserID(ctx context.Context, userID string) (*domain.ProfileRecord, error) {
	token, err := r.tokens(ctx)
	if err != nil {
		return nil, err
	}

	var rows []profileRow
	err = r.client.do(ctx, request{
		method: http.MethodGet,
		path:   profilesPath,
		query: url.Values{
			"user_id": {"eq." + userID},
			"select":  {"*"},
			"limit":   {"1"},
		},
		bearer: token,
	}, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}

	row := rows[0]
	record := &domain.ProfileRecord{
		UserID:      row.UserID,
		Email:       row.Email,
		Phone:       row.Phone,
		UserType:    row.UserType,
		ProfileData: row.ProfileData,
	}
	if row.CreatedAt != nil {
		record.CreatedAt = *row.CreatedAt
	}
	if row.UpdatedAt != nil {
		record.UpdatedAt = *row.UpdatedAt
	}
	return record, nil
}

// Upsert inserts or replaces the row keyed by user_id.
func (r *profileRepository) Upsert(ctx context.Context, record *domain.ProfileRecord) error {
	token, err := r.tokens(ctx)
	if err != nil {
		return err
	}

	data := record.ProfileData
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	now := time.Now().UTC()
	row := profileRow{
		UserID:      record.UserID,
		Email:       record.Email,
		Phone:       record.Phone,
		UserType:    record.UserType,
		ProfileData: data,
		UpdatedAt:   &now,
	}
	if !record.CreatedAt.IsZero() {
		created := record.CreatedAt
		row.CreatedAt = &created
	}

	return r.client.do(ctx, request{
		method: http.MethodPost,
		path:   profilesPath,
		query:  url.Values{"on_conflict": {"user_id"}},
		body:   []profileRow{row},
		bearer: token,
		headers: map[string]string{
			"Prefer": "resolution=merge-duplicates,return=minimal",
		},
	}, nil)
}

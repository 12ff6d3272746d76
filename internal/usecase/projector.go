package usecase

import (
	"context"
	"errors"
	"fmt"

	"agribid-backend/internal/domain"
	"agribid-backend/pkg/logger"
)

type userProjector struct {
	profiles    domain.ProfileRepository
	defaultType domain.UserType
}

// NewUserProjector returns a projector that falls back to defaultType for
// identities without a stored profile record.
func NewUserProjector(profiles domain.ProfileRepository, defaultType domain.UserType) domain.UserProjector {
	if !defaultType.Valid() {
		defaultType = domain.UserTypeFarmer
	}
	return &userProjector{profiles: profiles, defaultType: defaultType}
}

func (p *userProjector) ResolveUser(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	record, err := p.profiles.GetByUserID(ctx, identity.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewUser(identity.ID, identity.Email, identity.Phone, p.defaultType, nil, identity.CreatedAt)
	}
	if err != nil {
		return nil, fmt.Errorf("load profile for %s: %w", identity.ID, err)
	}

	userType := record.UserType
	if !userType.Valid() {
		logger.Log.Warn("Stored profile has unknown user type", "user_id", identity.ID, "user_type", userType)
		userType = p.defaultType
	}

	profile, err := domain.DecodeProfile(userType, record.ProfileData)
	if err != nil {
		logger.Log.Warn("Dropping profile data that does not match user type", "user_id", identity.ID, "user_type", userType, "error", err)
		profile = nil
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = identity.CreatedAt
	}

	return domain.NewUser(
		identity.ID,
		firstNonEmpty(record.Email, identity.Email),
		firstNonEmpty(record.Phone, identity.Phone),
		userType,
		profile,
		createdAt,
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

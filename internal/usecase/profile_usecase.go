package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"agribid-backend/internal/domain"
	"agribid-backend/pkg/apperror"
	"agribid-backend/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type profileUsecase struct {
	profiles  domain.ProfileRepository
	projector domain.UserProjector
	validate  *validator.Validate
}

func NewProfileUsecase(profiles domain.ProfileRepository, projector domain.UserProjector, validate *validator.Validate) domain.ProfileUsecase {
	if validate == nil {
		validate = validation.New()
	}
	return &profileUsecase{profiles: profiles, projector: projector, validate: validate}
}

func (u *profileUsecase) GetCurrentUser(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	return u.projector.ResolveUser(ctx, identity)
}

// SaveProfile creates or replaces the caller's profile. The user type recorded
// at registration cannot be changed.
func (u *profileUsecase) SaveProfile(ctx context.Context, identity domain.Identity, userType domain.UserType, profile domain.Profile) (*domain.User, error) {
	if !userType.Valid() {
		return nil, apperror.BadRequest(msgInvalidUserType)
	}
	if err := validateProfile(u.validate, userType, profile); err != nil {
		return nil, apperror.New(http.StatusBadRequest, profileFieldsMessage(userType), err)
	}

	email, phone := identity.Email, identity.Phone
	var createdAt time.Time
	existing, err := u.profiles.GetByUserID(ctx, identity.ID)
	switch {
	case err == nil:
		if existing.UserType != userType {
			return nil, apperror.New(http.StatusConflict, "User type cannot be changed after registration", domain.ErrUserTypeChange)
		}
		email = firstNonEmpty(existing.Email, email)
		phone = firstNonEmpty(existing.Phone, phone)
		createdAt = existing.CreatedAt
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, apperror.Internal(fmt.Errorf("load profile: %w", err))
	}

	record, err := newProfileRecord(identity.ID, email, phone, userType, profile)
	if err != nil {
		return nil, apperror.BadRequest(profileFieldsMessage(userType))
	}
	record.CreatedAt = createdAt
	if err := u.profiles.Upsert(ctx, record); err != nil {
		return nil, apperror.Internal(fmt.Errorf("save profile: %w", err))
	}

	return u.projector.ResolveUser(ctx, identity)
}

// validateProfile checks that profile is the variant for userType and that
// the archetype's required fields are present.
func validateProfile(v *validator.Validate, userType domain.UserType, profile domain.Profile) error {
	if profile == nil {
		return fmt.Errorf("%w: missing profile", domain.ErrProfileMismatch)
	}
	if !profile.Matches(userType) {
		return fmt.Errorf("%w: %T for %s", domain.ErrProfileMismatch, profile, userType)
	}
	return v.Struct(profile)
}

func profileFieldsMessage(userType domain.UserType) string {
	if userType == domain.UserTypeFarmer {
		return msgFarmerProfileFields
	}
	return msgCompanyProfileFields
}

func newProfileRecord(userID, email, phone string, userType domain.UserType, profile domain.Profile) (*domain.ProfileRecord, error) {
	data, err := domain.EncodeProfile(profile)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	return &domain.ProfileRecord{
		UserID:      userID,
		Email:       email,
		Phone:       phone,
		UserType:    userType,
		ProfileData: data,
	}, nil
}

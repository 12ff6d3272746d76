package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type UserType string

const (
	UserTypeFarmer   UserType = "farmer"
	UserTypeCompany  UserType = "company"
	UserTypeExporter UserType = "exporter"
)

func (t UserType) Valid() bool {
	switch t {
	case UserTypeFarmer, UserTypeCompany, UserTypeExporter:
		return true
	}
	return false
}

// ParseUserType normalizes s and rejects anything outside farmer|company|exporter.
func ParseUserType(s string) (UserType, error) {
	t := UserType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidUserType, s)
	}
	return t, nil
}

// Profile is the role-specific part of a User. Exactly one variant exists per
// user type: FarmerProfile for farmers, CompanyProfile for companies and exporters.
type Profile interface {
	Matches(t UserType) bool
	isProfile()
}

type FarmerProfile struct {
	Name     string   `json:"name" validate:"required,not_blank"`
	Location string   `json:"location" validate:"required,not_blank"`
	FarmSize string   `json:"farmSize" validate:"required,not_blank"`
	Products []string `json:"products"`
	Avatar   string   `json:"avatar,omitempty"`
}

func (p *FarmerProfile) Matches(t UserType) bool { return t == UserTypeFarmer }
func (*FarmerProfile) isProfile()                {}

type CompanyProfile struct {
	CompanyName   string   `json:"companyName" validate:"required,not_blank"`
	BusinessType  string   `json:"businessType" validate:"required,not_blank"`
	Location      string   `json:"location"`
	ContactPerson string   `json:"contactPerson" validate:"required,not_blank"`
	LookingFor    []string `json:"lookingFor"`
	Avatar        string   `json:"avatar,omitempty"`
}

func (p *CompanyProfile) Matches(t UserType) bool {
	return t == UserTypeCompany || t == UserTypeExporter
}
func (*CompanyProfile) isProfile() {}

// User is the application-level view of an authenticated identity.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	UserType  UserType  `json:"userType"`
	Profile   Profile   `json:"profile"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewUser builds a User and enforces that the profile variant matches userType.
// A nil profile is allowed for identities without a stored profile record.
func NewUser(id, email, phone string, userType UserType, profile Profile, createdAt time.Time) (*User, error) {
	if !userType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUserType, userType)
	}
	if profile != nil && !profile.Matches(userType) {
		return nil, fmt.Errorf("%w: %T for %s", ErrProfileMismatch, profile, userType)
	}
	return &User{
		ID:        id,
		Email:     email,
		Phone:     phone,
		UserType:  userType,
		Profile:   profile,
		CreatedAt: createdAt,
	}, nil
}

// NewProfileFor returns an empty profile variant for userType.
func NewProfileFor(t UserType) (Profile, error) {
	switch t {
	case UserTypeFarmer:
		return &FarmerProfile{}, nil
	case UserTypeCompany, UserTypeExporter:
		return &CompanyProfile{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidUserType, t)
}

// DecodeProfile strictly decodes stored profile data into the variant selected by t.
// Empty or null data yields a nil profile. Fields that belong to another variant
// are reported as ErrProfileMismatch.
func DecodeProfile(t UserType, data json.RawMessage) (Profile, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	profile, err := NewProfileFor(t)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(profile); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileMismatch, err)
	}
	return profile, nil
}

// EncodeProfile is the inverse of DecodeProfile.
func EncodeProfile(p Profile) (json.RawMessage, error) {
	if p == nil {
		return json.RawMessage("null"), nil
	}
	return json.Marshal(p)
}

// ProfileRecord mirrors a row of the user_profiles table.
type ProfileRecord struct {
	UserID      string          `json:"user_id"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone"`
	UserType    UserType        `json:"user_type"`
	ProfileData json.RawMessage `json:"profile_data"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at,omitempty"`
}

// ProfileRepository is the key-value profile store keyed by identity id.
// GetByUserID returns ErrNotFound when no record exists.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (*ProfileRecord, error)
	Upsert(ctx context.Context, record *ProfileRecord) error
}

// UserProjector merges an auth identity with its stored profile record.
type UserProjector interface {
	ResolveUser(ctx context.Context, identity Identity) (*User, error)
}

// ProfileUsecase covers the profile screen: reading and saving the caller's profile.
type ProfileUsecase interface {
	GetCurrentUser(ctx context.Context, identity Identity) (*User, error)
	SaveProfile(ctx context.Context, identity Identity, userType UserType, profile Profile) (*User, error)
}

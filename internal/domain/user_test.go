package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	now := time.Now()

	t.Run("Should accept matching variants", func(t *testing.T) {
		_, err := NewUser("u1", "a@b.co", "", UserTypeFarmer, &FarmerProfile{Name: "A"}, now)
		assert.NoError(t, err)
		_, err = NewUser("u2", "a@b.co", "", UserTypeExporter, &CompanyProfile{CompanyName: "C"}, now)
		assert.NoError(t, err)
		_, err = NewUser("u3", "a@b.co", "", UserTypeCompany, nil, now)
		assert.NoError(t, err)
	})

	t.Run("Should reject mismatched variants", func(t *testing.T) {
		_, err := NewUser("u1", "a@b.co", "", UserTypeFarmer, &CompanyProfile{}, now)
		assert.ErrorIs(t, err, ErrProfileMismatch)
		_, err = NewUser("u1", "a@b.co", "", UserTypeCompany, &FarmerProfile{}, now)
		assert.ErrorIs(t, err, ErrProfileMismatch)
	})

	t.Run("Should reject unknown user types", func(t *testing.T) {
		_, err := NewUser("u1", "a@b.co", "", UserType("buyer"), nil, now)
		assert.ErrorIs(t, err, ErrInvalidUserType)
	})
}

func TestParseUserType(t *testing.T) {
	got, err := ParseUserType(" Exporter ")
	require.NoError(t, err)
	assert.Equal(t, UserTypeExporter, got)

	_, err = ParseUserType("admin")
	assert.ErrorIs(t, err, ErrInvalidUserType)
}

func TestDecodeProfile(t *testing.T) {
	t.Run("Should decode the variant selected by user type", func(t *testing.T) {
		p, err := DecodeProfile(UserTypeFarmer, json.RawMessage(`{"name":"Ahmed Hassan","location":"Jimma, Ethiopia","farmSize":"12 hectares","products":["Coffee","Spices"]}`))
		require.NoError(t, err)
		fp, ok := p.(*FarmerProfile)
		require.True(t, ok)
		assert.Equal(t, []string{"Coffee", "Spices"}, fp.Products)
	})

	t.Run("Should treat null and empty as no profile", func(t *testing.T) {
		for _, raw := range []string{"", "null", "  "} {
			p, err := DecodeProfile(UserTypeCompany, json.RawMessage(raw))
			assert.NoError(t, err)
			assert.Nil(t, p)
		}
	})

	t.Run("Should report fields from the other variant", func(t *testing.T) {
		_, err := DecodeProfile(UserTypeCompany, json.RawMessage(`{"name":"Ahmed","farmSize":"12 hectares"}`))
		assert.ErrorIs(t, err, ErrProfileMismatch)
	})

	t.Run("Should round trip through EncodeProfile", func(t *testing.T) {
		in := &CompanyProfile{CompanyName: "Green Trade Ethiopia", BusinessType: "Agricultural Trading", ContactPerson: "Sarah Johnson", LookingFor: []string{"Teff"}}
		raw, err := EncodeProfile(in)
		require.NoError(t, err)
		out, err := DecodeProfile(UserTypeExporter, raw)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})
}

func TestSessionSame(t *testing.T) {
	a := &Session{AccessToken: "t1"}
	b := &Session{AccessToken: "t1", RefreshToken: "other"}
	c := &Session{AccessToken: "t2"}
	var none *Session

	assert.True(t, a.Same(b))
	assert.False(t, a.Same(c))
	assert.False(t, a.Same(nil))
	assert.True(t, none.Same(nil))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindUnverifiedIdentity, KindOf(NewAuthError(KindUnverifiedIdentity, "Email not confirmed")))
	assert.Equal(t, KindTransport, KindOf(assert.AnError))
}

package usecase_test

import (
	"context"
	"math/rand/v2"
	"net/http"
	"testing"

	"agribid-backend/internal/domain"
	"agribid-backend/internal/usecase"
	"agribid-backend/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixedAssessor struct {
	grade domain.QualityGrade
	score int
}

func (a fixedAssessor) Assess(images []string) (domain.QualityGrade, domain.AIAssessment) {
	return a.grade, domain.AIAssessment{Score: a.score, Confidence: 90, Notes: "fixed"}
}

func TestSimulatedAssessor(t *testing.T) {
	assessor := usecase.NewSimulatedAssessor(rand.New(rand.NewPCG(1, 2)))
	allowed := map[int]bool{85: true, 88: true, 92: true, 78: true, 95: true, 82: true}
	labels := map[domain.QualityGrade]string{domain.GradeA: "Excellent", domain.GradeB: "Good", domain.GradeC: "Fair"}

	for i := 0; i < 200; i++ {
		grade, a := assessor.Assess([]string{"img"})
		assert.True(t, allowed[a.Score], "score %d", a.Score)
		assert.GreaterOrEqual(t, a.Confidence, 80)
		assert.LessOrEqual(t, a.Confidence, 99)
		assert.Equal(t, usecase.GradeForScore(a.Score), grade)
		assert.Equal(t, "Quality assessment based on image analysis. "+labels[grade]+" quality detected.", a.Notes)
	}
}

func TestGradeForScore(t *testing.T) {
	tests := map[int]domain.QualityGrade{95: domain.GradeA, 90: domain.GradeA, 89: domain.GradeB, 80: domain.GradeB, 78: domain.GradeC, 70: domain.GradeC, 69: domain.GradeD}
	for score, want := range tests {
		assert.Equal(t, want, usecase.GradeForScore(score), "score %d", score)
	}
}

func TestCreateListing(t *testing.T) {
	ctx := context.Background()
	farmer := &domain.User{ID: "f1", UserType: domain.UserTypeFarmer, Profile: &domain.FarmerProfile{Name: "Ahmed Hassan", Location: "Jimma, Ethiopia"}}
	input := domain.CreateListingInput{CropType: "Coffee", Quantity: 500, PricePerUnit: 25.5, Images: []string{"https://cdn/1.jpg"}}

	t.Run("Should reject non-farmers", func(t *testing.T) {
		repo := new(MockProductRepo)
		uc := usecase.NewProductUsecase(repo, fixedAssessor{domain.GradeA, 92}, nil)
		_, err := uc.CreateListing(ctx, &domain.User{ID: "c1", UserType: domain.UserTypeCompany}, input)
		assert.Equal(t, http.StatusForbidden, apperror.CodeOf(err))
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Should require images", func(t *testing.T) {
		repo := new(MockProductRepo)
		uc := usecase.NewProductUsecase(repo, fixedAssessor{domain.GradeA, 92}, nil)
		noImages := input
		noImages.Images = nil
		_, err := uc.CreateListing(ctx, farmer, noImages)
		require.Error(t, err)
		assert.Equal(t, "Please fill in all required fields and add at least one image", err.Error())
	})

	t.Run("Should build the listing from the farmer profile", func(t *testing.T) {
		repo := new(MockProductRepo)
		repo.On("Create", ctx, mock.AnythingOfType("*domain.Product")).Return(nil)
		uc := usecase.NewProductUsecase(repo, fixedAssessor{domain.GradeB, 85}, nil)

		p, err := uc.CreateListing(ctx, farmer, input)
		require.NoError(t, err)
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, "Ahmed Hassan", p.FarmerName)
		assert.Equal(t, "Jimma, Ethiopia", p.FarmerLocation)
		assert.Equal(t, "USD", p.Currency)
		assert.Equal(t, domain.GradeB, p.QualityGrade)
		assert.Equal(t, domain.StatusAvailable, p.Status)
		assert.Equal(t, 90*24, int(p.AvailableUntil.Sub(p.HarvestDate).Hours()))
		repo.AssertExpectations(t)
	})

	t.Run("Should fall back to unknown farmer details", func(t *testing.T) {
		repo := new(MockProductRepo)
		repo.On("Create", ctx, mock.Anything).Return(nil)
		uc := usecase.NewProductUsecase(repo, fixedAssessor{domain.GradeA, 92}, nil)

		p, err := uc.CreateListing(ctx, &domain.User{ID: "f2", UserType: domain.UserTypeFarmer}, input)
		require.NoError(t, err)
		assert.Equal(t, "Unknown Farmer", p.FarmerName)
		assert.Equal(t, "Unknown Location", p.FarmerLocation)
	})
}

func TestGetProduct(t *testing.T) {
	ctx := context.Background()
	repo := new(MockProductRepo)
	repo.On("GetByID", ctx, "1").Return(&domain.Product{ID: "1", FarmerID: "f1"}, nil)
	repo.On("GetByID", ctx, "missing").Return(nil, domain.ErrNotFound)
	uc := usecase.NewProductUsecase(repo, nil, nil)

	own, err := uc.GetProduct(ctx, "1", "f1")
	require.NoError(t, err)
	assert.True(t, own.IsOwn)

	other, err := uc.GetProduct(ctx, "1", "c1")
	require.NoError(t, err)
	assert.False(t, other.IsOwn)

	_, err = uc.GetProduct(ctx, "missing", "")
	assert.Equal(t, http.StatusNotFound, apperror.CodeOf(err))
}

func TestListProducts(t *testing.T) {
	ctx := context.Background()

	t.Run("Should normalize pagination", func(t *testing.T) {
		repo := new(MockProductRepo)
		repo.On("Fetch", ctx, domain.ProductFilter{Query: "coffee"}, 20, 0).Return([]domain.Product{}, int64(0), nil)
		uc := usecase.NewProductUsecase(repo, nil, nil)

		_, _, err := uc.ListProducts(ctx, domain.ProductFilter{Query: "  coffee "}, 0, 0)
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("Should reject inverted price bounds", func(t *testing.T) {
		uc := usecase.NewProductUsecase(new(MockProductRepo), nil, nil)
		_, _, err := uc.ListProducts(ctx, domain.ProductFilter{MinPrice: 30, MaxPrice: 10}, 1, 10)
		assert.Equal(t, http.StatusBadRequest, apperror.CodeOf(err))
	})

	t.Run("Should list crop type filters", func(t *testing.T) {
		uc := usecase.NewProductUsecase(new(MockProductRepo), nil, nil)
		assert.Equal(t, []string{"Coffee", "Teff", "Spices", "Grains"}, uc.FilterOptions().CropTypes)
	})
}

package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"agribid-backend/internal/domain"
	"agribid-backend/pkg/apperror"
	"agribid-backend/pkg/logger"
	"agribid-backend/pkg/metrics"

	"github.com/google/uuid"
)

const (
	listingAvailability = 90 * 24 * time.Hour
	defaultCurrency     = "USD"
	unknownFarmer       = "Unknown Farmer"
	unknownLocation     = "Unknown Location"
)

type productUsecase struct {
	productRepo domain.ProductRepository
	assessor    domain.QualityAssessor
	metrics     metrics.MetricsCollector
	now         func() time.Time
}

func NewProductUsecase(productRepo domain.ProductRepository, assessor domain.QualityAssessor, m metrics.MetricsCollector) domain.ProductUsecase {
	if assessor == nil {
		assessor = NewSimulatedAssessor(nil)
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &productUsecase{productRepo: productRepo, assessor: assessor, metrics: m, now: time.Now}
}

func (u *productUsecase) ListProducts(ctx context.Context, filter domain.ProductFilter, page, pageSize int) ([]domain.Product, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	filter.Query = strings.TrimSpace(filter.Query)
	filter.Location = strings.TrimSpace(filter.Location)
	if filter.MinPrice > 0 && filter.MaxPrice > 0 && filter.MinPrice > filter.MaxPrice {
		return nil, 0, apperror.BadRequest("min_price cannot be greater than max_price")
	}

	return u.productRepo.Fetch(ctx, filter, pageSize, offset)
}

func (u *productUsecase) GetProduct(ctx context.Context, id string, viewerID string) (*domain.ProductDetail, error) {
	product, err := u.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.NotFound("Product not found")
		}
		return nil, err
	}
	return &domain.ProductDetail{
		Product: *product,
		IsOwn:   viewerID != "" && viewerID == product.FarmerID,
	}, nil
}

func (u *productUsecase) CreateListing(ctx context.Context, seller *domain.User, input domain.CreateListingInput) (*domain.Product, error) {
	if seller == nil {
		return nil, apperror.Unauthorized("User not authenticated")
	}
	if seller.UserType != domain.UserTypeFarmer {
		return nil, apperror.Forbidden("Only farmers can create listings")
	}

	input.CropType = strings.TrimSpace(input.CropType)
	if input.CropType == "" || input.Quantity <= 0 || input.PricePerUnit <= 0 || len(input.Images) == 0 {
		return nil, apperror.BadRequest("Please fill in all required fields and add at least one image")
	}

	farmerName, farmerLocation := unknownFarmer, unknownLocation
	if fp, ok := seller.Profile.(*domain.FarmerProfile); ok && fp != nil {
		farmerName = firstNonEmpty(strings.TrimSpace(fp.Name), unknownFarmer)
		farmerLocation = firstNonEmpty(strings.TrimSpace(fp.Location), unknownLocation)
	}

	grade, assessment := u.assessor.Assess(input.Images)
	now := u.now()
	product := &domain.Product{
		ID:             uuid.NewString(),
		FarmerID:       seller.ID,
		FarmerName:     farmerName,
		FarmerLocation: farmerLocation,
		CropType:       input.CropType,
		Quantity:       input.Quantity,
		PricePerUnit:   input.PricePerUnit,
		Currency:       defaultCurrency,
		QualityGrade:   grade,
		AIAssessment:   assessment,
		Images:         input.Images,
		Description:    strings.TrimSpace(input.Description),
		HarvestDate:    now,
		AvailableUntil: now.Add(listingAvailability),
		Status:         domain.StatusAvailable,
		CreatedAt:      now,
	}

	if err := u.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}

	logger.Log.Info("Listing created", "product_id", product.ID, "farmer_id", seller.ID, "grade", grade, "score", assessment.Score)
	u.metrics.RecordListingCreated(string(grade))
	return product, nil
}

func (u *productUsecase) FilterOptions() domain.FilterOptions {
	return domain.FilterOptions{
		CropTypes:     append([]string(nil), domain.CropTypes...),
		QualityGrades: []domain.QualityGrade{domain.GradeA, domain.GradeB, domain.GradeC, domain.GradeD},
	}
}

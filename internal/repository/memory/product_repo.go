package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"agribid-backend/internal/domain"
)

type productRepository struct {
	mu       sync.RWMutex
	products []domain.Product
}

// NewProductRepository returns an in-memory catalog holding products.
func NewProductRepository(products ...domain.Product) domain.ProductRepository {
	return &productRepository{products: append([]domain.Product(nil), products...)}
}

// NewSeededProductRepository returns a catalog with the demo listings.
func NewSeededProductRepository() domain.ProductRepository {
	return NewProductRepository(SeedProducts()...)
}

func (r *productRepository) Fetch(ctx context.Context, filter domain.ProductFilter, limit, offset int) ([]domain.Product, int64, error) {
	r.mu.RLock()
	matched := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		if Matches(p, filter) {
			matched = append(matched, p)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return []domain.Product{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.products {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products = append(r.products, *product)
	return nil
}

// Matches reports whether p satisfies every criterion set in f.
func Matches(p domain.Product, f domain.ProductFilter) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(p.CropType), q) &&
			!strings.Contains(strings.ToLower(p.FarmerName), q) &&
			!strings.Contains(strings.ToLower(p.FarmerLocation), q) {
			return false
		}
	}
	if f.CropType != "" && p.CropType != f.CropType {
		return false
	}
	if f.QualityGrade != "" && p.QualityGrade != f.QualityGrade {
		return false
	}
	if loc := strings.ToLower(strings.TrimSpace(f.Location)); loc != "" && !strings.Contains(strings.ToLower(p.FarmerLocation), loc) {
		return false
	}
	if f.MinPrice > 0 && p.PricePerUnit < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && p.PricePerUnit > f.MaxPrice {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	return true
}

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

// SeedProducts returns the demo catalog.
func SeedProducts() []domain.Product {
	return []domain.Product{
		{
			ID:             "1",
			FarmerID:       "1",
			FarmerName:     "Ahmed Hassan",
			FarmerLocation: "Jimma, Ethiopia",
			CropType:       "Coffee",
			Quantity:       500,
			PricePerUnit:   25.50,
			Currency:       "USD",
			QualityGrade:   domain.GradeA,
			AIAssessment: domain.AIAssessment{
				Score:      92,
				Confidence: 88,
				Notes:      "Excellent bean quality, uniform size, minimal defects",
			},
			Images:         []string{"https://images.unsplash.com/photo-1447933601403-0c6688de566e?w=400"},
			Description:    "Premium Arabica coffee beans, shade-grown and hand-picked. Perfect for specialty coffee roasters.",
			HarvestDate:    date("2024-01-15"),
			AvailableUntil: date("2024-03-15"),
			Status:         domain.StatusAvailable,
			CreatedAt:      date("2024-01-20"),
		},
		{
			ID:             "2",
			FarmerID:       "2",
			FarmerName:     "Fatima Kebede",
			FarmerLocation: "Debre Zeit, Ethiopia",
			CropType:       "Teff",
			Quantity:       1000,
			PricePerUnit:   3.20,
			Currency:       "USD",
			QualityGrade:   domain.GradeA,
			AIAssessment: domain.AIAssessment{
				Score:      89,
				Confidence: 91,
				Notes:      "High-quality teff grains, excellent color and texture",
			},
			Images:         []string{"https://images.unsplash.com/photo-1574323347407-f5e1ad6d020b?w=400"},
			Description:    "Organic teff grains, perfect for injera production and export markets.",
			HarvestDate:    date("2024-01-10"),
			AvailableUntil: date("2024-04-10"),
			Status:         domain.StatusAvailable,
			CreatedAt:      date("2024-01-18"),
		},
		{
			ID:             "3",
			FarmerID:       "3",
			FarmerName:     "Bekele Tadesse",
			FarmerLocation: "Hawassa, Ethiopia",
			CropType:       "Coffee",
			Quantity:       300,
			PricePerUnit:   22.00,
			Currency:       "USD",
			QualityGrade:   domain.GradeB,
			AIAssessment: domain.AIAssessment{
				Score:      78,
				Confidence: 85,
				Notes:      "Good quality beans with minor variations in size",
			},
			Images:         []string{"https://images.unsplash.com/photo-1559056199-641a0ac8b55e?w=400"},
			Description:    "High-quality Sidamo coffee beans with distinctive flavor profile.",
			HarvestDate:    date("2024-01-12"),
			AvailableUntil: date("2024-03-12"),
			Status:         domain.StatusAvailable,
			CreatedAt:      date("2024-01-19"),
		},
	}
}

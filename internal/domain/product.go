package domain

import (
	"context"
	"time"
)

type QualityGrade string

const (
	GradeA QualityGrade = "A"
	GradeB QualityGrade = "B"
	GradeC QualityGrade = "C"
	GradeD QualityGrade = "D"
)

type ProductStatus string

const (
	StatusAvailable ProductStatus = "available"
	StatusReserved  ProductStatus = "reserved"
	StatusSold      ProductStatus = "sold"
)

// CropTypes lists the crop types offered by the catalog filters.
var CropTypes = []string{"Coffee", "Teff", "Spices", "Grains"}

type AIAssessment struct {
	Score      int    `json:"score"`
	Confidence int    `json:"confidence"`
	Notes      string `json:"notes"`
}

type Product struct {
	ID             string        `json:"id"`
	FarmerID       string        `json:"farmerId"`
	FarmerName     string        `json:"farmerName"`
	FarmerLocation string        `json:"farmerLocation"`
	CropType       string        `json:"cropType"`
	Quantity       float64       `json:"quantity"`
	PricePerUnit   float64       `json:"pricePerUnit"`
	Currency       string        `json:"currency"`
	QualityGrade   QualityGrade  `json:"qualityGrade"`
	AIAssessment   AIAssessment  `json:"aiAssessment"`
	Images         []string      `json:"images"`
	Description    string        `json:"description"`
	HarvestDate    time.Time     `json:"harvestDate"`
	AvailableUntil time.Time     `json:"availableUntil"`
	Status         ProductStatus `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// ProductDetail is a product as seen by a particular viewer.
type ProductDetail struct {
	Product
	IsOwn bool `json:"isOwn"`
}

type ProductFilter struct {
	Query        string        `form:"q"`
	CropType     string        `form:"crop_type"`
	QualityGrade QualityGrade  `form:"quality_grade"`
	Location     string        `form:"location"`
	MinPrice     float64       `form:"min_price"`
	MaxPrice     float64       `form:"max_price"`
	Status       ProductStatus `form:"status"`
}

type CreateListingInput struct {
	CropType     string   `json:"cropType"`
	Quantity     float64  `json:"quantity"`
	PricePerUnit float64  `json:"pricePerUnit"`
	Description  string   `json:"description"`
	Images       []string `json:"images"`
}

// FilterOptions is what the catalog offers as filter choices.
type FilterOptions struct {
	CropTypes     []string       `json:"cropTypes"`
	QualityGrades []QualityGrade `json:"qualityGrades"`
}

type ProductRepository interface {
	Fetch(ctx context.Context, filter ProductFilter, limit, offset int) ([]Product, int64, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Create(ctx context.Context, product *Product) error
}

// QualityAssessor produces the simulated quality assessment for a new listing.
type QualityAssessor interface {
	Assess(images []string) (QualityGrade, AIAssessment)
}

type ProductUsecase interface {
	ListProducts(ctx context.Context, filter ProductFilter, page, pageSize int) ([]Product, int64, error)
	GetProduct(ctx context.Context, id string, viewerID string) (*ProductDetail, error)
	CreateListing(ctx context.Context, seller *User, input CreateListingInput) (*Product, error)
	FilterOptions() FilterOptions
}

// ImageStore persists listing images and returns their public URL.
type ImageStore interface {
	UploadImage(ctx context.Context, data []byte, contentType string) (string, error)
}

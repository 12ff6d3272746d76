package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agribid-backend/internal/domain"

	"github.com/jackc/pgx/v5"
)

const productColumns = `id, farmer_id, farmer_name, farmer_location, crop_type, quantity, price_per_unit,
		currency, quality_grade, ai_score, ai_confidence, ai_notes, images, description,
		harvest_date, available_until, status, created_at`

type productRepo struct {
	db DBTX
}

// NewProductRepository stores listings in the products table.
func NewProductRepository(db DBTX) domain.ProductRepository {
	return &productRepo{db: db}
}

// Fetch returns one page of products matching filter, newest first, together
// with the total number of matches.
func (r *productRepo) Fetch(ctx context.Context, filter domain.ProductFilter, limit, offset int) ([]domain.Product, int64, error) {
	where, args := buildProductWhere(filter)

	var total int64
	countQuery := "SELECT COUNT(*) FROM products" + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := "SELECT " + productColumns + " FROM products" + where + " ORDER BY created_at DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate products: %w", err)
	}
	return products, total, nil
}

func (r *productRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE id = $1"
	p, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select product: %w", err)
	}
	return p, nil
}

func (r *productRepo) Create(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	images := p.Images
	if images == nil {
		images = []string{}
	}
	_, err := r.db.Exec(ctx, query,
		p.ID, p.FarmerID, p.FarmerName, p.FarmerLocation, p.CropType, p.Quantity, p.PricePerUnit,
		p.Currency, string(p.QualityGrade), p.AIAssessment.Score, p.AIAssessment.Confidence, p.AIAssessment.Notes,
		images, p.Description, p.HarvestDate, p.AvailableUntil, string(p.Status), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// buildProductWhere mirrors memory.Matches: q searches crop type, farmer name
// and location case-insensitively; other fields are exact or bounded.
func buildProductWhere(f domain.ProductFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}

	if q := strings.TrimSpace(f.Query); q != "" {
		add("(crop_type ILIKE ? OR farmer_name ILIKE ? OR farmer_location ILIKE ?)", "%"+escapeLike(q)+"%")
	}
	if f.CropType != "" {
		add("crop_type = ?", f.CropType)
	}
	if f.QualityGrade != "" {
		add("quality_grade = ?", string(f.QualityGrade))
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		add("farmer_location ILIKE ?", "%"+escapeLike(loc)+"%")
	}
	if f.MinPrice > 0 {
		add("price_per_unit >= ?", f.MinPrice)
	}
	if f.MaxPrice > 0 {
		add("price_per_unit <= ?", f.MaxPrice)
	}
	if f.Status != "" {
		add("status = ?", string(f.Status))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	var grade, status string
	err := row.Scan(
		&p.ID, &p.FarmerID, &p.FarmerName, &p.FarmerLocation, &p.CropType, &p.Quantity, &p.PricePerUnit,
		&p.Currency, &grade, &p.AIAssessment.Score, &p.AIAssessment.Confidence, &p.AIAssessment.Notes,
		&p.Images, &p.Description, &p.HarvestDate, &p.AvailableUntil, &status, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.QualityGrade = domain.QualityGrade(grade)
	p.Status = domain.ProductStatus(status)
	return &p, nil
}

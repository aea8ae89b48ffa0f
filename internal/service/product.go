package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SajivJess/Wally/internal/domain"
	"github.com/SajivJess/Wally/internal/fixtures"
	"github.com/SajivJess/Wally/internal/store"
	apperrors "github.com/SajivJess/Wally/pkg/errors"
)

const (
	DefaultProductLimit = 50
	DefaultBundleLimit  = 10
	trendingLimit       = 10
)

// TrendingCategories are the categories surfaced as trending for every location.
var TrendingCategories = []string{"food", "electronics", "beauty"}

// CreateProductInput holds the parameters for creating a product.
type CreateProductInput struct {
	Name          string  `json:"name" validate:"required,max=500"`
	Price         int64   `json:"price" validate:"gte=0"`
	OriginalPrice *int64  `json:"original_price" validate:"omitempty,gte=0"`
	Image         string  `json:"image" validate:"required"`
	Category      string  `json:"category" validate:"required"`
	Description   *string `json:"description"`
}

// CreateBundleInput holds the parameters for creating a bundle.
type CreateBundleInput struct {
	Name          string   `json:"name" validate:"required"`
	Price         int64    `json:"price" validate:"gte=0"`
	OriginalPrice int64    `json:"original_price" validate:"gte=0"`
	ItemsCount    int      `json:"items_count" validate:"gte=0"`
	Image         string   `json:"image" validate:"required"`
	ProductIDs    []string `json:"product_ids"`
}

// ProductService serves the product catalog, bundles and the visual search mock.
type ProductService struct {
	products *store.Typed[domain.Product]
	bundles  *store.Typed[domain.Bundle]
	fixtures *fixtures.Set
	logger   *slog.Logger
}

func NewProductService(s store.Store, set *fixtures.Set, logger *slog.Logger) *ProductService {
	return &ProductService{
		products: store.NewTyped[domain.Product](s, domain.ProductsCollection, "product"),
		bundles:  store.NewTyped[domain.Bundle](s, domain.BundlesCollection, "bundle"),
		fixtures: set,
		logger:   logger,
	}
}

// ListProducts returns up to limit products, optionally restricted to a category.
func (s *ProductService) ListProducts(ctx context.Context, category string, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = DefaultProductLimit
	}
	filter := store.Filter{}
	if category != "" {
		filter["category"] = category
	}
	return s.products.FindMany(ctx, filter, limit)
}

func (s *ProductService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.products.FindOne(ctx, store.Filter{store.IDField: id})
}

func (s *ProductService) CreateProduct(ctx context.Context, input CreateProductInput) (*domain.Product, error) {
	if input.Name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if input.Price < 0 {
		return nil, apperrors.InvalidInput("price must not be negative")
	}

	product := &domain.Product{
		ID:            uuid.New().String(),
		Name:          input.Name,
		Price:         input.Price,
		OriginalPrice: input.OriginalPrice,
		Image:         input.Image,
		Category:      input.Category,
		Description:   input.Description,
		InStock:       true,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.products.InsertOne(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("category", product.Category),
	)
	return product, nil
}

// Trending returns products from the trending categories. The location is
// accepted for future ranking but does not change the result.
func (s *ProductService) Trending(ctx context.Context, location string) ([]domain.Product, error) {
	if location == "" {
		return nil, apperrors.InvalidInput("location is required")
	}
	categories := make(store.In, 0, len(TrendingCategories))
	for _, c := range TrendingCategories {
		categories = append(categories, c)
	}
	return s.products.FindMany(ctx, store.Filter{"category": categories}, trendingLimit)
}

func (s *ProductService) ListBundles(ctx context.Context, limit int) ([]domain.Bundle, error) {
	if limit <= 0 {
		limit = DefaultBundleLimit
	}
	return s.bundles.FindMany(ctx, store.Filter{}, limit)
}

func (s *ProductService) GetBundle(ctx context.Context, id string) (*domain.Bundle, error) {
	return s.bundles.FindOne(ctx, store.Filter{store.IDField: id})
}

// CreateBundle stores a bundle; savings are derived from the two prices.
func (s *ProductService) CreateBundle(ctx context.Context, input CreateBundleInput) (*domain.Bundle, error) {
	if input.Name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}

	productIDs := input.ProductIDs
	if productIDs == nil {
		productIDs = []string{}
	}
	bundle := &domain.Bundle{
		ID:            uuid.New().String(),
		Name:          input.Name,
		Price:         input.Price,
		OriginalPrice: input.OriginalPrice,
		Savings:       input.OriginalPrice - input.Price,
		ItemsCount:    input.ItemsCount,
		Image:         input.Image,
		ProductIDs:    productIDs,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.bundles.InsertOne(ctx, bundle); err != nil {
		return nil, fmt.Errorf("create bundle: %w", err)
	}

	s.logger.InfoContext(ctx, "bundle created",
		slog.String("bundle_id", bundle.ID),
		slog.Int64("savings", bundle.Savings),
	)
	return bundle, nil
}

// VisualSearch returns the canned visual matches for query.
func (s *ProductService) VisualSearch(query string) (*domain.VisualSearchResult, error) {
	if query == "" {
		return nil, apperrors.InvalidInput("query is required")
	}
	results := append([]domain.VisualMatch{}, s.fixtures.VisualMatches...)
	return &domain.VisualSearchResult{Results: results, Query: query}, nil
}

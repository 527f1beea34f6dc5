package usecase

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/nmoreyra/taller3d/internal/domain"
)

type ProductUC struct {
	Products   domain.ProductRepo
	Categories domain.CategoryRepo
}

func (uc *ProductUC) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int64, error) {
	if f.PageSize == 0 {
		f.PageSize = 20
	}
	return uc.Products.List(ctx, f)
}

func (uc *ProductUC) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	if slug == "" {
		return nil, domain.Validation("slug", "slug is required")
	}
	return uc.Products.FindBySlug(ctx, slug)
}

func (uc *ProductUC) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if strings.TrimSpace(p.Name) == "" {
		return domain.Validation("name", "name is required")
	}
	if p.PriceCents < 0 {
		return domain.Validation("price_cents", "price cannot be negative")
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Name)
	}
	return uc.Products.Save(ctx, p)
}

func (uc *ProductUC) Update(ctx context.Context, p *domain.Product) error {
	if p.ID == uuid.Nil {
		return domain.Validation("id", "product id is required")
	}
	if p.PriceCents < 0 {
		return domain.Validation("price_cents", "price cannot be negative")
	}
	return uc.Products.Save(ctx, p)
}

// Deactivate is the soft delete: referenced orders keep their snapshots, the
// product just stops being sellable or listable.
func (uc *ProductUC) Deactivate(ctx context.Context, slug string) error {
	p, err := uc.Products.FindBySlug(ctx, slug)
	if err != nil {
		return err
	}
	return uc.Products.Deactivate(ctx, p.ID)
}

func (uc *ProductUC) AddImages(ctx context.Context, productID uuid.UUID, imgs []domain.ProductImage) error {
	return uc.Products.AddImages(ctx, productID, imgs)
}

func (uc *ProductUC) ClearImages(ctx context.Context, productID uuid.UUID) error {
	return uc.Products.ClearImages(ctx, productID)
}

func (uc *ProductUC) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return uc.Categories.List(ctx, false)
}

func (uc *ProductUC) SaveCategory(ctx context.Context, c *domain.Category) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if strings.TrimSpace(c.Name) == "" {
		return domain.Validation("name", "name is required")
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	return uc.Categories.Save(ctx, c)
}

func (uc *ProductUC) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return domain.Validation("id", "category id is required")
	}
	return uc.Categories.Delete(ctx, id)
}

// Slugify lower-cases and hyphenates a name for URLs.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), "-")
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-")
}

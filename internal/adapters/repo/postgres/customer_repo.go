package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nmoreyra/taller3d/internal/domain"
)

type CustomerRepo struct{ db *gorm.DB }

func NewCustomerRepo(db *gorm.DB) *CustomerRepo { return &CustomerRepo{db: db} }

func (r *CustomerRepo) FindByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	var c domain.Customer
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" {
		return nil, domain.Validation("email", "email is required")
	}
	if err := r.db.WithContext(ctx).First(&c, "LOWER(email) = ?", e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepo) Save(ctx context.Context, c *domain.Customer) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Email != "" {
		c.Email = strings.ToLower(c.Email)
	}
	return r.db.WithContext(ctx).Save(c).Error
}

type AddressRepo struct{ db *gorm.DB }

func NewAddressRepo(db *gorm.DB) *AddressRepo { return &AddressRepo{db: db} }

func (r *AddressRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Address, error) {
	var list []domain.Address
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("is_default desc, created_at asc").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *AddressRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Address, error) {
	var a domain.Address
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *AddressRepo) Save(ctx context.Context, a *domain.Address) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *AddressRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Address{}, "id = ?", id).Error
}

// SetDefault keeps the single-default invariant: clear every default for the
// customer, then mark the chosen one, inside one transaction.
func (r *AddressRepo) SetDefault(ctx context.Context, customerID, addressID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Address{}).
			Where("customer_id = ?", customerID).
			Update("is_default", false).Error; err != nil {
			return err
		}
		res := tx.Model(&domain.Address{}).
			Where("id = ? AND customer_id = ?", addressID, customerID).
			Update("is_default", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nmoreyra/taller3d/internal/domain"
)

type OrderRepo struct{ db *gorm.DB }

func NewOrderRepo(db *gorm.DB) *OrderRepo { return &OrderRepo{db: db} }

// Create persists the order row first and its item snapshots second, in one
// transaction. A unique-index collision on order_number comes back as
// domain.ErrDuplicateOrderNumber so the caller can regenerate.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Create(o).Error; err != nil {
			return err
		}
		if len(o.Items) == 0 {
			return nil
		}
		for i := range o.Items {
			o.Items[i].OrderID = o.ID
		}
		return tx.Create(&o.Items).Error
	})
	if err != nil && (errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "order_number")) {
		return domain.ErrDuplicateOrderNumber
	}
	return err
}

func (r *OrderRepo) Save(ctx context.Context, o *domain.Order) error {
	// items are immutable snapshots, never rewritten on save
	return r.db.WithContext(ctx).Omit("Items").Save(o).Error
}

func (r *OrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *OrderRepo) FindByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return r.findOne(ctx, "order_number = ?", strings.ToUpper(strings.TrimSpace(number)))
}

func (r *OrderRepo) FindBySession(ctx context.Context, sessionID string) (*domain.Order, error) {
	return r.findOne(ctx, "checkout_session_id = ?", sessionID)
}

func (r *OrderRepo) findOne(ctx context.Context, cond string, arg any) (*domain.Order, error) {
	var o domain.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&o, cond, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, int64, error) {
	var list []domain.Order
	q := r.db.WithContext(ctx).Model(&domain.Order{})
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.PaymentStatus != nil {
		q = q.Where("payment_status = ?", *f.PaymentStatus)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	offset := (f.Page - 1) * f.PageSize
	if err := q.Order("created_at desc").Offset(offset).Limit(f.PageSize).
		Preload("Items").Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *OrderRepo) ListByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	var list []domain.Order
	if err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Order("created_at desc").Preload("Items").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// ListInRange returns orders with created_at in the half-open window
// [from, to). The caller owns any end-of-day extension.
func (r *OrderRepo) ListInRange(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	var list []domain.Order
	if err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at asc").Preload("Items").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *OrderRepo) SetPaymentSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	return r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ?", id).Update("checkout_session_id", sessionID).Error
}

func (r *OrderRepo) AppendHistory(ctx context.Context, h *domain.OrderStatusHistory) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *OrderRepo) History(ctx context.Context, orderID uuid.UUID) ([]domain.OrderStatusHistory, error) {
	var list []domain.OrderStatusHistory
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).Order("created_at desc").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

package app

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/nmoreyra/taller3d/internal/adapters/httpserver"
	"github.com/nmoreyra/taller3d/internal/adapters/notify"
	"github.com/nmoreyra/taller3d/internal/adapters/payments/stripe"
	"github.com/nmoreyra/taller3d/internal/adapters/repo/postgres"
	"github.com/nmoreyra/taller3d/internal/adapters/shipping/carrier"
	"github.com/nmoreyra/taller3d/internal/config"
	"github.com/nmoreyra/taller3d/internal/domain"
	"github.com/nmoreyra/taller3d/internal/usecase"
)

// App owns the whole object graph: repositories, use cases, adapters and the
// HTTP handler wired together.
type App struct {
	Handler http.Handler
	db      *gorm.DB
}

func New(db *gorm.DB, cfg *config.Config) *App {
	productRepo := postgres.NewProductRepo(db)
	categoryRepo := postgres.NewCategoryRepo(db)
	couponRepo := postgres.NewCouponRepo(db)
	rateRepo := postgres.NewShippingRateRepo(db)
	orderRepo := postgres.NewOrderRepo(db)
	customerRepo := postgres.NewCustomerRepo(db)
	addressRepo := postgres.NewAddressRepo(db)

	gateway := stripe.NewGateway(cfg.StripeSecretKey, cfg.BaseURL)
	mailer := notify.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	shipper := carrier.New(cfg.CarrierAPIBase, cfg.CarrierClientID, cfg.CarrierClientSecret)

	couponUC := &usecase.CouponUC{Coupons: couponRepo}
	shippingUC := &usecase.ShippingUC{Rates: rateRepo}
	productUC := &usecase.ProductUC{Products: productRepo, Categories: categoryRepo}
	checkoutUC := &usecase.CheckoutUC{
		Products: productRepo,
		Orders:   orderRepo,
		Coupons:  couponUC,
		Shipping: shippingUC,
		Gateway:  gateway,
		TaxRate:  cfg.TaxRate,
	}
	orderUC := &usecase.OrderUC{
		Orders:  orderRepo,
		Mailer:  mailer,
		Carrier: shipper,
		Gateway: gateway,
	}
	paymentUC := &usecase.PaymentUC{
		Orders:   orderRepo,
		Products: productRepo,
		Coupons:  couponRepo,
		Mailer:   mailer,
	}

	var oauthCfg *oauth2.Config
	if cfg.GoogleClientID != "" {
		oauthCfg = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.BaseURL + "/auth/google/callback",
			Scopes:       []string{"email", "profile"},
			Endpoint:     google.Endpoint,
		}
	}

	handler := httpserver.New(httpserver.Deps{
		Config:      cfg,
		Products:    productUC,
		Coupons:     couponUC,
		Shipping:    shippingUC,
		Checkout:    checkoutUC,
		Orders:      orderUC,
		Payments:    paymentUC,
		ProductRepo: productRepo,
		OrderRepo:   orderRepo,
		CouponRepo:  couponRepo,
		RateRepo:    rateRepo,
		Customers:   customerRepo,
		Addresses:   addressRepo,
		OAuthConfig: oauthCfg,
	})

	return &App{Handler: handler, db: db}
}

// MigrateAndSeed runs the schema migrations and, on an empty database, seeds
// the shipping rates a storefront cannot operate without.
func (a *App) MigrateAndSeed(ctx context.Context) error {
	db := a.db.WithContext(ctx)

	if err := db.AutoMigrate(
		&domain.Category{},
		&domain.Product{},
		&domain.ProductImage{},
		&domain.Coupon{},
		&domain.ShippingRate{},
		&domain.Customer{},
		&domain.Address{},
		&domain.Order{},
		&domain.OrderItem{},
		&domain.OrderStatusHistory{},
	); err != nil {
		return err
	}

	// AutoMigrate will not add columns introduced after a table already
	// exists in older deploys.
	alters := []string{
		`ALTER TABLE products ADD COLUMN IF NOT EXISTS compare_at_price_cents bigint`,
		`ALTER TABLE products ADD COLUMN IF NOT EXISTS track_inventory boolean DEFAULT true`,
		`ALTER TABLE orders ADD COLUMN IF NOT EXISTS refunded_cents bigint NOT NULL DEFAULT 0`,
		`ALTER TABLE orders ADD COLUMN IF NOT EXISTS notified boolean NOT NULL DEFAULT false`,
		`ALTER TABLE orders ADD COLUMN IF NOT EXISTS admin_notes text`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_order_number ON orders (order_number)`,
	}
	for _, stmt := range alters {
		if err := db.Exec(stmt).Error; err != nil {
			log.Warn().Err(err).Str("stmt", stmt).Msg("migration statement skipped")
		}
	}

	return a.seedShippingRates(ctx)
}

func (a *App) seedShippingRates(ctx context.Context) error {
	var count int64
	if err := a.db.WithContext(ctx).Model(&domain.ShippingRate{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	free := int64(7500)
	seeds := []domain.ShippingRate{
		{
			ID: uuid.New(), Name: "Standard", Description: "Tracked ground shipping",
			PriceCents: 599, MinOrderCents: 0, MaxOrderCents: &free,
			EstimatedDaysMin: 4, EstimatedDaysMax: 7, Active: true,
		},
		{
			ID: uuid.New(), Name: "Free over $75", Description: "Standard shipping, on us",
			PriceCents: 0, MinOrderCents: free + 1,
			EstimatedDaysMin: 4, EstimatedDaysMax: 7, Active: true,
		},
		{
			ID: uuid.New(), Name: "Express", Description: "Priority handling and air transit",
			PriceCents: 1499, MinOrderCents: 0,
			EstimatedDaysMin: 1, EstimatedDaysMax: 2, Active: true,
		},
	}
	if err := a.db.WithContext(ctx).Create(&seeds).Error; err != nil {
		return err
	}
	log.Info().Int("rates", len(seeds)).Msg("seeded shipping rates")
	return nil
}

package config

import "github.com/caarlos0/env/v9"

type Config struct {
	Port    string `env:"PORT" envDefault:"8080"`
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	BaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	DBDSN      string `env:"DB_DSN"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName     string `env:"DB_NAME" envDefault:"taller3d"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	// TaxRate is the single process-wide sales tax rate applied to the
	// discounted subtotal. Jurisdictional tax is out of scope.
	TaxRate float64 `env:"TAX_RATE" envDefault:"0.08"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`

	SMTPHost string `env:"SMTP_HOST"`
	SMTPPort int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASS"`
	MailFrom string `env:"MAIL_FROM" envDefault:"orders@taller3d.shop"`

	CarrierAPIBase      string `env:"CARRIER_API_BASE"`
	CarrierClientID     string `env:"CARRIER_CLIENT_ID"`
	CarrierClientSecret string `env:"CARRIER_CLIENT_SECRET"`

	SessionKey         string `env:"SESSION_KEY" envDefault:"dev-insecure"`
	AdminSecret        string `env:"JWT_ADMIN_SECRET" envDefault:"dev-admin-secret"`
	AdminUser          string `env:"ADMIN_USER" envDefault:"admin"`
	AdminPass          string `env:"ADMIN_PASS" envDefault:"admin123"`
	AdminAllowedEmails string `env:"ADMIN_ALLOWED_EMAILS"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`

	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DSN assembles a postgres DSN from the discrete DB_* values unless DB_DSN
// is set explicitly.
func (c *Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	return "host=" + c.DBHost + " user=" + c.DBUser + " password=" + c.DBPassword +
		" dbname=" + c.DBName + " port=" + c.DBPort + " sslmode=" + c.DBSSLMode
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

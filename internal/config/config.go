package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	Database    Database `envPrefix:"DATABASE_"`
	Redis       Redis    `envPrefix:"REDIS_"`
	Auth        Auth     `envPrefix:"AUTH_"`
	Shop        Shop     `envPrefix:"SHOP_"`
	Notify      Notify   `envPrefix:"NOTIFY_"`

	PaymentProvider string `env:"PAYMENT_PROVIDER" envDefault:"stripe"` // stripe | paypal
	Stripe          Stripe `envPrefix:"STRIPE_"`
	Paypal          Paypal `envPrefix:"PAYPAL_"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

func (e Environment) IsProduction() bool {
	return e.Name == "production"
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

type Database struct {
	Driver string `env:"DRIVER" envDefault:"sqlite"` // mysql | sqlite
	URL    string `env:"URL" envDefault:"shop.db"`
}

type Redis struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type Shop struct {
	SiteURL              string        `env:"SITE_URL" envDefault:"http://localhost:8080"`
	Currency             string        `env:"CURRENCY" envDefault:"gbp"`
	DefaultDownloadLimit int           `env:"DEFAULT_DOWNLOAD_LIMIT" envDefault:"5"`
	MediaRoot            string        `env:"MEDIA_ROOT" envDefault:"media/secure"`
	CartTTL              time.Duration `env:"CART_TTL" envDefault:"336h"`
	GatewayTimeout       time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`
	MaxOrderMinor        int64         `env:"MAX_ORDER_MINOR" envDefault:"99999999"` // largest charge the gateway accepts
	SeedCatalog          bool          `env:"SEED_CATALOG" envDefault:"false"`
}

type Notify struct {
	Driver       string   `env:"DRIVER" envDefault:"log"` // log | kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"shop.notifications"`
}

type Stripe struct {
	PublishableKey string `env:"PUBLISHABLE_KEY"`
	SecretKey      string `env:"SECRET_KEY"`
	WebhookSecret  string `env:"WEBHOOK_SECRET"`
}

type Paypal struct {
	BaseApiURL   string `env:"BASE_API_URL" envDefault:"https://api-m.sandbox.paypal.com"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	WebhookID    string `env:"WEBHOOK_ID"`
	ReturnURL    string `env:"RETURN_URL"`
	CancelURL    string `env:"CANCEL_URL"`
}

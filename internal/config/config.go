package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string `env:"APP_PORT" envDefault:"3000"`
	AppEnv  string `env:"APP_ENV" envDefault:"development"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "text" | "json"

	AWSRegion      string `env:"AWS_REGION" envDefault:"ap-south-1"`
	AWSEndpointURL string `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`

	DynamoTables DynamoTables `envPrefix:"DYNAMO_TABLE_"`
	S3BucketName string       `env:"S3_BUCKET_NAME" envDefault:"storefront-invoices"`

	JWTPrivateKeyPath string        `env:"JWT_PRIVATE_KEY_PATH" envDefault:"./private_key.pem"`
	JWTPublicKeyPath  string        `env:"JWT_PUBLIC_KEY_PATH" envDefault:"./public_key.pem"`
	JWTExpiry         time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`

	SMTPHost     string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"1025"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"noreply@example.com"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`

	SNSRegion  string `env:"SNS_REGION"`
	SMSEnabled bool   `env:"SMS_ENABLED" envDefault:"false"`

	Razorpay Razorpay `envPrefix:"RAZORPAY_"`
	Notify   Notify   `envPrefix:"NOTIFY_"`

	OTPTTL          time.Duration `env:"OTP_TTL" envDefault:"5m"`
	OTPMaxAttempts  int           `env:"OTP_MAX_ATTEMPTS" envDefault:"5"`
	DisplayTimezone string        `env:"DISPLAY_TIMEZONE" envDefault:"Asia/Kolkata"`
	SupportEmail    string        `env:"SUPPORT_EMAIL" envDefault:"support@example.com"`
	StoreName       string        `env:"STORE_NAME" envDefault:"Storefront"`

	MigrateLegacyCarts bool     `env:"MIGRATE_LEGACY_CARTS" envDefault:"true"`
	AllowedOrigins     []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","` // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users         string `env:"USERS" envDefault:"users"`
	OTPs          string `env:"OTPS" envDefault:"otps"`
	PendingOrders string `env:"PENDING_ORDERS" envDefault:"pending_orders"`
	OrderHistory  string `env:"ORDER_HISTORY" envDefault:"order_history"`
}

// Razorpay holds payment gateway credentials.
type Razorpay struct {
	BaseURL   string        `env:"BASE_URL" envDefault:"https://api.razorpay.com/v1"`
	KeyID     string        `env:"KEY_ID"`
	KeySecret string        `env:"KEY_SECRET"`
	Currency  string        `env:"CURRENCY" envDefault:"INR"`
	Timeout   time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// Notify configures background delivery of emails, SMS and invoice archives.
// When AMQPURL is set tasks are published to RabbitMQ and consumed by the same process.
type Notify struct {
	Workers     int           `env:"WORKERS" envDefault:"4"`
	QueueSize   int           `env:"QUEUE_SIZE" envDefault:"256"`
	MaxRetries  int           `env:"MAX_RETRIES" envDefault:"3"`
	SendTimeout time.Duration `env:"SEND_TIMEOUT" envDefault:"15s"`
	AMQPURL     string        `env:"AMQP_URL"`
	Exchange    string        `env:"EXCHANGE" envDefault:"storefront.notifications"`
	Queue       string        `env:"QUEUE" envDefault:"storefront.notifications.deliver"`
	Prefetch    int           `env:"PREFETCH" envDefault:"16"`
}

// Load reads all configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.OTPTTL <= 0 {
		return nil, fmt.Errorf("OTP_TTL must be positive, got %s", cfg.OTPTTL)
	}
	if cfg.Notify.Workers < 1 {
		cfg.Notify.Workers = 1
	}
	return &cfg, nil
}

// Location resolves DisplayTimezone, falling back to UTC when the zone database lacks it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

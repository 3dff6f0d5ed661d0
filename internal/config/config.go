package config // package config loads application configuration from environment variables

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds all runtime configuration values.  Each field is decoded from
// the environment variable named in its tag; a .env file in the working
// directory is loaded first when present.
type Config struct {
	Env  string `env:"APP_ENV,default=development"` // development | test | production
	Port string `env:"APP_PORT,default=5000"`       // HTTP port to listen on

	DBDriver string `env:"DB_DRIVER,default=sqlite"`   // sqlite | mysql
	DBDSN    string `env:"DB_DSN,default=file:app.db"` // driver-specific DSN

	JWTSecret         string        `env:"JWT_SECRET,required"`                          // secret used to sign access tokens
	JWTIssuer         string        `env:"JWT_ISSUER,default=dynamic-web-app"`           // iss claim
	JWTAudience       string        `env:"JWT_AUDIENCE,default=dynamic-web-app-users"`   // aud claim
	AccessTokenTTL    time.Duration `env:"ACCESS_TOKEN_TTL,default=30m"`                 // access token lifetime
	RefreshTokenTTL   time.Duration `env:"REFRESH_TOKEN_TTL,default=168h"`               // refresh session lifetime
	SingleSession     bool          `env:"AUTH_SINGLE_SESSION,default=true"`             // login revokes older sessions
	BcryptCost        int           `env:"BCRYPT_COST,default=12"`                       // bcrypt cost factor
	ResetTokenTTL     time.Duration `env:"RESET_TOKEN_TTL,default=1h"`                   // password reset link lifetime
	ClientURL         string        `env:"CLIENT_URL,default=http://localhost:3000"`     // base URL used in email links
	CORSOrigins       []string      `env:"CORS_ORIGINS,default=http://localhost:3000"`   // allowed browser origins
	TokenCleanupEvery time.Duration `env:"TOKEN_CLEANUP_INTERVAL,default=1h"`            // expired session sweep interval

	SMTPHost string `env:"SMTP_HOST"`
	SMTPPort int    `env:"SMTP_PORT,default=587"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASS"`
	SMTPFrom string `env:"SMTP_FROM,default=noreply@dynamic-web-app.local"`

	StorageDriver        string `env:"STORAGE_DRIVER,default=local"` // local | s3
	UploadPath           string `env:"UPLOAD_PATH,default=uploads"`
	PublicBaseURL        string `env:"PUBLIC_BASE_URL,default=/uploads"`
	S3Bucket             string `env:"S3_BUCKET"`
	S3Region             string `env:"S3_REGION,default=us-east-1"`
	S3Endpoint           string `env:"S3_ENDPOINT"`
	S3AccessKey          string `env:"S3_ACCESS_KEY"`
	S3SecretKey          string `env:"S3_SECRET_KEY"`
	MaxProfileImageBytes int64  `env:"MAX_PROFILE_IMAGE_BYTES,default=5242880"`
	MaxDocumentBytes     int64  `env:"MAX_DOCUMENT_BYTES,default=10485760"`

	RabbitURL string `env:"RABBITMQ_URL"` // empty runs events and tasks in-process
	LogLevel  string `env:"LOG_LEVEL"`

	DefaultAdminEmail    string `env:"DEFAULT_ADMIN_EMAIL"`
	DefaultAdminUsername string `env:"DEFAULT_ADMIN_USERNAME,default=administrator"`
	DefaultAdminPassword string `env:"DEFAULT_ADMIN_PASSWORD"`
}

// Load reads configuration values from the environment and returns a Config.
// Missing required variables and malformed values are reported as an error.
func Load() (Config, error) {
	_ = godotenv.Load() // a missing .env is the normal case outside local development
	return LoadFrom(context.Background(), nil)
}

// LoadFrom decodes a Config using the given lookuper, or the process
// environment when l is nil.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if l == nil {
		l = envconfig.OsLookuper()
	}
	if err := envconfig.ProcessWith(ctx, &cfg, l); err != nil {
		return Config{}, fmt.Errorf("parsing env vars: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DBDriver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.StorageDriver {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 characters")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST out of range: %d", c.BcryptCost)
	}
	return nil
}

func (c Config) IsProduction() bool  { return c.Env == "production" }
func (c Config) IsDevelopment() bool { return c.Env == "development" }

// SMTPEnabled reports whether enough SMTP settings are present to send mail.
func (c Config) SMTPEnabled() bool { return c.SMTPHost != "" }

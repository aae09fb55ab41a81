package config

import (
	"flag"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Драйверы хранилищ.
const (
	DatabasePostgres = "postgres"
	DatabaseSQLite   = "sqlite"
	DatabaseMongo    = "mongo"

	BlobDB    = "db"
	BlobMinio = "minio"
	BlobS3    = "s3"
)

type Config struct {
	// Server-side settings
	DatabaseDriver string `env:"DATABASE_DRIVER"`
	DatabaseDSN    string `env:"DATABASE_URI"`
	MongoDatabase  string `env:"MONGO_DATABASE"`

	BlobDriver string `env:"BLOB_DRIVER"`
	BlobBucket string `env:"BLOB_BUCKET"`
	BlobPrefix string `env:"BLOB_PREFIX"`
	BlobMaxMB  int    `env:"BLOB_MAX_MB"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL"`

	S3Region    string `env:"S3_REGION"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`

	HealthLakeEndpoint string        `env:"HEALTHLAKE_ENDPOINT"`
	HealthLakeRegion   string        `env:"HEALTHLAKE_REGION"`
	FHIRCacheSize      int           `env:"FHIR_CACHE_SIZE"`
	FHIRCacheTTL       time.Duration `env:"FHIR_CACHE_TTL"`

	PublicURL               string        `env:"PUBLIC_URL"`
	ViewerPath              string        `env:"VIEWER_PATH"`
	DefaultPasscodeAttempts int           `env:"DEFAULT_PASSCODE_ATTEMPTS"`
	FileTokenTTLMinutes     int           `env:"FILE_TOKEN_TTL_MINUTES"`
	TokenPurgeInterval      time.Duration `env:"TOKEN_PURGE_INTERVAL"`
	BcryptCost              int           `env:"BCRYPT_COST"`
	EnvelopeCompression     *bool         `env:"ENVELOPE_COMPRESSION"`

	LogLevel string `env:"LOG_LEVEL"`
	CertFile string `env:"TLS_CERT_FILE"`
	KeyFile  string `env:"TLS_KEY_FILE"`

	// Shared settings
	BaseURL     string `env:"BASE_URL"`
	EnableHTTPS bool   `env:"ENABLE_HTTPS"`

	// Client-side settings
	ServerURL string `env:"-"`
	Version   bool   `env:"-"` // show client version and exit (flag only)
}

func NewConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	_ = env.Parse(cfg)

	compression := true
	if cfg.EnvelopeCompression != nil {
		compression = *cfg.EnvelopeCompression
	}
	cfg.EnvelopeCompression = &compression

	// flags работают ТОЛЬКО если переменные из env не заданы
	// Server flags
	flag.StringVar(&cfg.DatabaseDriver, "db-driver", cfg.DatabaseDriver, "драйвер БД: postgres, sqlite или mongo")
	flag.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "строка подключения к БД")
	flag.StringVar(&cfg.BlobDriver, "blob-driver", cfg.BlobDriver, "хранилище зашифрованного содержимого: db, minio или s3")
	flag.StringVar(&cfg.PublicURL, "public-url", cfg.PublicURL, "внешний адрес сервера для ссылок манифеста")
	flag.StringVar(&cfg.HealthLakeEndpoint, "healthlake", cfg.HealthLakeEndpoint, "адрес FHIR datastore (HealthLake)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	flag.BoolVar(cfg.EnvelopeCompression, "compress", *cfg.EnvelopeCompression, "сжимать содержимое перед шифрованием (zip=DEF)")
	// Shared/client flags
	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "base URL of the SHL server (may be host:port or full URL)")
	flag.BoolVar(&cfg.EnableHTTPS, "https", cfg.EnableHTTPS, "enable HTTPS (client: prefer https scheme for BaseURL)")
	flag.BoolVar(&cfg.Version, "version", cfg.Version, "Show client version and exit")

	flag.Parse()

	// Defaults
	// validate BaseURL: must be in "address:port" (no scheme, no path). Otherwise use default.
	hostPortRe := regexp.MustCompile(`^[A-Za-z0-9\.\-]*:\d{1,5}$`)
	if !hostPortRe.MatchString(cfg.BaseURL) {
		cfg.BaseURL = "localhost:8081"
	}

	host := cfg.BaseURL
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	if cfg.EnableHTTPS {
		cfg.ServerURL = "https://" + host
	} else {
		cfg.ServerURL = "http://" + host
	}

	if cfg.PublicURL == "" {
		cfg.PublicURL = cfg.ServerURL
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	if cfg.ViewerPath == "" {
		cfg.ViewerPath = "/viewer"
	}

	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = DatabasePostgres
	}
	if cfg.MongoDatabase == "" {
		cfg.MongoDatabase = "shlink"
	}
	if cfg.BlobDriver == "" {
		cfg.BlobDriver = BlobDB
	}
	if cfg.BlobBucket == "" {
		cfg.BlobBucket = "shl-payloads"
	}
	if cfg.BlobPrefix == "" {
		cfg.BlobPrefix = "payloads/"
	}
	if cfg.BlobMaxMB <= 0 {
		cfg.BlobMaxMB = 50
	}
	if cfg.S3Region == "" {
		cfg.S3Region = "us-east-1"
	}
	if cfg.HealthLakeRegion == "" {
		cfg.HealthLakeRegion = cfg.S3Region
	}
	if cfg.FHIRCacheSize <= 0 {
		cfg.FHIRCacheSize = 256
	}
	if cfg.FHIRCacheTTL <= 0 {
		cfg.FHIRCacheTTL = 5 * time.Minute
	}

	if cfg.DefaultPasscodeAttempts <= 0 {
		cfg.DefaultPasscodeAttempts = 10
	}
	if cfg.FileTokenTTLMinutes <= 0 {
		cfg.FileTokenTTLMinutes = 60
	}
	if cfg.TokenPurgeInterval <= 0 {
		cfg.TokenPurgeInterval = 10 * time.Minute
	}
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = 10
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg
}

// FileTokenTTL — время жизни токена скачивания.
func (c *Config) FileTokenTTL() time.Duration {
	return time.Duration(c.FileTokenTTLMinutes) * time.Minute
}

// BlobMaxBytes — предел размера загружаемого файла.
func (c *Config) BlobMaxBytes() int64 {
	return int64(c.BlobMaxMB) * 1024 * 1024
}

// Compression сообщает, включено ли сжатие содержимого перед шифрованием.
func (c *Config) Compression() bool {
	return c.EnvelopeCompression == nil || *c.EnvelopeCompression
}

package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageTypeS3   = "s3"
	StorageTypeFile = "file"
)

// DefaultJWTSecret is only accepted in debug mode
const DefaultJWTSecret = "change-me"

var ErrInsecureJWTSecret = errors.New("JWT_SECRET must be set to a non-default value outside DEBUG_MODE")

type Config struct {
	BindAddress   string
	TLSDomains    string // e.g. "example.com,example2.com"
	DebugMode     bool
	PublicBaseURL string // used for share links, defaults to the request host
	FrontendDir   string

	// Database. DATABASE_URL wins, then MYSQL_DSN, then SQLITE_FILE
	DatabaseURL  string
	MySQLDSN     string
	SQLiteFile   string
	DatabaseEcho bool

	JWTSecret string
	TokenTTL  time.Duration

	// Object storage (Cloudflare R2 or a local directory)
	StorageType      string
	R2EndpointURL    string
	R2AccessKeyID    string
	R2SecretKey      string
	R2BucketName     string
	R2Region         string
	R2PublicBaseURL  string
	R2ObjectACL      string // R2 ignores ACLs, other S3 providers may need "public-read"
	StorageDir       string // used when StorageType == "file"
	EmbeddingsPrefix string

	MLAPIBaseURL   string
	MatchThreshold string // passed through to the ML service when set

	UploadDir      string
	RefCacheDir    string
	MaxUploadMB    int
	RefPhotoMaxDim int
}

// Load reads .env (if present) and the process environment
func Load() *Config {
	_ = godotenv.Load()

	c := &Config{
		BindAddress:      "0.0.0.0:8000",
		DebugMode:        false,
		FrontendDir:      "frontend",
		SQLiteFile:       "face_recognition_app.db",
		JWTSecret:        DefaultJWTSecret,
		TokenTTL:         24 * time.Hour,
		StorageType:      StorageTypeS3,
		R2Region:         "auto",
		StorageDir:       "storage",
		EmbeddingsPrefix: "embeddings/",
		UploadDir:        "uploads",
		RefCacheDir:      "uploads/ref_cache",
		MaxUploadMB:      25,
		RefPhotoMaxDim:   1600,
	}
	if port := os.Getenv("PORT"); port != "" {
		c.BindAddress = "0.0.0.0:" + port
	}
	readEnvString("BIND_ADDRESS", &c.BindAddress)
	readEnvString("TLS_DOMAINS", &c.TLSDomains)
	readEnvBool("DEBUG_MODE", &c.DebugMode)
	readEnvString("PUBLIC_BASE_URL", &c.PublicBaseURL)
	readEnvString("FRONTEND_DIR", &c.FrontendDir)

	readEnvString("DATABASE_URL", &c.DatabaseURL)
	readEnvString("MYSQL_DSN", &c.MySQLDSN)
	readEnvString("SQLITE_FILE", &c.SQLiteFile)
	readEnvBool("DATABASE_ECHO", &c.DatabaseEcho)

	readEnvString("JWT_SECRET", &c.JWTSecret)
	ttlHours := 24
	readEnvInt("TOKEN_TTL", &ttlHours)
	if ttlHours > 0 {
		c.TokenTTL = time.Duration(ttlHours) * time.Hour
	}

	readEnvString("STORAGE_TYPE", &c.StorageType)
	readEnvString("R2_ENDPOINT_URL", &c.R2EndpointURL)
	readEnvString("R2_ACCESS_KEY_ID", &c.R2AccessKeyID)
	readEnvString("R2_SECRET_ACCESS_KEY", &c.R2SecretKey)
	readEnvString("R2_BUCKET_NAME", &c.R2BucketName)
	readEnvString("R2_REGION", &c.R2Region)
	readEnvString("R2_PUBLIC_BASE_URL", &c.R2PublicBaseURL)
	readEnvString("R2_OBJECT_ACL", &c.R2ObjectACL)
	readEnvString("STORAGE_DIR", &c.StorageDir)
	readEnvString("EMBEDDINGS_PREFIX", &c.EmbeddingsPrefix)

	readEnvString("ML_API_BASE_URL", &c.MLAPIBaseURL)
	readEnvString("MATCH_THRESHOLD", &c.MatchThreshold)

	readEnvString("UPLOAD_DIR", &c.UploadDir)
	readEnvString("REF_CACHE_DIR", &c.RefCacheDir)
	readEnvInt("MAX_UPLOAD_MB", &c.MaxUploadMB)
	readEnvInt("REF_PHOTO_MAX_DIM", &c.RefPhotoMaxDim)

	c.R2PublicBaseURL = strings.TrimRight(c.R2PublicBaseURL, "/")
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	if c.MLAPIBaseURL != "" && !strings.HasSuffix(c.MLAPIBaseURL, "/") {
		c.MLAPIBaseURL += "/"
	}
	return c
}

// InsecureJWTSecret reports whether tokens would be signed with a guessable key
func (c *Config) InsecureJWTSecret() bool {
	return strings.TrimSpace(c.JWTSecret) == "" || c.JWTSecret == DefaultJWTSecret
}

// Validate rejects settings that must never reach a release build
func (c *Config) Validate() error {
	if !c.DebugMode && c.InsecureJWTSecret() {
		return ErrInsecureJWTSecret
	}
	return nil
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func readEnvString(name string, value *string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	*value = v
}

func readEnvBool(name string, value *bool) {
	v := strings.ToLower(os.Getenv(name))
	if v == "true" || v == "1" || v == "yes" || v == "on" {
		*value = true
	} else if v == "false" || v == "0" || v == "no" || v == "off" {
		*value = false
	}
}

func readEnvInt(name string, value *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*value = f
}

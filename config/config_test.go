package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DEBUG_MODE", "yes")
	t.Setenv("TOKEN_TTL", "2")
	t.Setenv("R2_PUBLIC_BASE_URL", "https://cdn.example.com/")
	t.Setenv("ML_API_BASE_URL", "https://ml.example.com")
	t.Setenv("MAX_UPLOAD_MB", "not-a-number")

	c := Load()
	assert.Equal(t, "0.0.0.0:9000", c.BindAddress)
	assert.True(t, c.DebugMode)
	assert.Equal(t, 2*time.Hour, c.TokenTTL)
	assert.Equal(t, "https://cdn.example.com", c.R2PublicBaseURL)
	assert.Equal(t, "https://ml.example.com/", c.MLAPIBaseURL)
	assert.Equal(t, 25, c.MaxUploadMB)
	assert.Equal(t, int64(25<<20), c.MaxUploadBytes())
}

func Test_readEnvBool(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		start bool
		want  bool
	}{
		{"on", "on", false, true},
		{"OFF", "OFF", true, false},
		{"garbage keeps value", "maybe", true, true},
		{"empty keeps value", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SOME_FLAG", tt.env)
			v := tt.start
			readEnvBool("SOME_FLAG", &v)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestValidateJWTSecret(t *testing.T) {
	tests := []struct {
		name    string
		debug   bool
		secret  string
		wantErr bool
	}{
		{"default secret in release", false, DefaultJWTSecret, true},
		{"empty secret in release", false, "  ", true},
		{"custom secret in release", false, "s3cr3t-value", false},
		{"default secret in debug", true, DefaultJWTSecret, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{DebugMode: tt.debug, JWTSecret: tt.secret}
			err := c.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInsecureJWTSecret)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadDefaultsToInsecureSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DEBUG_MODE", "off")
	c := Load()
	assert.True(t, c.InsecureJWTSecret())
	assert.ErrorIs(t, c.Validate(), ErrInsecureJWTSecret)
}

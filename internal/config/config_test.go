package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load("api")
	require.NoError(t, err)

	assert.Equal(t, "api", cfg.RunMode)
	assert.Equal(t, "breederhub", cfg.MongoDbName)
	assert.Equal(t, 24*time.Hour, cfg.JwtTTL)
	assert.Equal(t, time.Hour, cfg.SignedURLTTL)
	assert.Equal(t, 80, cfg.MessageSnippetLength)
	assert.Equal(t, "v1.0", cfg.ConsentVersion)
	assert.True(t, cfg.AuditEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_TTL_SECONDS", "60")
	t.Setenv("MESSAGE_SNIPPET_LENGTH", "20")
	t.Setenv("AUDIT_ENABLED", "false")

	cfg, err := Load("bg")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.JwtTTL)
	assert.Equal(t, 20, cfg.MessageSnippetLength)
	assert.False(t, cfg.AuditEnabled)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load("api")
	assert.ErrorContains(t, err, "MONGO_URI")
}

func TestLoad_InvalidNumber(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("REDIS_DB", "zero")

	_, err := Load("api")
	assert.ErrorContains(t, err, "REDIS_DB")
}

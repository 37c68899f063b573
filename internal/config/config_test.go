package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VERBOSE", "false")
	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, "missing.env", cfg.ConfigPath)
	assert.Equal(t, "local", cfg.AuthMode)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "http://localhost:5555/realms/nexushub", cfg.Issuer)
	assert.Equal(t, "localhost:5000", cfg.Addr())
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nexushub.env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=6100\nJWT_SECRET=s3cret\nALLOW_ORIGINS=http://a, http://b\nTOKEN_TTL=2h\n"), 0o600))

	// godotenv never overrides variables already present in the environment.
	t.Setenv("PORT", "7000")
	t.Setenv("VERBOSE", "false")
	for _, k := range []string{"JWT_SECRET", "ALLOW_ORIGINS", "TOKEN_TTL"} {
		k := k
		prev, had := os.LookupEnv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, prev)
			} else {
				os.Unsetenv(k)
			}
		})
		os.Unsetenv(k)
	}

	cfg := Load(path)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, []byte("s3cret"), cfg.JWTSecret)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.AllowedOrigins)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
}

func TestStringMasksSecrets(t *testing.T) {
	cfg := Config{JWTSecret: []byte("topsecret"), DBPassword: "hunter2", ClientSecret: ""}
	out := cfg.String()

	assert.NotContains(t, out, "topsecret")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "********")
}

func TestDSN(t *testing.T) {
	cfg := Config{DBUser: "u", DBPassword: "p", DBAddress: "db:5432", DBName: "n"}
	assert.Equal(t, "postgres://u:p@db:5432/n?sslmode=disable", cfg.DSN())
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
app:
  tz: UTC
modules:
  otplogin:
    otp_validity_seconds: 300
    resend_cooldown_minutes: 1
    enabled: true
secretbox:
  key: AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8=
jwt:
  audiences: "web, mobile ,"
mail:
  headers: "x-app:otpgate,x-env: dev"
`

func TestNewViperFromBytes(t *testing.T) {
	cfg, err := NewViperFromBytes("yaml", []byte(sampleYAML))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cfg.Close() })

	assert.Equal(t, "UTC", cfg.GetString("app.tz"))
	assert.True(t, cfg.GetBool("modules.otplogin.enabled"))
	assert.Equal(t, 300*time.Second, cfg.GetSecond("modules.otplogin.otp_validity_seconds"))
	assert.Equal(t, time.Minute, cfg.GetMinute("modules.otplogin.resend_cooldown_minutes"))
	assert.Len(t, cfg.GetBinary("secretbox.key"), 32)
	assert.Equal(t, []string{"web", "mobile"}, cfg.GetArray("jwt.audiences"))
	assert.Empty(t, cfg.GetArray("missing.key"))
	assert.Equal(t, map[string]string{"x-app": "otpgate", "x-env": "dev"}, cfg.GetMap("mail.headers"))
	assert.Zero(t, cfg.GetInt("missing.key"))

	_, err = NewViperFromBytes(" ", nil)
	assert.Error(t, err)
}

func TestNewViper_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(sampleYAML), 0o600))

	t.Setenv("OTPGATE_APP_TZ", "Asia/Jakarta")

	cfg, err := NewViper(file)
	require.NoError(t, err)

	assert.Equal(t, "Asia/Jakarta", cfg.GetString("app.tz"))
	assert.Equal(t, 300*time.Second, cfg.GetSecond("modules.otplogin.otp_validity_seconds"))
}

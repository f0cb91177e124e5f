package otp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTOTP_Generate(t *testing.T) {
	o := NewTOTP(Config{Issuer: "otpgate"})

	secret, uri, err := o.Generate("alice")
	require.NoError(t, err)
	assert.Len(t, secret, 32)
	assert.Regexp(t, `^[A-Z2-7]{32}$`, secret)
	assert.Contains(t, uri, "otpauth://totp/")
	assert.Equal(t, 300*time.Second, o.Period())

	other, _, err := o.Generate("alice")
	require.NoError(t, err)
	assert.NotEqual(t, secret, other)
}

func TestTOTP_CodeWithinWindow(t *testing.T) {
	o := NewTOTP(Config{Issuer: "otpgate", Period: 300})
	secret, _, err := o.Generate("alice")
	require.NoError(t, err)

	start := time.Unix(1_700_000_100, 0).UTC() // aligned to a 300s window
	code, err := o.GenerateCode(secret, start)
	require.NoError(t, err)
	assert.Regexp(t, `^\d{6}$`, code)

	same, err := o.GenerateCode(secret, start.Add(299*time.Second))
	require.NoError(t, err)
	assert.Equal(t, code, same)

	assert.True(t, o.Validate(code, secret, start.Add(10*time.Second)))
	assert.False(t, o.Validate(code, secret, start.Add(300*time.Second)))
	assert.False(t, o.Validate("000000", "not-base32!", start))
}

func TestTOTP_Skew(t *testing.T) {
	o := NewTOTP(Config{Issuer: "otpgate", Period: 300, Skew: 1})
	secret, _, err := o.Generate("bob")
	require.NoError(t, err)

	start := time.Unix(1_700_000_100, 0).UTC()
	code, err := o.GenerateCode(secret, start)
	require.NoError(t, err)

	assert.True(t, o.Validate(code, secret, start.Add(300*time.Second)))
	assert.False(t, o.Validate(code, secret, start.Add(600*time.Second)))
}

package otp

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// SecretSize is the number of random bytes per secret; encodes to 32 base32 chars.
	SecretSize = 20
	// DefaultPeriod is the window length used when none is configured.
	DefaultPeriod = 300
)

// OTP defines the contract for time-windowed code operations.
type OTP interface {
	// Generate creates a fresh secret and provisioning URI for an account name.
	Generate(accountName string) (secret string, uri string, err error)
	// Validate checks whether a code is valid for secret at the given time.
	Validate(code, secret string, at time.Time) bool
	// GenerateCode derives the code for secret at the given time.
	GenerateCode(secret string, at time.Time) (string, error)
}

// Config configures a TOTP generator.
type Config struct {
	Issuer string
	// Period is the window length in seconds. Zero selects DefaultPeriod.
	Period uint
	// Skew is the number of neighbouring windows Validate accepts. Zero means
	// only the current window.
	Skew uint
}

// TOTP implements OTP with six digit SHA1 codes.
type TOTP struct {
	issuer string
	period uint
	skew   uint
}

// NewTOTP constructs a TOTP generator.
func NewTOTP(cfg Config) *TOTP {
	period := cfg.Period
	if period == 0 {
		period = DefaultPeriod
	}

	return &TOTP{
		issuer: cfg.Issuer,
		period: period,
		skew:   cfg.Skew,
	}
}

// Period returns the window length.
func (o *TOTP) Period() time.Duration {
	return time.Duration(o.period) * time.Second
}

func (o *TOTP) Generate(accountName string) (secret string, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      o.issuer,
		AccountName: accountName,
		Period:      o.period,
		SecretSize:  SecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}

	return key.Secret(), key.URL(), nil
}

func (o *TOTP) Validate(code, secret string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, o.opts())
	return ok && err == nil
}

func (o *TOTP) GenerateCode(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at, o.opts())
}

func (o *TOTP) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    o.period,
		Skew:      o.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

package goerror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBusiness_WithReason(t *testing.T) {
	err := NewBusiness("Invalid OTP", CodeInvalidInput, WithReason("invalid_otp"))

	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "Invalid OTP", gerr.Msg())
	assert.Equal(t, "invalid_otp", gerr.Reason())
	assert.Equal(t, TypeBusiness, gerr.Type())
	assert.Equal(t, http.StatusUnprocessableEntity, gerr.StatusCode())
	assert.Equal(t, "invalid_otp", ReasonOf(fmt.Errorf("wrapped: %w", err)))
}

func TestNewServer(t *testing.T) {
	cause := errors.New("db down")
	err := NewServer(cause)

	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusInternalServerError, gerr.StatusCode())
	assert.Equal(t, "db down", err.Error())
	assert.Empty(t, ReasonOf(err))
}

func TestNewInvalidInput(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		kv         []string
		wantStatus int
		wantFields map[string]string
	}{
		{name: "wrapped", err: errors.New("bad"), wantStatus: http.StatusUnprocessableEntity},
		{name: "odd pairs", kv: []string{"otp"}, wantStatus: http.StatusBadRequest},
		{
			name:       "fields",
			kv:         []string{"otp", "otp is required"},
			wantStatus: http.StatusUnprocessableEntity,
			wantFields: map[string]string{"otp": "otp is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gerr *Error
			require.ErrorAs(t, NewInvalidInput(tt.err, tt.kv...), &gerr)
			assert.Equal(t, tt.wantStatus, gerr.StatusCode())
			assert.Equal(t, tt.wantFields, gerr.Fields())
		})
	}
}

func TestNewInvalidFormat(t *testing.T) {
	var gerr *Error
	require.ErrorAs(t, NewInvalidFormat("Request body must contain a single JSON object"), &gerr)
	assert.Equal(t, "Request body must contain a single JSON object", gerr.Msg())
	assert.Equal(t, http.StatusBadRequest, gerr.StatusCode())
}

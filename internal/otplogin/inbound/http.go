package inbound

import (
	"context"
	"net/http"

	"github.com/shandysiswandi/otpgate/internal/otplogin/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
)

type uc interface {
	OTPGenerate(ctx context.Context, in usecase.OTPGenerateInput) (*usecase.OTPGenerateOutput, error)
	OTPVerify(ctx context.Context, in usecase.OTPVerifyInput) (*usecase.OTPVerifyOutput, error)
	TokenRefresh(ctx context.Context, in usecase.TokenRefreshInput) (*usecase.TokenRefreshOutput, error)
	Me(ctx context.Context) (*usecase.MeOutput, error)
}

const (
	pathOTPGenerate = "/api/v1/auth/login/otp/generate"
	pathOTPVerify   = "/api/v1/auth/login/otp/verify"
	pathRefresh     = "/api/v1/auth/login/refresh"
	pathMe          = "/api/v1/auth/me"
)

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	// Login (public)
	r.Public(http.MethodPost, pathOTPGenerate)
	r.Public(http.MethodPost, pathOTPVerify)
	r.Public(http.MethodPost, pathRefresh)
	r.POST(pathOTPGenerate, end.OTPGenerate)
	r.POST(pathOTPVerify, end.OTPVerify)
	r.POST(pathRefresh, end.TokenRefresh)

	// need authenticated
	r.GET(pathMe, end.Me)
}

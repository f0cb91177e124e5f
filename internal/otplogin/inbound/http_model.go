package inbound

import "net/http"

type OTPGenerateRequest struct {
	Username string `json:"username"`
}

type OTPGenerateResponse struct {
	RequestID string `json:"request_id"`
}

func (OTPGenerateResponse) StatusCode() int { return http.StatusCreated }

func (OTPGenerateResponse) Message() string {
	return "OTP has been sent"
}

type OTPVerifyRequest struct {
	RequestID string `json:"request_id"`
	OTP       string `json:"otp"`
}

type OTPVerifyResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func (OTPVerifyResponse) StatusCode() int { return http.StatusCreated }

type TokenRefreshRequest struct {
	Refresh string `json:"refresh"`
}

type TokenRefreshResponse struct {
	Access string `json:"access"`
}

type MeResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

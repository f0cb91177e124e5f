package inbound

import (
	"github.com/shandysiswandi/otpgate/internal/otplogin/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
)

// HTTPEndpoint exposes the two step OTP login over HTTP.
type HTTPEndpoint struct {
	uc uc
}

// OTPGenerate starts a login for a username and sends the code out of band.
// @Summary Request a login code
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body OTPGenerateRequest true "Generate payload"
// @Success 201 {object} router.successResponse{data=OTPGenerateResponse}
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "No active account found"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Router /api/v1/auth/login/otp/generate [post]
func (h *HTTPEndpoint) OTPGenerate(r *router.Request) (any, error) {
	var req OTPGenerateRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.OTPGenerate(r.Context(), usecase.OTPGenerateInput{
		Username: req.Username,
	})
	if err != nil {
		return nil, err
	}

	return OTPGenerateResponse{RequestID: resp.RequestID}, nil
}

// OTPVerify exchanges a request id and code for a token pair.
// @Summary Verify a login code
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body OTPVerifyRequest true "Verify payload"
// @Success 201 {object} router.successResponse{data=OTPVerifyResponse}
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 422 {object} router.errorResponse "Invalid OTP, unknown request or validation error"
// @Router /api/v1/auth/login/otp/verify [post]
func (h *HTTPEndpoint) OTPVerify(r *router.Request) (any, error) {
	var req OTPVerifyRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.OTPVerify(r.Context(), usecase.OTPVerifyInput{
		RequestID: req.RequestID,
		OTP:       req.OTP,
	})
	if err != nil {
		return nil, err
	}

	return OTPVerifyResponse{Access: resp.Access, Refresh: resp.Refresh}, nil
}

// TokenRefresh issues a new access token from a refresh token.
// @Summary Refresh access token
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body TokenRefreshRequest true "Refresh payload"
// @Success 200 {object} router.successResponse{data=TokenRefreshResponse}
// @Failure 401 {object} router.errorResponse "Refresh token not valid"
// @Router /api/v1/auth/login/refresh [post]
func (h *HTTPEndpoint) TokenRefresh(r *router.Request) (any, error) {
	var req TokenRefreshRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.TokenRefresh(r.Context(), usecase.TokenRefreshInput{
		Refresh: req.Refresh,
	})
	if err != nil {
		return nil, err
	}

	return TokenRefreshResponse{Access: resp.Access}, nil
}

// Me returns the authenticated account.
// @Summary Current account
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} router.successResponse{data=MeResponse}
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Router /api/v1/auth/me [get]
func (h *HTTPEndpoint) Me(r *router.Request) (any, error) {
	resp, err := h.uc.Me(r.Context())
	if err != nil {
		return nil, err
	}

	return MeResponse{ID: resp.ID, Username: resp.Username, Email: resp.Email}, nil
}

package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"food-admin/internal/repository"
	"food-admin/internal/service"
)

// Mensajes fijos por categoria. Los errores internos solo van al log.
const (
	msgMissingDetails     = "Missing details"
	msgAdminExists        = "Admin already exists"
	msgEmailInUse         = "Email already in use"
	msgInvalidCredentials = "Invalid email or password"
	msgAdminNotFound      = "Admin not found"
	msgInvalidOTP         = "Invalid OTP"
	msgOTPExpired         = "OTP expired"
	msgTooManyRequests    = "Too many requests"
	msgInternal           = "Internal server error"
)

// AdminHandler mantiene dependencias para los endpoints de la cuenta admin.
type AdminHandler struct {
	logger  *zap.Logger
	authSvc *service.AuthService
	jwtSvc  *service.JWTService
	cookies CookieConfig
}

// NewAdminHandler crea una instancia de AdminHandler con dependencias necesarias.
func NewAdminHandler(logger *zap.Logger, authSvc *service.AuthService, jwtSvc *service.JWTService, cookies CookieConfig) *AdminHandler {
	if cookies.TTL <= 0 {
		cookies.TTL = jwtSvc.TTL()
	}
	return &AdminHandler{
		logger:  logger,
		authSvc: authSvc,
		jwtSvc:  jwtSvc,
		cookies: cookies,
	}
}

// Register maneja POST /api/admin/register.
func (h *AdminHandler) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		respond(c, http.StatusBadRequest, false, msgMissingDetails)
		return
	}

	account, err := h.authSvc.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			respond(c, http.StatusBadRequest, false, msgMissingDetails)
		case errors.Is(err, repository.ErrAdminExists):
			respond(c, http.StatusBadRequest, false, msgAdminExists)
		case errors.Is(err, repository.ErrEmailInUse):
			respond(c, http.StatusBadRequest, false, msgEmailInUse)
		default:
			h.internalError(c, "register failed", err)
		}
		return
	}

	if !h.startSession(c, account.ID) {
		return
	}
	respond(c, http.StatusCreated, true, "Admin registered successfully")
}

// Login maneja POST /api/admin/login.
func (h *AdminHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		respond(c, http.StatusBadRequest, false, msgMissingDetails)
		return
	}

	account, err := h.authSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			respond(c, http.StatusBadRequest, false, msgMissingDetails)
		case errors.Is(err, service.ErrInvalidCredentials):
			respond(c, http.StatusUnauthorized, false, msgInvalidCredentials)
		default:
			h.internalError(c, "login failed", err)
		}
		return
	}

	if !h.startSession(c, account.ID) {
		return
	}
	respond(c, http.StatusOK, true, "Login successful")
}

// Logout maneja POST /api/admin/logout. Siempre limpia la cookie, haya o no
// sesion.
func (h *AdminHandler) Logout(c *gin.Context) {
	if token := sessionToken(c); token != "" {
		if err := h.jwtSvc.Revoke(c.Request.Context(), token); err != nil {
			h.logger.Warn("revoke session failed", zap.Error(err))
		}
	}
	clearSessionCookie(c, h.cookies)
	respond(c, http.StatusOK, true, "Logged out")
}

// RequestResetOTP maneja POST /api/admin/send-reset-otp.
func (h *AdminHandler) RequestResetOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid reset otp request", zap.Error(err))
		respond(c, http.StatusBadRequest, false, msgMissingDetails)
		return
	}

	_, err := h.authSvc.RequestReset(c.Request.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			respond(c, http.StatusBadRequest, false, msgMissingDetails)
		case errors.Is(err, repository.ErrNotFound):
			respond(c, http.StatusNotFound, false, msgAdminNotFound)
		case errors.Is(err, service.ErrRateLimited):
			respond(c, http.StatusTooManyRequests, false, msgTooManyRequests)
		default:
			h.internalError(c, "request reset otp failed", err)
		}
		return
	}

	respond(c, http.StatusOK, true, "OTP sent to your email")
}

// ResetPassword maneja POST /api/admin/reset-password.
func (h *AdminHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required"`
		OTP         string `json:"otp" binding:"required"`
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid reset password request", zap.Error(err))
		respond(c, http.StatusBadRequest, false, msgMissingDetails)
		return
	}

	err := h.authSvc.CompleteReset(c.Request.Context(), service.CompleteResetInput{
		Email:       req.Email,
		OTP:         req.OTP,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			respond(c, http.StatusBadRequest, false, msgMissingDetails)
		case errors.Is(err, repository.ErrNotFound):
			respond(c, http.StatusNotFound, false, msgAdminNotFound)
		case errors.Is(err, service.ErrOTPInvalid):
			respond(c, http.StatusBadRequest, false, msgInvalidOTP)
		case errors.Is(err, service.ErrOTPExpired):
			respond(c, http.StatusBadRequest, false, msgOTPExpired)
		case errors.Is(err, service.ErrRateLimited):
			respond(c, http.StatusTooManyRequests, false, msgTooManyRequests)
		default:
			h.internalError(c, "reset password failed", err)
		}
		return
	}

	respond(c, http.StatusOK, true, "Password has been reset successfully")
}

// Dashboard maneja GET /api/admin/dashboard.
func (h *AdminHandler) Dashboard(c *gin.Context) {
	respond(c, http.StatusOK, true, "You are in the dashboard")
}

// Me maneja GET /api/admin/dashboard/me.
func (h *AdminHandler) Me(c *gin.Context) {
	accountID, ok := GetAccountID(c)
	if !ok {
		abortUnauthorized(c)
		return
	}
	account, err := h.authSvc.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		// Una sesion valida de una cuenta que ya no existe se trata como ausente.
		if errors.Is(err, repository.ErrNotFound) {
			abortUnauthorized(c)
			return
		}
		h.internalError(c, "load account failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"admin": gin.H{
			"id":    account.ID,
			"email": account.Email,
			"name":  account.Name,
			"role":  account.Role,
		},
	})
}

func (h *AdminHandler) startSession(c *gin.Context, accountID string) bool {
	token, err := h.jwtSvc.Issue(accountID)
	if err != nil {
		h.internalError(c, "issue session failed", err)
		return false
	}
	setSessionCookie(c, h.cookies, token.Value)
	return true
}

func (h *AdminHandler) internalError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.Error(err))
	respond(c, http.StatusInternalServerError, false, msgInternal)
}

func respond(c *gin.Context, status int, success bool, message string) {
	c.JSON(status, gin.H{"success": success, "message": message})
}

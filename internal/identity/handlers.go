package identity

import (
	"net/http"

	"kyri56xcaesar/nexushub/internal/authmw"
	"kyri56xcaesar/nexushub/internal/httpx"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the unauthenticated auth endpoints on public and
// the account endpoints on protected.
func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	auth := public.Group("/auth")
	{
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
		auth.POST("/federated/login", h.federatedLogin)
		auth.GET("/verify-email/:token", h.verifyEmail)
		auth.POST("/forgot-password", h.forgotPassword)
		auth.POST("/reset-password/:token", h.resetPassword)
	}

	protected.GET("/auth/me", h.me)
	users := protected.Group("/users")
	{
		users.PUT("/me", h.updateProfile)
		users.PUT("/me/password", h.changePassword)
		users.DELETE("/me", h.deleteAccount)
		users.GET("/:id", h.publicProfile)
	}
}

func (h *Handler) register(c *gin.Context) {
	var req RegisterRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	user, token, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusCreated, gin.H{"token": token, "user": user})
}

func (h *Handler) login(c *gin.Context) {
	var req LoginRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	user, token, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"token": token, "user": user})
}

func (h *Handler) federatedLogin(c *gin.Context) {
	var req LoginRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	user, token, err := h.svc.FederatedLogin(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"token": token, "user": user})
}

func (h *Handler) verifyEmail(c *gin.Context) {
	if err := h.svc.VerifyEmail(c.Request.Context(), c.Param("token")); err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"message": "email verified"})
}

func (h *Handler) forgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	if err := h.svc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"message": "if the address is registered, a reset link has been sent"})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	if err := h.svc.ResetPassword(c.Request.Context(), c.Param("token"), req.Password); err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"message": "password updated"})
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.svc.Profile(c.Request.Context(), authmw.ActorID(c))
	if err != nil {
		httpx.Error(c, err)
		return
	}

	session := gin.H{"provider": "local"}
	if id := authmw.IdentityOf(c); id != nil && id.Provider != "" {
		session = gin.H{"provider": id.Provider, "subject": id.Subject, "emailVerified": id.EmailVerified}
	}
	httpx.OK(c, http.StatusOK, gin.H{"user": user, "session": session})
}

func (h *Handler) publicProfile(c *gin.Context) {
	profile, err := h.svc.PublicProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"user": profile})
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	user, err := h.svc.UpdateProfile(c.Request.Context(), authmw.ActorID(c), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"user": user})
}

func (h *Handler) changePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), authmw.ActorID(c), req); err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"message": "password changed"})
}

func (h *Handler) deleteAccount(c *gin.Context) {
	var req DeleteAccountRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	if err := h.svc.DeleteAccount(c.Request.Context(), authmw.ActorID(c), req.Password); err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, gin.H{"message": "account deleted"})
}

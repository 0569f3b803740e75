// README: Sign-in, sign-up and sign-out handlers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridesync/internal/modules/account"
	"ridesync/internal/modules/session"
)

type AccountService interface {
	Login(ctx context.Context, cmd account.LoginCommand) (session.User, error)
	Register(ctx context.Context, cmd account.RegisterCommand) (session.User, error)
	Logout(ctx context.Context) error
	Current(ctx context.Context) (session.User, error)
}

// RoleSession is the running coordinator's view of sign-in and sign-out.
// Reset drops in-memory state; Restore rebuilds it from the stored record.
type RoleSession interface {
	Reset(ctx context.Context) error
	Restore(ctx context.Context) error
}

type AccountHandler struct {
	account AccountService
	role    RoleSession
}

func NewAccountHandler(svc AccountService, role RoleSession) *AccountHandler {
	return &AccountHandler{account: svc, role: role}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerReq struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	CountryCode string `json:"country_code"`
	PhoneNumber string `json:"phone_number"`
}

func (h *AccountHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	ctx := c.Request.Context()
	u, err := h.account.Login(ctx, account.LoginCommand{Email: req.Email, Password: req.Password})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	// The sign-in itself succeeded; a failed restore only shows in the log.
	if h.role != nil {
		if err := h.role.Restore(ctx); err != nil {
			_ = c.Error(err)
		}
	}
	writeJSON(c, http.StatusOK, map[string]any{"user": u})
}

func (h *AccountHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	u, err := h.account.Register(c.Request.Context(), account.RegisterCommand{
		Email:       req.Email,
		Password:    req.Password,
		Name:        req.Name,
		CountryCode: req.CountryCode,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"user": u})
}

// Logout tears down live state before the stored session is erased.
func (h *AccountHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	if h.role != nil {
		if err := h.role.Reset(ctx); err != nil {
			writeServiceError(c, err)
			return
		}
	}
	if err := h.account.Logout(ctx); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": "signed_out"})
}

func (h *AccountHandler) Me(c *gin.Context) {
	u, err := h.account.Current(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"user": u})
}

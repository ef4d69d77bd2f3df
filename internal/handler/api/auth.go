package api

import (
	"net/http"

	"github.com/dukerupert/ledgerly/internal/domain"
	"github.com/dukerupert/ledgerly/internal/handler"
)

// AuthHandler serves registration, login and token refresh.
type AuthHandler struct {
	accounts domain.AccountService
}

func NewAuthHandler(accounts domain.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type authResponse struct {
	User   *domain.Account   `json:"user"`
	Tokens *domain.TokenPair `json:"tokens"`
}

var (
	registerFields = domain.NewFieldSet("email", "password", "first_name", "last_name")
	loginFields    = domain.NewFieldSet("email", "password")
	refreshFields  = domain.NewFieldSet("refresh_token")
)

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, "auth.register", registerFields, nil, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	acct, pair, err := h.accounts.Register(r.Context(), domain.RegisterParams{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusCreated, authResponse{User: acct, Tokens: pair})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, "auth.login", loginFields, nil, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	acct, pair, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, authResponse{User: acct, Tokens: pair})
}

// Refresh handles POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(r, "auth.refresh", refreshFields, nil, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	pair, err := h.accounts.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, pair)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ownerID, _, ok := withOwner(w, r, false)
	if !ok {
		return
	}
	acct, err := h.accounts.GetAccount(r.Context(), ownerID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, acct)
}

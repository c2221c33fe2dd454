package handler

import (
	"context"
	"net/http"

	"github.com/iho/badbank/internal/adapter/http/dto"
	"github.com/iho/badbank/internal/domain"
	"github.com/iho/badbank/internal/usecase"
)

// UserService covers signup, login and profile lookup.
type UserService interface {
	Signup(ctx context.Context, input usecase.SignupInput) (*domain.User, error)
	Login(ctx context.Context, input usecase.LoginInput) (*usecase.LoginResult, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	users UserService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

// Signup registers a user with a zero-balance account.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Signup(r.Context(), req.ToUseCaseInput())
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.SignupResponse{
		Message: "User created successfully",
		UserID:  user.ID,
	})
}

// Login exchanges credentials for a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.users.Login(r.Context(), req.ToUseCaseInput())
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LoginResponse{
		Token:    result.Token,
		Username: result.User.Username,
		UserID:   result.User.ID,
	})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.UserFromDomain(user))
}

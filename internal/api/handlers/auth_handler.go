package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/markdave123-py/Scanlens/internal/core"
	"github.com/markdave123-py/Scanlens/internal/services"
)

type AuthHandler struct {
	users *services.UserService
}

func NewAuthHandler(users *services.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

// Signup reads the email and password form fields.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	_, err := h.users.Signup(r.Context(), r.FormValue("email"), r.FormValue("password"))

	var ve *core.ValidationError
	switch {
	case err == nil:
		respondMessage(w, "User created successfully", http.StatusOK)
	case errors.Is(err, core.ErrEmailTaken):
		respondError(w, core.ErrEmailTaken.Error(), http.StatusBadRequest)
	case errors.As(err, &ve):
		respondError(w, ve.Error(), http.StatusBadRequest)
	default:
		log.Printf("AuthHandler: signup failed: %v", err)
		respondError(w, "could not create user", http.StatusInternalServerError)
	}
}

// Login answers the same message for an unknown email and a wrong password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	token, err := h.users.Login(r.Context(), r.FormValue("email"), r.FormValue("password"))

	switch {
	case err == nil:
		respondJSON(w, map[string]string{"message": "Login successful", "token": token}, http.StatusOK)
	case errors.Is(err, core.ErrInvalidCredentials):
		respondError(w, core.ErrInvalidCredentials.Error(), http.StatusBadRequest)
	default:
		log.Printf("AuthHandler: login failed: %v", err)
		respondError(w, "could not log in", http.StatusInternalServerError)
	}
}

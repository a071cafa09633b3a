package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/tgmstudios/mrm360-sub002/internal/logger"
	models "github.com/tgmstudios/mrm360-sub002/internal/models/users"
	services "github.com/tgmstudios/mrm360-sub002/internal/service/auth"
)

// AuthHandler serves signup and login.
type AuthHandler struct {
	Service *services.AuthService
	Log     *logger.Logger
}

// NewAuthHandler initializes a new auth handler
func NewAuthHandler(service *services.AuthService) *AuthHandler {
	return &AuthHandler{Service: service, Log: logger.NewLogger("auth")}
}

// Signup registers a user and returns a fresh token.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var user models.User
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	userID, err := h.Service.Signup(user)
	if err != nil {
		h.Log.Error("Signup failed", "email", user.Email, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	user.UserID = userID
	user.Password = ""
	token, err := h.Service.GenerateJWT(user.Email, user.UserID)
	if err != nil {
		h.Log.Error("Token generation failed", "email", user.Email, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{"user_details": user, "token": token})
}

// Login authenticates a user and returns a token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var credentials models.User
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	token, userDetails, err := h.Service.Login(credentials.Email, credentials.Password)
	if err != nil {
		h.Log.Warn("Login rejected", "email", credentials.Email, "error", err)
		respondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"user_details": userDetails, "token": token})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

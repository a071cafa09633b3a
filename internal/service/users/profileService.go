package profileService

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tgmstudios/mrm360-sub002/internal/middleware"
	models "github.com/tgmstudios/mrm360-sub002/internal/models/users"
)

type ProfileService struct {
	DB *sql.DB
}

func NewProfileService(db *sql.DB) *ProfileService {
	return &ProfileService{DB: db}
}

func (profile *ProfileService) GetUserProfile(w http.ResponseWriter, r *http.Request) {
	userDetails, ok := r.Context().Value(middleware.UserContextKey).(jwt.MapClaims)
	if !ok {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	var user models.User
	query := "SELECT user_id, email, contact_number, first_name, last_name FROM users WHERE user_id = ?"
	err := profile.DB.QueryRowContext(r.Context(), query, userDetails["user_id"]).Scan(
		&user.UserID, &user.Email, &user.ContactNumber, &user.FirstName, &user.LastName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	name := fmt.Sprintf("%s %s", user.FirstName, user.LastName)
	json.NewEncoder(w).Encode(map[string]interface{}{"code": "200", "message": "User details", "user_details": user, "name": name})
}

func (profile *ProfileService) UpdateUserProfile(w http.ResponseWriter, r *http.Request) {
	userDetails, ok := r.Context().Value(middleware.UserContextKey).(jwt.MapClaims)
	if !ok {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	var user models.User
	err := json.NewDecoder(r.Body).Decode(&user)
	if err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	query := "UPDATE users SET contact_number = ?, first_name = ?, last_name = ? WHERE user_id = ?"
	_, err = profile.DB.ExecContext(r.Context(), query, user.ContactNumber, user.FirstName, user.LastName, userDetails["user_id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{"code": "200", "message": "User details updated successfully"})
}

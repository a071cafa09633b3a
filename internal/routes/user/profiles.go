package userRoutes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tgmstudios/mrm360-sub002/internal/middleware"
	profileService "github.com/tgmstudios/mrm360-sub002/internal/service/users"
)

func UserProfileRoutes(router *mux.Router, profiles *profileService.ProfileService, jwtSecret string) {
	// Protected routes requiring authentication
	protectedRouter := router.PathPrefix("/user").Subrouter()
	protectedRouter.Use(middleware.AuthMiddleware(jwtSecret), middleware.ResponseWrapperMiddleware)

	// User profile routes
	protectedRouter.HandleFunc("/profile", profiles.GetUserProfile).Methods(http.MethodGet, http.MethodOptions)
	protectedRouter.HandleFunc("/profile", profiles.UpdateUserProfile).Methods(http.MethodPut, http.MethodOptions)
}

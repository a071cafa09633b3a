package authRoute

import (
	"github.com/gorilla/mux"

	"github.com/tgmstudios/mrm360-sub002/internal/handlers"
	"github.com/tgmstudios/mrm360-sub002/internal/middleware"
)

func RegisterAuthRoutes(router *mux.Router, authHandler *handlers.AuthHandler) {
	// Public routes without auth middleware
	publicRouter := router.PathPrefix("/auth").Subrouter()
	publicRouter.Use(middleware.ResponseWrapperMiddleware)
	publicRouter.HandleFunc("/signup", authHandler.Signup).Methods("POST")
	publicRouter.HandleFunc("/login", authHandler.Login).Methods("POST")
}

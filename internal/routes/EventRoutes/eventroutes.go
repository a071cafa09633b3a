package eventroutes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tgmstudios/mrm360-sub002/internal/middleware"
	eventService "github.com/tgmstudios/mrm360-sub002/internal/service/events"
)

func EventRoutes(router *mux.Router, events *eventService.EventService, jwtSecret string) {
	eventRouter := router.PathPrefix("/event").Subrouter()
	eventRouter.Use(middleware.AuthMiddleware(jwtSecret), middleware.ResponseWrapperMiddleware)
	eventRouter.HandleFunc("/create", events.CreateEvent).Methods(http.MethodPost)
	eventRouter.HandleFunc("/{id}/attendance", events.SetAttendance).Methods(http.MethodPut)
	eventRouter.HandleFunc("/{id}/sync", events.SyncTeams).Methods(http.MethodPost)
}

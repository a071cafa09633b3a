package teamroutes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tgmstudios/mrm360-sub002/internal/middleware"
	teamService "github.com/tgmstudios/mrm360-sub002/internal/service/team"
)

func TeamRoutes(router *mux.Router, teams *teamService.TeamService, jwtSecret string) {
	teamRouter := router.PathPrefix("/team").Subrouter()
	teamRouter.Use(middleware.AuthMiddleware(jwtSecret), middleware.ResponseWrapperMiddleware)
	teamRouter.HandleFunc("/create", teams.CreateTeam).Methods(http.MethodPost)
	teamRouter.HandleFunc("/all", teams.GetUserTeams).Methods(http.MethodGet)
	teamRouter.HandleFunc("/get/{id}", teams.GetTeam).Methods(http.MethodGet)
	teamRouter.HandleFunc("/update/{id}", teams.UpdateTeam).Methods(http.MethodPut)
	teamRouter.HandleFunc("/delete/{id}", teams.DeleteTeam).Methods(http.MethodDelete)
}

package routes

import (
	"github.com/gorilla/mux"

	"github.com/tgmstudios/mrm360-sub002/internal/handlers"
	authRoute "github.com/tgmstudios/mrm360-sub002/internal/routes/Auth"
	eventroutes "github.com/tgmstudios/mrm360-sub002/internal/routes/EventRoutes"
	taskroutes "github.com/tgmstudios/mrm360-sub002/internal/routes/TaskRoutes"
	teamroutes "github.com/tgmstudios/mrm360-sub002/internal/routes/TeamRoutes"
	userRoutes "github.com/tgmstudios/mrm360-sub002/internal/routes/user"
	eventService "github.com/tgmstudios/mrm360-sub002/internal/service/events"
	taskService "github.com/tgmstudios/mrm360-sub002/internal/service/taskstatus"
	teamService "github.com/tgmstudios/mrm360-sub002/internal/service/team"
	profileService "github.com/tgmstudios/mrm360-sub002/internal/service/users"
)

// Deps carries the constructed services into route registration.
type Deps struct {
	JWTSecret string
	Auth      *handlers.AuthHandler
	Profiles  *profileService.ProfileService
	Teams     *teamService.TeamService
	Events    *eventService.EventService
	Tasks     *taskService.TaskService
}

// RegisterAllRoutes wires every route module onto one router.
func RegisterAllRoutes(deps *Deps) *mux.Router {
	router := mux.NewRouter()

	authRoute.RegisterAuthRoutes(router, deps.Auth)
	userRoutes.UserProfileRoutes(router, deps.Profiles, deps.JWTSecret)
	teamroutes.TeamRoutes(router, deps.Teams, deps.JWTSecret)
	eventroutes.EventRoutes(router, deps.Events, deps.JWTSecret)
	taskroutes.TaskRoutes(router, deps.Tasks, deps.JWTSecret)

	return router
}

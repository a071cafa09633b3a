package taskroutes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tgmstudios/mrm360-sub002/internal/middleware"
	taskService "github.com/tgmstudios/mrm360-sub002/internal/service/taskstatus"
)

func TaskRoutes(router *mux.Router, taskSvc *taskService.TaskService, jwtSecret string) {
	taskRouter := router.PathPrefix("/tasks").Subrouter()
	taskRouter.Use(middleware.AuthMiddleware(jwtSecret), middleware.ResponseWrapperMiddleware)
	taskRouter.HandleFunc("/{id}", taskSvc.GetTask).Methods(http.MethodGet)
}

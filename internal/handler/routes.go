package handler

import (
	"net/http"

	"productive-cloud/internal/middleware"

	"github.com/gorilla/mux"
)

type Handlers struct {
	Auth *AuthHandler
	User *UserHandler
	Data *DataHandler
}

// RegisterRoutes mounts the REST API on api, which is expected to already
// carry the /api prefix.
func RegisterRoutes(api *mux.Router, h Handlers, jwtSecret string) {
	api.HandleFunc("/health", Health).Methods(http.MethodGet)

	api.HandleFunc("/auth/register", h.Auth.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.Auth.Login).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.AuthMiddleware(jwtSecret))

	protected.HandleFunc("/auth/profile", h.User.Profile).Methods(http.MethodGet)

	protected.HandleFunc("/data", h.Data.GetAll).Methods(http.MethodGet)
	protected.HandleFunc("/data/sync", h.Data.Sync).Methods(http.MethodPost)
	protected.HandleFunc("/data/save", h.Data.Save).Methods(http.MethodPost)
	protected.HandleFunc("/data/{dataType}", h.Data.Get).Methods(http.MethodGet)
	protected.HandleFunc("/data/{dataType}", h.Data.Delete).Methods(http.MethodDelete)
}

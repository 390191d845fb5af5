package handler

import (
	"net/http"

	"productive-cloud/pkg/response"
)

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func Health(w http.ResponseWriter, r *http.Request) {
	response.Success(w, healthResponse{
		Status:  "OK",
		Message: "Productive Cloud Backend is running!",
	})
}

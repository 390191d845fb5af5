package handler

import (
	"errors"
	"net/http"

	"productive-cloud/internal/domain"
	"productive-cloud/internal/middleware"
	"productive-cloud/internal/service"
	"productive-cloud/pkg/response"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

type profileResponse struct {
	User *domain.User `json:"user"`
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Access token required")
		return
	}

	user, err := h.userService.GetByID(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			// The token outlived its account.
			response.Unauthorized(w, "Invalid token")
			return
		}
		response.InternalError(w, "Internal server error")
		return
	}

	response.Success(w, profileResponse{User: user})
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"productive-cloud/internal/domain"
	"productive-cloud/internal/middleware"
	"productive-cloud/internal/service"
	"productive-cloud/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type DataHandler struct {
	datasetService *service.DatasetService
	validator      *validator.Validate
	logger         *zap.Logger
}

func NewDataHandler(datasetService *service.DatasetService, logger *zap.Logger) *DataHandler {
	return &DataHandler{
		datasetService: datasetService,
		validator:      validator.New(),
		logger:         logger,
	}
}

type emptyDataResponse struct {
	Data    *json.RawMessage `json:"data"`
	Message string           `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *DataHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req domain.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}

	resp, err := h.datasetService.Reconcile(middleware.GetUserID(r), middleware.GetDeviceID(r), &req)
	if err != nil {
		h.fail(w, "sync", err)
		return
	}

	response.Success(w, resp)
}

func (h *DataHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	resp, err := h.datasetService.GetAll(middleware.GetUserID(r))
	if err != nil {
		h.fail(w, "get all data", err)
		return
	}

	response.Success(w, resp)
}

func (h *DataHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req domain.SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}

	dataset, err := h.datasetService.Save(middleware.GetUserID(r), middleware.GetDeviceID(r), &req)
	if err != nil {
		h.fail(w, "save data", err)
		return
	}

	response.Success(w, domain.SaveResponse{
		Message:   "Data saved successfully!",
		Data:      dataset.Data,
		Timestamp: dataset.LastModified,
		Version:   dataset.Version,
	})
}

func (h *DataHandler) Get(w http.ResponseWriter, r *http.Request) {
	dataType := domain.DataType(mux.Vars(r)["dataType"])

	dataset, err := h.datasetService.Get(middleware.GetUserID(r), dataType)
	if errors.Is(err, service.ErrDatasetNotFound) {
		response.Success(w, emptyDataResponse{Message: "No data found"})
		return
	}
	if err != nil {
		h.fail(w, "get data", err)
		return
	}

	response.Success(w, struct {
		Data         json.RawMessage `json:"data"`
		LastModified time.Time       `json:"lastModified"`
		Version      int64           `json:"version"`
	}{dataset.Data, dataset.LastModified, dataset.Version})
}

func (h *DataHandler) Delete(w http.ResponseWriter, r *http.Request) {
	dataType := domain.DataType(mux.Vars(r)["dataType"])

	if err := h.datasetService.Delete(middleware.GetUserID(r), middleware.GetDeviceID(r), dataType); err != nil {
		h.fail(w, "delete data", err)
		return
	}

	response.Success(w, messageResponse{Message: "Data deleted successfully!"})
}

func (h *DataHandler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidDataType):
		response.BadRequest(w, "Invalid data type")
	case errors.Is(err, service.ErrDatasetNotFound):
		response.NotFound(w, "Data not found")
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		response.InternalError(w, "Internal server error")
	}
}

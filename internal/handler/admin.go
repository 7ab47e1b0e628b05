package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mmeshcher/traintrack-system/internal/model"
	"github.com/mmeshcher/traintrack-system/internal/service"
)

type adminTrainingRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Duration    int              `json:"duration"`
	BasePoints  int              `json:"base_points"`
	Difficulty  model.Difficulty `json:"difficulty"`
	Published   bool             `json:"published"`
	Explain     []string         `json:"explain"`
}

func (req adminTrainingRequest) toInput() service.TrainingInput {
	return service.TrainingInput{
		Name:        req.Name,
		Description: req.Description,
		Duration:    req.Duration,
		BasePoints:  req.BasePoints,
		Difficulty:  req.Difficulty,
		Published:   req.Published,
		Explain:     req.Explain,
	}
}

type adminTrainingResponse struct {
	trainingResponse
	FormattedDuration    string `json:"formatted_duration"`
	TrainingRecordsCount int    `json:"training_records_count"`
	CreatedAt            string `json:"created_at"`
	UpdatedAt            string `json:"updated_at"`
}

func newAdminTrainingResponse(t service.AdminTraining) adminTrainingResponse {
	return adminTrainingResponse{
		trainingResponse:     newTrainingResponse(t.Training),
		FormattedDuration:    t.FormattedDuration(),
		TrainingRecordsCount: t.RecordsCount,
		CreatedAt:            t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            t.UpdatedAt.Format(time.RFC3339),
	}
}

// AdminListTrainings возвращает весь каталог тренировок для админки.
func (h *Handler) AdminListTrainings(w http.ResponseWriter, r *http.Request) {
	trainings, err := h.service.ListAdminTrainings(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "admin list trainings error")
		return
	}

	resp := make([]adminTrainingResponse, 0, len(trainings))
	for _, t := range trainings {
		resp = append(resp, newAdminTrainingResponse(t))
	}

	writeJSON(w, http.StatusOK, resp)
}

// AdminGetTraining возвращает тренировку для админки, включая неопубликованные.
func (h *Handler) AdminGetTraining(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "Training not found")
		return
	}

	training, err := h.service.GetAdminTraining(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "admin get training error")
		return
	}

	writeJSON(w, http.StatusOK, newAdminTrainingResponse(*training))
}

// AdminCreateTraining добавляет тренировку в каталог.
func (h *Handler) AdminCreateTraining(w http.ResponseWriter, r *http.Request) {
	var req adminTrainingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	training, err := h.service.CreateTraining(r.Context(), req.toInput())
	if err != nil {
		h.writeServiceError(w, err, "admin create training error")
		return
	}

	writeJSON(w, http.StatusCreated, newAdminTrainingResponse(*training))
}

// AdminUpdateTraining изменяет тренировку каталога.
func (h *Handler) AdminUpdateTraining(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "Training not found")
		return
	}

	var req adminTrainingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	training, err := h.service.UpdateTraining(r.Context(), id, req.toInput())
	if err != nil {
		h.writeServiceError(w, err, "admin update training error")
		return
	}

	writeJSON(w, http.StatusOK, newAdminTrainingResponse(*training))
}

// AdminDeleteTraining удаляет тренировку каталога.
func (h *Handler) AdminDeleteTraining(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "Training not found")
		return
	}

	if err := h.service.DeleteTraining(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "admin delete training error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Training deleted"})
}

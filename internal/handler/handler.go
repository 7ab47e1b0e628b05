// Package handler содержит HTTP-обработчики API сервиса учёта тренировок.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/traintrack-system/internal/middleware"
	"github.com/mmeshcher/traintrack-system/internal/model"
	"github.com/mmeshcher/traintrack-system/internal/repository"
	"github.com/mmeshcher/traintrack-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, email, username, password string) (*model.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)

	ListTrainings(ctx context.Context) ([]model.Training, error)
	GetPublishedTraining(ctx context.Context, id int64) (*model.Training, error)

	ListAdminTrainings(ctx context.Context) ([]service.AdminTraining, error)
	GetAdminTraining(ctx context.Context, id int64) (*service.AdminTraining, error)
	CreateTraining(ctx context.Context, in service.TrainingInput) (*service.AdminTraining, error)
	UpdateTraining(ctx context.Context, id int64, in service.TrainingInput) (*service.AdminTraining, error)
	DeleteTraining(ctx context.Context, id int64) error

	CreateRecord(ctx context.Context, userID int64, in service.RecordInput) (*model.TrainingRecord, error)
	ListRecords(ctx context.Context, userID int64, params service.ListRecordsParams) ([]model.TrainingRecord, *service.Pagination, error)
	GetRecord(ctx context.Context, userID, id int64) (*service.RecordDetails, error)
	UpdateRecord(ctx context.Context, userID, id int64, in service.RecordInput) (*model.TrainingRecord, error)
	DeleteRecord(ctx context.Context, userID, id int64) error

	DashboardStats(ctx context.Context, userID int64) (*model.DashboardStats, error)
	TrainingTrends(ctx context.Context, userID int64) (*model.TrainingTrends, error)
	PointsRanking(ctx context.Context, userID int64) (*model.Ranking, error)
	StreaksRanking(ctx context.Context, userID int64) (*model.Ranking, error)
}

// MetricsHandler отдаёт накопленные метрики и оборачивает обработчики
// счётчиками HTTP-запросов.
type MetricsHandler interface {
	Handler() http.Handler
	Middleware(next http.Handler) http.Handler
}

// Handler реализует HTTP-обработчики API сервиса учёта тренировок.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	metrics        MetricsHandler
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, m MetricsHandler) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		metrics:        m,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Заголовки уже отправлены, остаётся только закрыть соединение.
		return
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeValidationErrors(w http.ResponseWriter, msgs []string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string][]string{"errors": msgs})
}

// writeServiceError переводит ошибку бизнес-логики в HTTP-ответ.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, op string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationErrors(w, verr.Messages)
	case errors.Is(err, repository.ErrTrainingNotFound):
		writeError(w, http.StatusNotFound, "Training not found")
	case errors.Is(err, repository.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "Record not found")
	case errors.Is(err, repository.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	default:
		h.logger.Error(op, zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

type userResponse struct {
	ID       int64      `json:"id"`
	Email    string     `json:"email"`
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
}

func newUserResponse(u *model.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Username: u.Username, Role: u.Role}
}

type authResponse struct {
	User    userResponse `json:"user"`
	Token   string       `json:"token"`
	Message string       `json:"message"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Health сообщает о готовности сервиса.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SignUp обрабатывает регистрацию нового пользователя.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.RegisterUser(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			writeValidationErrors(w, []string{"email or username has already been taken"})
			return
		}
		h.writeServiceError(w, err, "sign up error")
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		User:    newUserResponse(user),
		Token:   h.authMiddleware.IssueToken(user.ID, user.Role),
		Message: "Signed up successfully",
	})
}

// SignIn выполняет аутентификацию пользователя и выдаёт токен.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.writeServiceError(w, err, "sign in error")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		User:    newUserResponse(user),
		Token:   h.authMiddleware.IssueToken(user.ID, user.Role),
		Message: "Signed in successfully",
	})
}

// SignOut завершает сессию. Токены не хранятся на сервере, клиенту
// достаточно забыть свой.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Signed out successfully"})
}

// Me возвращает профиль текущего пользователя.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "get current user error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]userResponse{"user": newUserResponse(user)})
}

type trainingResponse struct {
	ID                   int64            `json:"id"`
	Name                 string           `json:"name"`
	Description          string           `json:"description"`
	Duration             int              `json:"duration"`
	BasePoints           int              `json:"base_points"`
	Difficulty           model.Difficulty `json:"difficulty"`
	Published            bool             `json:"published"`
	Explain              []string         `json:"explain"`
	Points               int              `json:"points"`
	DifficultyMultiplier float64          `json:"difficulty_multiplier"`
}

func newTrainingResponse(t model.Training) trainingResponse {
	return trainingResponse{
		ID:                   t.ID,
		Name:                 t.Name,
		Description:          t.Description,
		Duration:             t.Duration,
		BasePoints:           t.BasePoints,
		Difficulty:           t.Difficulty,
		Published:            t.Published,
		Explain:              t.Explain,
		Points:               t.CalculatePoints(),
		DifficultyMultiplier: t.Difficulty.Multiplier(),
	}
}

// ListTrainings возвращает каталог тренировок, опубликованные первыми.
func (h *Handler) ListTrainings(w http.ResponseWriter, r *http.Request) {
	trainings, err := h.service.ListTrainings(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "list trainings error")
		return
	}

	resp := make([]trainingResponse, 0, len(trainings))
	for _, t := range trainings {
		resp = append(resp, newTrainingResponse(t))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetTraining возвращает опубликованную тренировку каталога.
func (h *Handler) GetTraining(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "Training not found")
		return
	}

	training, err := h.service.GetPublishedTraining(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "get training error")
		return
	}

	writeJSON(w, http.StatusOK, newTrainingResponse(*training))
}

type recordRequest struct {
	TrainingID  int64    `json:"training_id"`
	CompletedAt *string  `json:"completed_at"`
	Reps        *int     `json:"reps"`
	Duration    *int     `json:"duration"`
	Weight      *float64 `json:"weight"`
	Notes       *string  `json:"notes"`
}

func (req recordRequest) toInput() (service.RecordInput, error) {
	in := service.RecordInput{
		TrainingID: req.TrainingID,
		Reps:       req.Reps,
		Duration:   req.Duration,
		Weight:     req.Weight,
		Notes:      req.Notes,
	}

	if req.CompletedAt != nil {
		t, err := parseTimestamp(*req.CompletedAt)
		if err != nil {
			return in, err
		}
		in.CompletedAt = &t
	}

	return in, nil
}

type recordResponse struct {
	ID           int64    `json:"id"`
	TrainingID   int64    `json:"training_id"`
	TrainingName string   `json:"training_name"`
	Reps         *int     `json:"reps"`
	Duration     *int     `json:"duration"`
	Weight       *float64 `json:"weight"`
	Notes        *string  `json:"notes"`
	Points       int      `json:"points"`
	CompletedAt  string   `json:"completed_at"`
	CreatedAt    string   `json:"created_at"`
}

func newRecordResponse(rec model.TrainingRecord) recordResponse {
	return recordResponse{
		ID:           rec.ID,
		TrainingID:   rec.TrainingID,
		TrainingName: rec.TrainingName,
		Reps:         rec.Reps,
		Duration:     rec.Duration,
		Weight:       rec.Weight,
		Notes:        rec.Notes,
		Points:       rec.PointsEarned,
		CompletedAt:  rec.CompletedAt.Format(time.RFC3339),
		CreatedAt:    rec.CreatedAt.Format(time.RFC3339),
	}
}

type recordListResponse struct {
	Data []recordResponse    `json:"data"`
	Meta *service.Pagination `json:"meta"`
}

// ListRecords возвращает страницу записей текущего пользователя.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	params := service.ListRecordsParams{}
	q := r.URL.Query()
	if v := q.Get("training_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid training_id")
			return
		}
		params.TrainingID = id
	}
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date")
			return
		}
		params.StartDate = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date")
			return
		}
		params.EndDate = &t
	}
	params.Page, _ = strconv.Atoi(q.Get("page"))
	params.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	records, meta, err := h.service.ListRecords(r.Context(), userID, params)
	if err != nil {
		h.writeServiceError(w, err, "list records error")
		return
	}

	resp := recordListResponse{Data: make([]recordResponse, 0, len(records)), Meta: meta}
	for _, rec := range records {
		resp.Data = append(resp.Data, newRecordResponse(rec))
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateRecord сохраняет запись о выполненной тренировке.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid completed_at")
		return
	}

	rec, err := h.service.CreateRecord(r.Context(), userID, in)
	if err != nil {
		h.writeServiceError(w, err, "create record error")
		return
	}

	writeJSON(w, http.StatusCreated, newRecordResponse(*rec))
}

type recordDetailsResponse struct {
	recordResponse
	SameDayCount int `json:"same_day_count"`
}

// GetRecord возвращает запись текущего пользователя с деталями.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "Record not found")
		return
	}

	details, err := h.service.GetRecord(r.Context(), userID, id)
	if err != nil {
		h.writeServiceError(w, err, "get record error")
		return
	}

	writeJSON(w, http.StatusOK, recordDetailsResponse{
		recordResponse: newRecordResponse(details.TrainingRecord),
		SameDayCount:   details.SameDayCount,
	})
}

// UpdateRecord изменяет запись текущего пользователя.
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "Record not found")
		return
	}

	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid completed_at")
		return
	}

	rec, err := h.service.UpdateRecord(r.Context(), userID, id, in)
	if err != nil {
		h.writeServiceError(w, err, "update record error")
		return
	}

	writeJSON(w, http.StatusOK, newRecordResponse(*rec))
}

// DeleteRecord удаляет запись текущего пользователя.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "Record not found")
		return
	}

	if err := h.service.DeleteRecord(r.Context(), userID, id); err != nil {
		h.writeServiceError(w, err, "delete record error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DashboardStats возвращает агрегированную статистику текущего пользователя.
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	stats, err := h.service.DashboardStats(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "dashboard stats error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]*model.DashboardStats{"dashboard_stats": stats})
}

// TrainingTrends возвращает динамику тренировок текущего пользователя.
func (h *Handler) TrainingTrends(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	trends, err := h.service.TrainingTrends(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "training trends error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]*model.TrainingTrends{"training_trends": trends})
}

// PointsRanking возвращает рейтинг пользователей по баллам.
func (h *Handler) PointsRanking(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ranking, err := h.service.PointsRanking(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "points ranking error")
		return
	}

	writeJSON(w, http.StatusOK, ranking)
}

// StreaksRanking возвращает рейтинг пользователей по текущим сериям.
func (h *Handler) StreaksRanking(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ranking, err := h.service.StreaksRanking(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "streaks ranking error")
		return
	}

	writeJSON(w, http.StatusOK, ranking)
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// parseTimestamp принимает метку времени в RFC3339 или дату без времени.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/traintrack-system/internal/middleware"
	"github.com/mmeshcher/traintrack-system/internal/model"
	"github.com/mmeshcher/traintrack-system/internal/repository"
	"github.com/mmeshcher/traintrack-system/internal/service"
)

type stubService struct {
	registerUser *model.User
	registerErr  error

	authUser *model.User
	authErr  error

	user    *model.User
	userErr error

	trainings   []model.Training
	training    *model.Training
	trainingErr error

	adminTrainings   []service.AdminTraining
	adminTraining    *service.AdminTraining
	adminTrainingErr error

	record    *model.TrainingRecord
	recordErr error

	records    []model.TrainingRecord
	pagination *service.Pagination

	details    *service.RecordDetails
	detailsErr error

	dashboard *model.DashboardStats
	trends    *model.TrainingTrends
	ranking   *model.Ranking
}

func (s *stubService) RegisterUser(ctx context.Context, email, username, password string) (*model.User, error) {
	return s.registerUser, s.registerErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	return s.authUser, s.authErr
}

func (s *stubService) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) ListTrainings(ctx context.Context) ([]model.Training, error) {
	return s.trainings, nil
}

func (s *stubService) GetPublishedTraining(ctx context.Context, id int64) (*model.Training, error) {
	return s.training, s.trainingErr
}

func (s *stubService) ListAdminTrainings(ctx context.Context) ([]service.AdminTraining, error) {
	return s.adminTrainings, nil
}

func (s *stubService) GetAdminTraining(ctx context.Context, id int64) (*service.AdminTraining, error) {
	return s.adminTraining, s.adminTrainingErr
}

func (s *stubService) CreateTraining(ctx context.Context, in service.TrainingInput) (*service.AdminTraining, error) {
	return s.adminTraining, s.adminTrainingErr
}

func (s *stubService) UpdateTraining(ctx context.Context, id int64, in service.TrainingInput) (*service.AdminTraining, error) {
	return s.adminTraining, s.adminTrainingErr
}

func (s *stubService) DeleteTraining(ctx context.Context, id int64) error {
	return s.adminTrainingErr
}

func (s *stubService) CreateRecord(ctx context.Context, userID int64, in service.RecordInput) (*model.TrainingRecord, error) {
	return s.record, s.recordErr
}

func (s *stubService) ListRecords(ctx context.Context, userID int64, params service.ListRecordsParams) ([]model.TrainingRecord, *service.Pagination, error) {
	return s.records, s.pagination, nil
}

func (s *stubService) GetRecord(ctx context.Context, userID, id int64) (*service.RecordDetails, error) {
	return s.details, s.detailsErr
}

func (s *stubService) UpdateRecord(ctx context.Context, userID, id int64, in service.RecordInput) (*model.TrainingRecord, error) {
	return s.record, s.recordErr
}

func (s *stubService) DeleteRecord(ctx context.Context, userID, id int64) error {
	return s.recordErr
}

func (s *stubService) DashboardStats(ctx context.Context, userID int64) (*model.DashboardStats, error) {
	return s.dashboard, nil
}

func (s *stubService) TrainingTrends(ctx context.Context, userID int64) (*model.TrainingTrends, error) {
	return s.trends, nil
}

func (s *stubService) PointsRanking(ctx context.Context, userID int64) (*model.Ranking, error) {
	return s.ranking, nil
}

func (s *stubService) StreaksRanking(ctx context.Context, userID int64) (*model.Ranking, error) {
	return s.ranking, nil
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth, nil)
}

func TestSignUp_Success(t *testing.T) {
	svc := &stubService{
		registerUser: &model.User{ID: 42, Email: "a@b.c", Username: "runner", Role: model.RoleGeneral},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{
		Email:    "a@b.c",
		Username: "runner",
		Password: "secret1",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/sign_up", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.SignUp(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var resp authResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a token")
	}
	if resp.User.ID != 42 || resp.User.Username != "runner" {
		t.Fatalf("unexpected user: %+v", resp.User)
	}
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	svc := &stubService{registerErr: repository.ErrUserExists}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Email: "a@b.c", Username: "runner", Password: "secret1"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/sign_up", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.SignUp(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	svc := &stubService{authErr: service.ErrInvalidCredentials}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Email: "a@b.c", Password: "wrong"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/sign_in", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.SignIn(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestListTrainings_JSONResponse(t *testing.T) {
	svc := &stubService{
		trainings: []model.Training{
			{ID: 1, Name: "Plank", BasePoints: 10, Difficulty: model.DifficultyIntermediate, Published: true, Explain: []string{}},
		},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trainings", nil)
	rec := httptest.NewRecorder()

	h.ListTrainings(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var resp []map[string]any
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("expected 1 training, got %d", len(resp))
	}
	if resp[0]["difficulty"] != "intermediate" {
		t.Fatalf("difficulty = %v, want intermediate", resp[0]["difficulty"])
	}
	if resp[0]["points"] != float64(15) {
		t.Fatalf("points = %v, want 15", resp[0]["points"])
	}
}

func TestCreateRecord_Created(t *testing.T) {
	svc := &stubService{
		record: &model.TrainingRecord{
			ID: 1, TrainingID: 5, TrainingName: "Plank", PointsEarned: 15,
			CompletedAt: time.Now().UTC(), CreatedAt: time.Now().UTC(),
		},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(recordRequest{TrainingID: 5})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/training_records", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+h.authMiddleware.IssueToken(1, model.RoleGeneral))
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.CreateRecord))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
}

func TestCreateRecord_ValidationErrors(t *testing.T) {
	svc := &stubService{
		recordErr: &service.ValidationError{Messages: []string{"training must exist"}},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(recordRequest{TrainingID: 99})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/training_records", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+h.authMiddleware.IssueToken(1, model.RoleGeneral))
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.CreateRecord))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnprocessableEntity)
	}

	var resp map[string][]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp["errors"]) != 1 || resp["errors"][0] != "training must exist" {
		t.Fatalf("unexpected errors: %v", resp)
	}
}

func TestDeleteRecord_NoContent(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/training_records/3", nil)
	req.Header.Set("Authorization", "Bearer "+h.authMiddleware.IssueToken(1, model.RoleGeneral))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNoContent)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rec.Body.String())
	}
}

func TestGetTraining_NotFound(t *testing.T) {
	svc := &stubService{trainingErr: repository.ErrTrainingNotFound}
	h := newTestHandler(t, svc)

	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trainings/99", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}

	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "Training not found" {
		t.Fatalf("unexpected error message: %v", resp)
	}
}

func TestRouter_UnauthorizedWithoutToken(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/dashboard_stats", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestRouter_AdminForbiddenForGeneralRole(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/trainings", nil)
	req.Header.Set("Authorization", "Bearer "+h.authMiddleware.IssueToken(1, model.RoleGeneral))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}
}

func TestRouter_AdminAllowed(t *testing.T) {
	h := newTestHandler(t, &stubService{adminTrainings: []service.AdminTraining{}})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/trainings", nil)
	req.Header.Set("Authorization", "Bearer "+h.authMiddleware.IssueToken(1, model.RoleAdmin))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusOK)
	}
}

func TestDashboardStats_ResponseShape(t *testing.T) {
	svc := &stubService{dashboard: &model.DashboardStats{TotalPoints: 120, WeeklyActivity: []model.WeeklyActivityDay{}}}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/dashboard_stats", nil)
	req.Header.Set("Authorization", "Bearer "+h.authMiddleware.IssueToken(1, model.RoleGeneral))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp map[string]map[string]any
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	stats, ok := resp["dashboard_stats"]
	if !ok {
		t.Fatalf("expected dashboard_stats key, got %v", resp)
	}
	if stats["total_points"] != float64(120) {
		t.Fatalf("total_points = %v, want 120", stats["total_points"])
	}
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusOK)
	}
}

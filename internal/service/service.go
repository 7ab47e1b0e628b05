// Package service реализует бизнес-логику сервиса учёта тренировок.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/traintrack-system/internal/calendar"
	"github.com/mmeshcher/traintrack-system/internal/model"
	"github.com/mmeshcher/traintrack-system/internal/repository"
	"github.com/mmeshcher/traintrack-system/internal/stats"
	"github.com/mmeshcher/traintrack-system/internal/validation"
)

const (
	bcryptCost     = 14
	rankingLimit   = 50
	defaultPerPage = 20
)

// ErrInvalidCredentials возвращается при неверной паре email/пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ValidationError содержит список сообщений о некорректных полях запроса.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, email, username, passwordHash string, role model.Role) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)

	ListTrainings(ctx context.Context) ([]model.Training, error)
	ListAllTrainings(ctx context.Context) ([]model.Training, error)
	GetTraining(ctx context.Context, id int64, publishedOnly bool) (*model.Training, error)
	CreateTraining(ctx context.Context, t *model.Training) (int64, error)
	UpdateTraining(ctx context.Context, t *model.Training) error
	DeleteTraining(ctx context.Context, id int64) error
	CountRecordsByTraining(ctx context.Context, trainingID int64) (int, error)

	CreateRecord(ctx context.Context, rec *model.TrainingRecord) (int64, error)
	ListRecordsByUser(ctx context.Context, userID int64, filter repository.RecordFilter) ([]model.TrainingRecord, int, error)
	GetRecord(ctx context.Context, userID, id int64) (*model.TrainingRecord, error)
	UpdateRecord(ctx context.Context, rec *model.TrainingRecord) error
	DeleteRecord(ctx context.Context, userID, id int64) error
	CountSameDaySameTraining(ctx context.Context, userID, trainingID int64, day time.Time) (int, error)
	CountRecordsByUser(ctx context.Context, userID int64) (int, error)

	ListEventsByUser(ctx context.Context, userID int64) ([]stats.Event, error)
	ListDayAggregates(ctx context.Context, userID int64, from time.Time) ([]repository.DayAggregate, error)
	ListTrainingCounts(ctx context.Context, userID int64) ([]repository.TrainingCount, error)

	GetUserStat(ctx context.Context, userID int64) (*model.UserStat, error)
	SaveUserStat(ctx context.Context, s model.UserStat) error
	ListTopStatsByPoints(ctx context.Context, limit int) ([]repository.RankingRow, error)
	ListTopStatsByStreaks(ctx context.Context, limit int) ([]repository.RankingRow, error)
	CountStatsWithMorePoints(ctx context.Context, points int) (int, error)
}

// Metrics описывает счётчики, которые сервис обновляет в ходе работы.
type Metrics interface {
	RecordCreated()
	ObserveRecompute(d time.Duration)
	RecomputeFailed()
}

// Service содержит бизнес-логику сервиса учёта тренировок.
type Service struct {
	repo        Repository
	businessDay calendar.BusinessDayFunc
	metrics     Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewService создаёт новый сервис. Предикат businessDay используется
// движком статистики при пересчёте серий.
func NewService(repo Repository, businessDay calendar.BusinessDayFunc, m Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:        repo,
		businessDay: businessDay,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя с ролью general.
func (s *Service) RegisterUser(ctx context.Context, email, username, password string) (*model.User, error) {
	var msgs []string
	if email == "" {
		msgs = append(msgs, "email is required")
	}
	if username == "" {
		msgs = append(msgs, "username is required")
	}
	if len(password) < 6 {
		msgs = append(msgs, "password is too short (minimum is 6 characters)")
	}
	if len(msgs) > 0 {
		return nil, &ValidationError{Messages: msgs}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.repo.CreateUser(ctx, email, username, string(hash), model.RoleGeneral)
	if err != nil {
		return nil, err
	}

	return &model.User{
		ID:       id,
		Email:    email,
		Username: username,
		Role:     model.RoleGeneral,
	}, nil
}

// AuthenticateUser проверяет email и пароль и возвращает пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (s *Service) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// ListTrainings возвращает каталог тренировок: опубликованные первыми.
func (s *Service) ListTrainings(ctx context.Context) ([]model.Training, error) {
	return s.repo.ListTrainings(ctx)
}

// GetPublishedTraining возвращает опубликованную тренировку.
func (s *Service) GetPublishedTraining(ctx context.Context, id int64) (*model.Training, error) {
	return s.repo.GetTraining(ctx, id, true)
}

// AdminTraining дополняет тренировку данными для админки.
type AdminTraining struct {
	model.Training
	RecordsCount int
}

// ListAdminTrainings возвращает весь каталог с количеством записей по каждой тренировке.
func (s *Service) ListAdminTrainings(ctx context.Context) ([]AdminTraining, error) {
	trainings, err := s.repo.ListAllTrainings(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]AdminTraining, 0, len(trainings))
	for _, t := range trainings {
		count, err := s.repo.CountRecordsByTraining(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		res = append(res, AdminTraining{Training: t, RecordsCount: count})
	}

	return res, nil
}

// GetAdminTraining возвращает тренировку для админки, включая неопубликованные.
func (s *Service) GetAdminTraining(ctx context.Context, id int64) (*AdminTraining, error) {
	t, err := s.repo.GetTraining(ctx, id, false)
	if err != nil {
		return nil, err
	}

	count, err := s.repo.CountRecordsByTraining(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	return &AdminTraining{Training: *t, RecordsCount: count}, nil
}

// TrainingInput описывает поля создания и изменения тренировки каталога.
type TrainingInput struct {
	Name        string
	Description string
	Duration    int
	BasePoints  int
	Difficulty  model.Difficulty
	Published   bool
	Explain     []string
}

// CreateTraining добавляет тренировку в каталог.
func (s *Service) CreateTraining(ctx context.Context, in TrainingInput) (*AdminTraining, error) {
	if msgs := validation.ValidateTraining(validation.TrainingInput{
		Name:       in.Name,
		Duration:   in.Duration,
		BasePoints: in.BasePoints,
	}); len(msgs) > 0 {
		return nil, &ValidationError{Messages: msgs}
	}

	t := &model.Training{
		Name:        in.Name,
		Description: in.Description,
		Duration:    in.Duration,
		BasePoints:  in.BasePoints,
		Difficulty:  in.Difficulty,
		Published:   in.Published,
		Explain:     in.Explain,
	}
	if t.Explain == nil {
		t.Explain = []string{}
	}

	id, err := s.repo.CreateTraining(ctx, t)
	if err != nil {
		return nil, err
	}
	t.ID = id

	return &AdminTraining{Training: *t}, nil
}

// UpdateTraining изменяет тренировку каталога.
func (s *Service) UpdateTraining(ctx context.Context, id int64, in TrainingInput) (*AdminTraining, error) {
	if msgs := validation.ValidateTraining(validation.TrainingInput{
		Name:       in.Name,
		Duration:   in.Duration,
		BasePoints: in.BasePoints,
	}); len(msgs) > 0 {
		return nil, &ValidationError{Messages: msgs}
	}

	t := &model.Training{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		Duration:    in.Duration,
		BasePoints:  in.BasePoints,
		Difficulty:  in.Difficulty,
		Published:   in.Published,
		Explain:     in.Explain,
	}
	if t.Explain == nil {
		t.Explain = []string{}
	}

	if err := s.repo.UpdateTraining(ctx, t); err != nil {
		return nil, err
	}

	return s.GetAdminTraining(ctx, id)
}

// DeleteTraining удаляет тренировку каталога.
func (s *Service) DeleteTraining(ctx context.Context, id int64) error {
	return s.repo.DeleteTraining(ctx, id)
}

// RecordInput описывает поля создания и изменения записи о тренировке.
type RecordInput struct {
	TrainingID  int64
	CompletedAt *time.Time
	Reps        *int
	Duration    *int
	Weight      *float64
	Notes       *string
}

// CreateRecord сохраняет запись о выполненной тренировке и синхронно
// пересчитывает статистику пользователя. Неудача пересчёта не отменяет
// созданную запись: статистика остаётся устаревшей до следующего пересчёта.
func (s *Service) CreateRecord(ctx context.Context, userID int64, in RecordInput) (*model.TrainingRecord, error) {
	now := s.now()

	completedAt := now
	if in.CompletedAt != nil {
		completedAt = *in.CompletedAt
	}

	training, err := s.repo.GetTraining(ctx, in.TrainingID, false)
	if err != nil {
		if errors.Is(err, repository.ErrTrainingNotFound) {
			return nil, &ValidationError{Messages: []string{"training must exist"}}
		}
		return nil, err
	}

	if msgs := validation.ValidateRecord(validation.RecordInput{
		TrainingID:  in.TrainingID,
		CompletedAt: completedAt,
		Reps:        in.Reps,
		Duration:    in.Duration,
		Weight:      in.Weight,
		Notes:       in.Notes,
	}, now); len(msgs) > 0 {
		return nil, &ValidationError{Messages: msgs}
	}

	rec := &model.TrainingRecord{
		UserID:       userID,
		TrainingID:   training.ID,
		TrainingName: training.Name,
		PointsEarned: training.CalculatePoints(),
		CompletedAt:  completedAt,
		Reps:         in.Reps,
		Duration:     in.Duration,
		Weight:       in.Weight,
		Notes:        in.Notes,
	}

	if _, err := s.repo.CreateRecord(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrDailyLimitExceeded) {
			return nil, &ValidationError{Messages: []string{
				fmt.Sprintf("daily training limit is %d", repository.DailyRecordLimit),
			}}
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordCreated()
	}

	if err := s.RecalculateStats(ctx, userID); err != nil {
		// Запись уже сохранена, её не откатываем: статистика догонит
		// при следующем пересчёте.
		s.logger.Warn("stats recompute failed, snapshot is stale",
			zap.Int64("userID", userID),
			zap.Error(err),
		)
		if s.metrics != nil {
			s.metrics.RecomputeFailed()
		}
	}

	return rec, nil
}

// RecalculateStats пересчитывает статистику пользователя по полной истории
// записей и сохраняет снапшот. Вызывается после создания записи;
// изменение и удаление записей пересчёт не запускают.
func (s *Service) RecalculateStats(ctx context.Context, userID int64) error {
	start := time.Now()

	prev, err := s.repo.GetUserStat(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrStatNotFound) {
			return err
		}
		prev = &model.UserStat{UserID: userID}
	}

	events, err := s.repo.ListEventsByUser(ctx, userID)
	if err != nil {
		return err
	}

	next := stats.Recompute(*prev, events, s.now(), s.businessDay)
	next.UserID = userID

	if err := s.repo.SaveUserStat(ctx, next); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.ObserveRecompute(time.Since(start))
	}

	return nil
}

// ListRecordsParams задаёт фильтры и пагинацию списка записей.
type ListRecordsParams struct {
	TrainingID int64
	StartDate  *time.Time
	EndDate    *time.Time
	Page       int
	PerPage    int
}

// Pagination описывает метаданные страницы списка.
type Pagination struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	TotalCount  int `json:"total_count"`
	PerPage     int `json:"per_page"`
}

// ListRecords возвращает страницу записей пользователя.
func (s *Service) ListRecords(ctx context.Context, userID int64, params ListRecordsParams) ([]model.TrainingRecord, *Pagination, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	perPage := params.PerPage
	if perPage < 1 {
		perPage = defaultPerPage
	}

	filter := repository.RecordFilter{
		TrainingID: params.TrainingID,
		Limit:      perPage,
		Offset:     (page - 1) * perPage,
	}
	// Диапазон дат применяется только когда заданы обе границы.
	if params.StartDate != nil && params.EndDate != nil {
		filter.From = params.StartDate
		// Конец диапазона включает весь день.
		to := calendar.DateOf(*params.EndDate).AddDate(0, 0, 1)
		filter.To = &to
	}

	records, total, err := s.repo.ListRecordsByUser(ctx, userID, filter)
	if err != nil {
		return nil, nil, err
	}

	return records, &Pagination{
		CurrentPage: page,
		TotalPages:  int(math.Ceil(float64(total) / float64(perPage))),
		TotalCount:  total,
		PerPage:     perPage,
	}, nil
}

// RecordDetails дополняет запись о тренировке данными для детального просмотра.
type RecordDetails struct {
	model.TrainingRecord
	SameDayCount int
}

// GetRecord возвращает запись пользователя с деталями.
func (s *Service) GetRecord(ctx context.Context, userID, id int64) (*RecordDetails, error) {
	rec, err := s.repo.GetRecord(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	sameDay, err := s.repo.CountSameDaySameTraining(ctx, userID, rec.TrainingID, rec.CompletedAt)
	if err != nil {
		return nil, err
	}

	return &RecordDetails{TrainingRecord: *rec, SameDayCount: sameDay}, nil
}

// UpdateRecord изменяет запись пользователя. Статистика при этом
// не пересчитывается.
func (s *Service) UpdateRecord(ctx context.Context, userID, id int64, in RecordInput) (*model.TrainingRecord, error) {
	rec, err := s.repo.GetRecord(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	now := s.now()

	if in.TrainingID != 0 && in.TrainingID != rec.TrainingID {
		training, err := s.repo.GetTraining(ctx, in.TrainingID, false)
		if err != nil {
			if errors.Is(err, repository.ErrTrainingNotFound) {
				return nil, &ValidationError{Messages: []string{"training must exist"}}
			}
			return nil, err
		}
		rec.TrainingID = training.ID
		rec.TrainingName = training.Name
		rec.PointsEarned = training.CalculatePoints()
	}

	if in.CompletedAt != nil {
		rec.CompletedAt = *in.CompletedAt
	}
	if in.Reps != nil {
		rec.Reps = in.Reps
	}
	if in.Duration != nil {
		rec.Duration = in.Duration
	}
	if in.Weight != nil {
		rec.Weight = in.Weight
	}
	if in.Notes != nil {
		rec.Notes = in.Notes
	}

	if msgs := validation.ValidateRecord(validation.RecordInput{
		TrainingID:  rec.TrainingID,
		CompletedAt: rec.CompletedAt,
		Points:      rec.PointsEarned,
		Reps:        rec.Reps,
		Duration:    rec.Duration,
		Weight:      rec.Weight,
		Notes:       rec.Notes,
	}, now); len(msgs) > 0 {
		return nil, &ValidationError{Messages: msgs}
	}

	if err := s.repo.UpdateRecord(ctx, rec); err != nil {
		return nil, err
	}

	return rec, nil
}

// DeleteRecord удаляет запись пользователя. Статистика при этом
// не пересчитывается.
func (s *Service) DeleteRecord(ctx context.Context, userID, id int64) error {
	return s.repo.DeleteRecord(ctx, userID, id)
}

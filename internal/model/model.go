// Package model содержит доменные сущности сервиса учёта тренировок.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Role описывает роль пользователя.
type Role int

const (
	RoleGeneral Role = 0
	RoleAdmin   Role = 1
)

var roleLabels = map[Role]string{
	RoleGeneral: "general",
	RoleAdmin:   "admin",
}

var roleByLabel = map[string]Role{
	"general": RoleGeneral,
	"admin":   RoleAdmin,
}

// String возвращает строковую метку роли.
func (r Role) String() string {
	if label, ok := roleLabels[r]; ok {
		return label
	}
	return "general"
}

// Valid сообщает, является ли значение роли допустимым.
func (r Role) Valid() bool {
	_, ok := roleLabels[r]
	return ok
}

// MarshalJSON сериализует роль в строковую метку.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON принимает роль в виде строковой метки.
func (r *Role) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	v, ok := roleByLabel[label]
	if !ok {
		return fmt.Errorf("unknown role: %q", label)
	}
	*r = v
	return nil
}

// Difficulty описывает уровень сложности тренировки.
type Difficulty int

const (
	DifficultyBeginner     Difficulty = 0
	DifficultyIntermediate Difficulty = 1
	DifficultyAdvanced     Difficulty = 2
)

var difficultyLabels = map[Difficulty]string{
	DifficultyBeginner:     "beginner",
	DifficultyIntermediate: "intermediate",
	DifficultyAdvanced:     "advanced",
}

var difficultyByLabel = map[string]Difficulty{
	"beginner":     DifficultyBeginner,
	"intermediate": DifficultyIntermediate,
	"advanced":     DifficultyAdvanced,
}

// String возвращает строковую метку уровня сложности.
func (d Difficulty) String() string {
	if label, ok := difficultyLabels[d]; ok {
		return label
	}
	return "beginner"
}

// Valid сообщает, является ли значение уровня сложности допустимым.
func (d Difficulty) Valid() bool {
	_, ok := difficultyLabels[d]
	return ok
}

// Multiplier возвращает коэффициент начисления баллов для уровня сложности.
func (d Difficulty) Multiplier() float64 {
	switch d {
	case DifficultyIntermediate:
		return 1.5
	case DifficultyAdvanced:
		return 2.0
	default:
		return 1.0
	}
}

// MarshalJSON сериализует уровень сложности в строковую метку.
func (d Difficulty) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON принимает уровень сложности в виде строковой метки.
func (d *Difficulty) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	v, ok := difficultyByLabel[label]
	if !ok {
		return fmt.Errorf("unknown difficulty: %q", label)
	}
	*d = v
	return nil
}

// User представляет зарегистрированного пользователя сервиса.
type User struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Training описывает тренировку из каталога.
type Training struct {
	ID          int64
	Name        string
	Description string
	Duration    int
	BasePoints  int
	Difficulty  Difficulty
	Published   bool
	Explain     []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CalculatePoints возвращает количество баллов за выполнение тренировки
// с учётом коэффициента сложности.
func (t Training) CalculatePoints() int {
	return int(math.Round(float64(t.BasePoints) * t.Difficulty.Multiplier()))
}

// FormattedDuration возвращает длительность тренировки в читаемом виде.
func (t Training) FormattedDuration() string {
	minutes := t.Duration / 60
	seconds := t.Duration % 60

	switch {
	case minutes > 0 && seconds > 0:
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// TrainingRecord описывает факт выполнения тренировки пользователем.
type TrainingRecord struct {
	ID           int64
	UserID       int64
	TrainingID   int64
	TrainingName string
	PointsEarned int
	CompletedAt  time.Time
	Reps         *int
	Duration     *int
	Weight       *float64
	Notes        *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserStat содержит денормализованную статистику пользователя.
// Пересчитывается движком статистики после каждой созданной записи.
type UserStat struct {
	UserID             int64
	TotalPoints        int
	CurrentStreak      int
	LongestStreak      int
	TotalTrainingCount int
	LastTrainingDate   *time.Time
}

// RankingEntry описывает одну позицию в рейтинге пользователей.
type RankingEntry struct {
	Rank     int    `json:"rank"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Points   int    `json:"points"`
	Streak   int    `json:"streak"`
}

// Ranking содержит топ рейтинга и позицию текущего пользователя.
type Ranking struct {
	Rankings        []RankingEntry `json:"rankings"`
	CurrentUserRank *RankingEntry  `json:"current_user_rank"`
}

// WeeklyActivityDay описывает активность пользователя за один день недели.
type WeeklyActivityDay struct {
	Day       string `json:"day"`
	Completed bool   `json:"completed"`
	Points    int    `json:"points"`
}

// DashboardStats содержит агрегированную статистику для дашборда пользователя.
type DashboardStats struct {
	TotalPoints        int                 `json:"total_points"`
	CurrentStreak      int                 `json:"current_streak"`
	LongestStreak      int                 `json:"longest_streak"`
	TotalTrainingCount int                 `json:"total_training_count"`
	LastTrainingDate   *string             `json:"last_training_date"`
	ThisMonthPoints    int                 `json:"this_month_points"`
	TodayCompleted     bool                `json:"today_completed"`
	TodayCount         int                 `json:"today_count"`
	TodayRemaining     int                 `json:"today_remaining"`
	WeeklyActivity     []WeeklyActivityDay `json:"weekly_activity"`
	TotalRecords       int                 `json:"total_records"`
	ThisWeekRecords    int                 `json:"this_week_records"`
	ThisMonthRecords   int                 `json:"this_month_records"`
	StreakDays         int                 `json:"streak_days"`
	FavoriteTraining   *string             `json:"favorite_training"`
}

// TrendPoint описывает количество тренировок за один период.
type TrendPoint struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// FrequencyEntry описывает тренировку с количеством её выполнений.
type FrequencyEntry struct {
	Name  string
	Count int
}

// TrainingFrequency хранит тренировки в порядке убывания частоты выполнения.
type TrainingFrequency []FrequencyEntry

// MarshalJSON сериализует частоты в JSON-объект, сохраняя порядок записей.
func (f TrainingFrequency) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(e.Count))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// TrainingTrends содержит динамику тренировок по неделям и месяцам.
type TrainingTrends struct {
	WeeklyData        []TrendPoint      `json:"weekly_data"`
	MonthlyData       []TrendPoint      `json:"monthly_data"`
	TrainingFrequency TrainingFrequency `json:"training_frequency"`
}

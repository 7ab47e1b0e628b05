// Package validation содержит функции валидации входных данных.
package validation

import "time"

// MaxNotesLength ограничивает длину заметки к записи о тренировке.
const MaxNotesLength = 500

// RecordInput описывает проверяемые поля записи о тренировке.
type RecordInput struct {
	TrainingID  int64
	CompletedAt time.Time
	Points      int
	Reps        *int
	Duration    *int
	Weight      *float64
	Notes       *string
}

// ValidateRecord проверяет поля записи и возвращает список ошибок.
// Пустой список означает, что запись корректна.
func ValidateRecord(in RecordInput, now time.Time) []string {
	var errs []string

	if in.TrainingID <= 0 {
		errs = append(errs, "training_id is required")
	}

	if in.CompletedAt.After(now) {
		errs = append(errs, "completed_at cannot be in the future")
	}

	if in.Points < 0 {
		errs = append(errs, "points must be greater than or equal to 0")
	}

	if in.Reps != nil && *in.Reps <= 0 {
		errs = append(errs, "reps must be greater than 0")
	}

	if in.Duration != nil && *in.Duration <= 0 {
		errs = append(errs, "duration must be greater than 0")
	}

	if in.Weight != nil && *in.Weight <= 0 {
		errs = append(errs, "weight must be greater than 0")
	}

	if in.Notes != nil && len([]rune(*in.Notes)) > MaxNotesLength {
		errs = append(errs, "notes is too long")
	}

	return errs
}

// TrainingInput описывает проверяемые поля тренировки каталога.
type TrainingInput struct {
	Name       string
	Duration   int
	BasePoints int
}

// ValidateTraining проверяет поля тренировки каталога.
func ValidateTraining(in TrainingInput) []string {
	var errs []string

	if in.Name == "" {
		errs = append(errs, "name is required")
	}
	if len([]rune(in.Name)) > 100 {
		errs = append(errs, "name is too long")
	}

	if in.Duration <= 0 || in.Duration > 3600 {
		errs = append(errs, "duration must be between 1 and 3600")
	}

	if in.BasePoints < 0 || in.BasePoints > 1000 {
		errs = append(errs, "base_points must be between 0 and 1000")
	}

	return errs
}

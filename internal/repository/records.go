package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/traintrack-system/internal/calendar"
	"github.com/mmeshcher/traintrack-system/internal/model"
	"github.com/mmeshcher/traintrack-system/internal/stats"
)

// difficultyMultiplierSQL повторяет коэффициенты model.Difficulty.Multiplier
// для взвешенных агрегатов на стороне БД.
const difficultyMultiplierSQL = `CASE t.difficulty
	WHEN 0 THEN 1.0
	WHEN 1 THEN 1.5
	WHEN 2 THEN 2.0
	ELSE 1.0 END`

// RecordFilter задаёт фильтры и пагинацию списка записей.
type RecordFilter struct {
	TrainingID int64
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// CreateRecord сохраняет запись о тренировке. Лимит записей за день
// проверяется под блокировкой строки пользователя, чтобы параллельные
// запросы не обошли ограничение.
func (r *PostgresRepository) CreateRecord(ctx context.Context, rec *model.TrainingRecord) (int64, error) {
	var id int64

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var dummy int
		err = tx.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, rec.UserID).Scan(&dummy)
		if err != nil {
			return fmt.Errorf("lock user for update: %w", err)
		}

		dayStart := calendar.DateOf(rec.CompletedAt)
		dayEnd := dayStart.AddDate(0, 0, 1)

		var existing int
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM training_records
			 WHERE user_id = $1 AND completed_at >= $2 AND completed_at < $3`,
			rec.UserID, dayStart, dayEnd,
		).Scan(&existing)
		if err != nil {
			return fmt.Errorf("count daily records: %w", err)
		}

		if existing >= DailyRecordLimit {
			return ErrDailyLimitExceeded
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO training_records (user_id, training_id, points_earned, completed_at, reps, duration, weight, notes)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING id, created_at, updated_at`,
			rec.UserID, rec.TrainingID, rec.PointsEarned, rec.CompletedAt,
			rec.Reps, rec.Duration, rec.Weight, rec.Notes,
		).Scan(&id, &rec.CreatedAt, &rec.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert record: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	rec.ID = id
	return id, nil
}

// ListRecordsByUser возвращает страницу записей пользователя и общее количество
// записей, подходящих под фильтр. Limit <= 0 отключает пагинацию.
func (r *PostgresRepository) ListRecordsByUser(ctx context.Context, userID int64, filter RecordFilter) ([]model.TrainingRecord, int, error) {
	where := `WHERE r.user_id = $1`
	args := []any{userID}

	if filter.TrainingID != 0 {
		args = append(args, filter.TrainingID)
		where += fmt.Sprintf(` AND r.training_id = $%d`, len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where += fmt.Sprintf(` AND r.completed_at >= $%d`, len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where += fmt.Sprintf(` AND r.completed_at < $%d`, len(args))
	}

	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM training_records r `+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}

	query := `SELECT r.id, r.user_id, r.training_id, t.name, r.points_earned, r.completed_at,
		r.reps, r.duration, r.weight, r.notes, r.created_at, r.updated_at
		FROM training_records r
		JOIN trainings t ON t.id = r.training_id ` + where + `
		ORDER BY r.completed_at DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select records: %w", err)
	}
	defer rows.Close()

	var records []model.TrainingRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return records, total, nil
}

// GetRecord возвращает запись пользователя по идентификатору.
func (r *PostgresRepository) GetRecord(ctx context.Context, userID, id int64) (*model.TrainingRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT r.id, r.user_id, r.training_id, t.name, r.points_earned, r.completed_at,
		 r.reps, r.duration, r.weight, r.notes, r.created_at, r.updated_at
		 FROM training_records r
		 JOIN trainings t ON t.id = r.training_id
		 WHERE r.id = $1 AND r.user_id = $2`,
		id, userID,
	)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}

	return rec, nil
}

// UpdateRecord обновляет запись пользователя.
func (r *PostgresRepository) UpdateRecord(ctx context.Context, rec *model.TrainingRecord) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE training_records
		 SET training_id = $3, points_earned = $4, completed_at = $5,
		     reps = $6, duration = $7, weight = $8, notes = $9, updated_at = now()
		 WHERE id = $1 AND user_id = $2`,
		rec.ID, rec.UserID, rec.TrainingID, rec.PointsEarned, rec.CompletedAt,
		rec.Reps, rec.Duration, rec.Weight, rec.Notes,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// DeleteRecord удаляет запись пользователя.
func (r *PostgresRepository) DeleteRecord(ctx context.Context, userID, id int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM training_records WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// ListEventsByUser возвращает полную историю выполнений пользователя
// для пересчёта статистики, в порядке возрастания времени выполнения.
func (r *PostgresRepository) ListEventsByUser(ctx context.Context, userID int64) ([]stats.Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT training_id, points_earned, completed_at
		 FROM training_records
		 WHERE user_id = $1
		 ORDER BY completed_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()

	var events []stats.Event
	for rows.Next() {
		var e stats.Event
		if err := rows.Scan(&e.TrainingID, &e.PointsEarned, &e.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return events, nil
}

// CountSameDaySameTraining возвращает число записей пользователя
// по той же тренировке за тот же календарный день.
func (r *PostgresRepository) CountSameDaySameTraining(ctx context.Context, userID, trainingID int64, day time.Time) (int, error) {
	dayStart := calendar.DateOf(day)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM training_records
		 WHERE user_id = $1 AND training_id = $2 AND completed_at >= $3 AND completed_at < $4`,
		userID, trainingID, dayStart, dayEnd,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count same day records: %w", err)
	}

	return count, nil
}

// CountRecordsByUser возвращает общее число записей пользователя.
func (r *PostgresRepository) CountRecordsByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM training_records WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}

	return count, nil
}

// DayAggregate содержит количество записей и взвешенные баллы за один день.
type DayAggregate struct {
	Day    time.Time
	Count  int
	Points float64
}

// ListDayAggregates возвращает подневные агрегаты пользователя начиная с from:
// число записей и сумму base_points с учётом коэффициента сложности.
func (r *PostgresRepository) ListDayAggregates(ctx context.Context, userID int64, from time.Time) ([]DayAggregate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT date_trunc('day', r.completed_at) AS day,
		        COUNT(*),
		        COALESCE(SUM(t.base_points * `+difficultyMultiplierSQL+`), 0)
		 FROM training_records r
		 JOIN trainings t ON t.id = r.training_id
		 WHERE r.user_id = $1 AND r.completed_at >= $2
		 GROUP BY day
		 ORDER BY day ASC`,
		userID, from,
	)
	if err != nil {
		return nil, fmt.Errorf("select day aggregates: %w", err)
	}
	defer rows.Close()

	var aggs []DayAggregate
	for rows.Next() {
		var a DayAggregate
		if err := rows.Scan(&a.Day, &a.Count, &a.Points); err != nil {
			return nil, fmt.Errorf("scan day aggregate: %w", err)
		}
		aggs = append(aggs, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return aggs, nil
}

// TrainingCount содержит число выполнений одной тренировки.
type TrainingCount struct {
	Name  string
	Count int
}

// ListTrainingCounts возвращает частоту выполнений тренировок пользователя
// по убыванию количества.
func (r *PostgresRepository) ListTrainingCounts(ctx context.Context, userID int64) ([]TrainingCount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT t.name, COUNT(*)
		 FROM training_records r
		 JOIN trainings t ON t.id = r.training_id
		 WHERE r.user_id = $1
		 GROUP BY t.name
		 ORDER BY COUNT(*) DESC, t.name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select training counts: %w", err)
	}
	defer rows.Close()

	var counts []TrainingCount
	for rows.Next() {
		var c TrainingCount
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, fmt.Errorf("scan training count: %w", err)
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return counts, nil
}

func scanRecord(row pgx.Row) (*model.TrainingRecord, error) {
	var rec model.TrainingRecord
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.TrainingID, &rec.TrainingName, &rec.PointsEarned,
		&rec.CompletedAt, &rec.Reps, &rec.Duration, &rec.Weight, &rec.Notes,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/traintrack-system/internal/model"
)

const trainingColumns = `id, name, description, duration, base_points, difficulty, published, explain_steps, created_at, updated_at`

// ListTrainings возвращает каталог тренировок: опубликованные первыми.
func (r *PostgresRepository) ListTrainings(ctx context.Context) ([]model.Training, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+trainingColumns+` FROM trainings ORDER BY published DESC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select trainings: %w", err)
	}
	defer rows.Close()

	return scanTrainings(rows)
}

// ListAllTrainings возвращает весь каталог в порядке создания (для админки).
func (r *PostgresRepository) ListAllTrainings(ctx context.Context) ([]model.Training, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+trainingColumns+` FROM trainings ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select trainings: %w", err)
	}
	defer rows.Close()

	return scanTrainings(rows)
}

// GetTraining возвращает тренировку по идентификатору.
// При publishedOnly неопубликованные тренировки считаются отсутствующими.
func (r *PostgresRepository) GetTraining(ctx context.Context, id int64, publishedOnly bool) (*model.Training, error) {
	query := `SELECT ` + trainingColumns + ` FROM trainings WHERE id = $1`
	if publishedOnly {
		query += ` AND published = TRUE`
	}

	row := r.pool.QueryRow(ctx, query, id)

	t, err := scanTraining(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTrainingNotFound
		}
		return nil, fmt.Errorf("get training: %w", err)
	}

	return t, nil
}

// CreateTraining добавляет тренировку в каталог.
func (r *PostgresRepository) CreateTraining(ctx context.Context, t *model.Training) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO trainings (name, description, duration, base_points, difficulty, published, explain_steps)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		t.Name, t.Description, t.Duration, t.BasePoints, int(t.Difficulty), t.Published, t.Explain,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert training: %w", err)
	}
	return id, nil
}

// UpdateTraining обновляет тренировку в каталоге.
func (r *PostgresRepository) UpdateTraining(ctx context.Context, t *model.Training) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE trainings
		 SET name = $2, description = $3, duration = $4, base_points = $5,
		     difficulty = $6, published = $7, explain_steps = $8, updated_at = now()
		 WHERE id = $1`,
		t.ID, t.Name, t.Description, t.Duration, t.BasePoints, int(t.Difficulty), t.Published, t.Explain,
	)
	if err != nil {
		return fmt.Errorf("update training: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrTrainingNotFound
	}

	return nil
}

// DeleteTraining удаляет тренировку вместе с её записями.
func (r *PostgresRepository) DeleteTraining(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM trainings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete training: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrTrainingNotFound
	}

	return nil
}

// CountRecordsByTraining возвращает количество записей по тренировке.
func (r *PostgresRepository) CountRecordsByTraining(ctx context.Context, trainingID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM training_records WHERE training_id = $1`,
		trainingID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count training records: %w", err)
	}
	return count, nil
}

func scanTrainings(rows pgx.Rows) ([]model.Training, error) {
	var trainings []model.Training
	for rows.Next() {
		t, err := scanTraining(rows)
		if err != nil {
			return nil, fmt.Errorf("scan training: %w", err)
		}
		trainings = append(trainings, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return trainings, nil
}

func scanTraining(row pgx.Row) (*model.Training, error) {
	var (
		t          model.Training
		difficulty int
	)
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.Duration, &t.BasePoints,
		&difficulty, &t.Published, &t.Explain, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Difficulty = model.Difficulty(difficulty)

	if t.Explain == nil {
		t.Explain = []string{}
	}

	return &t, nil
}

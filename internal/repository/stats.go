package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/traintrack-system/internal/model"
)

// GetUserStat возвращает статистику пользователя.
func (r *PostgresRepository) GetUserStat(ctx context.Context, userID int64) (*model.UserStat, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT user_id, total_points, current_streak, longest_streak, total_training_count, last_training_date
		 FROM user_stats
		 WHERE user_id = $1`,
		userID,
	)

	var s model.UserStat
	err := row.Scan(&s.UserID, &s.TotalPoints, &s.CurrentStreak, &s.LongestStreak, &s.TotalTrainingCount, &s.LastTrainingDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatNotFound
		}
		return nil, fmt.Errorf("get user stat: %w", err)
	}

	return &s, nil
}

// SaveUserStat сохраняет пересчитанную статистику пользователя.
// Параллельные записи для одного пользователя не сериализуются:
// действует семантика «последняя запись побеждает».
func (r *PostgresRepository) SaveUserStat(ctx context.Context, s model.UserStat) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_stats (user_id, total_points, current_streak, longest_streak, total_training_count, last_training_date, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (user_id) DO UPDATE
		 SET total_points = EXCLUDED.total_points,
		     current_streak = EXCLUDED.current_streak,
		     longest_streak = EXCLUDED.longest_streak,
		     total_training_count = EXCLUDED.total_training_count,
		     last_training_date = EXCLUDED.last_training_date,
		     updated_at = now()`,
		s.UserID, s.TotalPoints, s.CurrentStreak, s.LongestStreak, s.TotalTrainingCount, s.LastTrainingDate,
	)
	if err != nil {
		return fmt.Errorf("save user stat: %w", err)
	}

	return nil
}

// RankingRow содержит данные одной строки рейтинга до присвоения места.
type RankingRow struct {
	UserID        int64
	Username      string
	TotalPoints   int
	CurrentStreak int
}

// ListTopStatsByPoints возвращает лучшие статистики по баллам.
func (r *PostgresRepository) ListTopStatsByPoints(ctx context.Context, limit int) ([]RankingRow, error) {
	return r.listTopStats(ctx,
		`SELECT s.user_id, u.username, s.total_points, s.current_streak
		 FROM user_stats s
		 JOIN users u ON u.id = s.user_id
		 ORDER BY s.total_points DESC, s.user_id ASC
		 LIMIT $1`,
		limit,
	)
}

// ListTopStatsByStreaks возвращает лучшие статистики по текущим сериям.
func (r *PostgresRepository) ListTopStatsByStreaks(ctx context.Context, limit int) ([]RankingRow, error) {
	return r.listTopStats(ctx,
		`SELECT s.user_id, u.username, s.total_points, s.current_streak
		 FROM user_stats s
		 JOIN users u ON u.id = s.user_id
		 ORDER BY s.current_streak DESC, s.total_points DESC, s.user_id ASC
		 LIMIT $1`,
		limit,
	)
}

func (r *PostgresRepository) listTopStats(ctx context.Context, query string, limit int) ([]RankingRow, error) {
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select ranking: %w", err)
	}
	defer rows.Close()

	var res []RankingRow
	for rows.Next() {
		var row RankingRow
		if err := rows.Scan(&row.UserID, &row.Username, &row.TotalPoints, &row.CurrentStreak); err != nil {
			return nil, fmt.Errorf("scan ranking row: %w", err)
		}
		res = append(res, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CountStatsWithMorePoints возвращает число пользователей,
// у которых баллов строго больше указанного значения.
func (r *PostgresRepository) CountStatsWithMorePoints(ctx context.Context, points int) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_stats WHERE total_points > $1`,
		points,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count stats above: %w", err)
	}

	return count, nil
}

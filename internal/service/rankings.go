package service

import (
	"context"
	"errors"

	"github.com/mmeshcher/traintrack-system/internal/model"
	"github.com/mmeshcher/traintrack-system/internal/repository"
)

// PointsRanking возвращает топ пользователей по сумме баллов
// и позицию запрашивающего пользователя.
func (s *Service) PointsRanking(ctx context.Context, userID int64) (*model.Ranking, error) {
	rows, err := s.repo.ListTopStatsByPoints(ctx, rankingLimit)
	if err != nil {
		return nil, err
	}
	return s.buildRanking(ctx, userID, rows)
}

// StreaksRanking возвращает топ пользователей по длине текущей серии
// и позицию запрашивающего пользователя. Позиция вне топа считается
// по баллам, как и в рейтинге по баллам.
func (s *Service) StreaksRanking(ctx context.Context, userID int64) (*model.Ranking, error) {
	rows, err := s.repo.ListTopStatsByStreaks(ctx, rankingLimit)
	if err != nil {
		return nil, err
	}
	return s.buildRanking(ctx, userID, rows)
}

func (s *Service) buildRanking(ctx context.Context, userID int64, rows []repository.RankingRow) (*model.Ranking, error) {
	entries := make([]model.RankingEntry, 0, len(rows))
	var current *model.RankingEntry
	for i, row := range rows {
		e := model.RankingEntry{
			Rank:     i + 1,
			UserID:   row.UserID,
			Username: row.Username,
			Points:   row.TotalPoints,
			Streak:   row.CurrentStreak,
		}
		entries = append(entries, e)
		if row.UserID == userID {
			own := e
			current = &own
		}
	}

	if current == nil {
		stat, err := s.repo.GetUserStat(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrStatNotFound) {
				return &model.Ranking{Rankings: entries}, nil
			}
			return nil, err
		}

		user, err := s.repo.GetUserByID(ctx, userID)
		if err != nil {
			return nil, err
		}

		ahead, err := s.repo.CountStatsWithMorePoints(ctx, stat.TotalPoints)
		if err != nil {
			return nil, err
		}

		current = &model.RankingEntry{
			Rank:     ahead + 1,
			UserID:   userID,
			Username: user.Username,
			Points:   stat.TotalPoints,
			Streak:   stat.CurrentStreak,
		}
	}

	return &model.Ranking{Rankings: entries, CurrentUserRank: current}, nil
}

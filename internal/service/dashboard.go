package service

import (
	"context"
	"errors"
	"time"

	"github.com/mmeshcher/traintrack-system/internal/calendar"
	"github.com/mmeshcher/traintrack-system/internal/model"
	"github.com/mmeshcher/traintrack-system/internal/repository"
)

const (
	trendWeeks     = 8
	trendMonths    = 6
	frequencyLimit = 5
)

// DashboardStats собирает агрегированную статистику для дашборда:
// снапшот серий и баллов плюс живые подневные агрегаты за текущий период.
func (s *Service) DashboardStats(ctx context.Context, userID int64) (*model.DashboardStats, error) {
	today := calendar.DateOf(s.now())
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	weekStart := startOfWeek(today)
	sevenDaysAgo := today.AddDate(0, 0, -6)

	stat, err := s.repo.GetUserStat(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrStatNotFound) {
			return nil, err
		}
		stat = &model.UserStat{UserID: userID}
	}

	totalRecords, err := s.repo.CountRecordsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	from := earliest(monthStart, weekStart, sevenDaysAgo)
	aggs, err := s.repo.ListDayAggregates(ctx, userID, from)
	if err != nil {
		return nil, err
	}

	byDay := make(map[time.Time]repository.DayAggregate, len(aggs))
	for _, a := range aggs {
		byDay[calendar.DateOf(a.Day)] = a
	}

	var thisMonthPoints float64
	var thisWeekRecords, thisMonthRecords int
	for day, a := range byDay {
		if !day.Before(monthStart) {
			thisMonthPoints += a.Points
			thisMonthRecords += a.Count
		}
		if !day.Before(weekStart) {
			thisWeekRecords += a.Count
		}
	}

	weekly := make([]model.WeeklyActivityDay, 0, 7)
	for i := 6; i >= 0; i-- {
		d := today.AddDate(0, 0, -i)
		a := byDay[d]
		weekly = append(weekly, model.WeeklyActivityDay{
			Day:       d.Format("01/02"),
			Completed: a.Count > 0,
			Points:    int(a.Points),
		})
	}

	todayCount := byDay[today].Count
	todayRemaining := repository.DailyRecordLimit - todayCount
	if todayRemaining < 0 {
		todayRemaining = 0
	}

	counts, err := s.repo.ListTrainingCounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	var favorite *string
	if len(counts) > 0 {
		favorite = &counts[0].Name
	}

	var lastDate *string
	if stat.LastTrainingDate != nil {
		d := stat.LastTrainingDate.Format("2006-01-02")
		lastDate = &d
	}

	return &model.DashboardStats{
		TotalPoints:        stat.TotalPoints,
		CurrentStreak:      stat.CurrentStreak,
		LongestStreak:      stat.LongestStreak,
		TotalTrainingCount: totalRecords,
		LastTrainingDate:   lastDate,
		ThisMonthPoints:    int(thisMonthPoints),
		TodayCompleted:     todayCount > 0,
		TodayCount:         todayCount,
		TodayRemaining:     todayRemaining,
		WeeklyActivity:     weekly,
		TotalRecords:       totalRecords,
		ThisWeekRecords:    thisWeekRecords,
		ThisMonthRecords:   thisMonthRecords,
		StreakDays:         stat.CurrentStreak,
		FavoriteTraining:   favorite,
	}, nil
}

// TrainingTrends возвращает динамику тренировок: количество по неделям
// за последние восемь недель, по месяцам за последние шесть месяцев
// и топ тренировок по частоте.
func (s *Service) TrainingTrends(ctx context.Context, userID int64) (*model.TrainingTrends, error) {
	today := calendar.DateOf(s.now())
	currentWeek := startOfWeek(today)
	currentMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	firstWeek := currentWeek.AddDate(0, 0, -7*(trendWeeks-1))
	firstMonth := currentMonth.AddDate(0, -(trendMonths - 1), 0)

	aggs, err := s.repo.ListDayAggregates(ctx, userID, earliest(firstWeek, firstMonth))
	if err != nil {
		return nil, err
	}

	countIn := func(from, to time.Time) int {
		total := 0
		for _, a := range aggs {
			day := calendar.DateOf(a.Day)
			if !day.Before(from) && day.Before(to) {
				total += a.Count
			}
		}
		return total
	}

	weekly := make([]model.TrendPoint, 0, trendWeeks)
	for w := trendWeeks - 1; w >= 0; w-- {
		ws := currentWeek.AddDate(0, 0, -7*w)
		weekly = append(weekly, model.TrendPoint{
			Label: ws.Format("01/02"),
			Count: countIn(ws, ws.AddDate(0, 0, 7)),
		})
	}

	monthly := make([]model.TrendPoint, 0, trendMonths)
	for m := trendMonths - 1; m >= 0; m-- {
		ms := currentMonth.AddDate(0, -m, 0)
		monthly = append(monthly, model.TrendPoint{
			Label: ms.Format("2006/01"),
			Count: countIn(ms, ms.AddDate(0, 1, 0)),
		})
	}

	counts, err := s.repo.ListTrainingCounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	frequency := make(model.TrainingFrequency, 0, frequencyLimit)
	for i, c := range counts {
		if i == frequencyLimit {
			break
		}
		frequency = append(frequency, model.FrequencyEntry{Name: c.Name, Count: c.Count})
	}

	return &model.TrainingTrends{
		WeeklyData:        weekly,
		MonthlyData:       monthly,
		TrainingFrequency: frequency,
	}, nil
}

// startOfWeek возвращает понедельник недели, содержащей день d.
func startOfWeek(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func earliest(dates ...time.Time) time.Time {
	first := dates[0]
	for _, d := range dates[1:] {
		if d.Before(first) {
			first = d
		}
	}
	return first
}

// Package stats реализует движок пересчёта статистики тренировок:
// суммарные баллы, количество записей, дату последней тренировки
// и серии последовательных рабочих дней.
package stats

import (
	"sort"
	"time"

	"github.com/mmeshcher/traintrack-system/internal/calendar"
	"github.com/mmeshcher/traintrack-system/internal/model"
)

// Event описывает одно выполнение тренировки, учитываемое при пересчёте.
type Event struct {
	TrainingID   int64
	PointsEarned int
	CompletedAt  time.Time
}

// Recompute пересчитывает статистику пользователя по полной истории его
// записей. Дата today и предикат рабочего дня передаются явно, чтобы расчёт
// оставался чистой функцией. Порядок событий на входе не важен.
//
// Поле LongestStreak монотонно не убывает между вызовами: итоговое значение —
// максимум из прежнего значения, серии по истории и текущей серии.
func Recompute(prev model.UserStat, events []Event, today time.Time, isBusinessDay calendar.BusinessDayFunc) model.UserStat {
	next := model.UserStat{
		UserID:        prev.UserID,
		LongestStreak: prev.LongestStreak,
	}
	if next.LongestStreak < 0 {
		next.LongestStreak = 0
	}

	if len(events) == 0 {
		return next
	}

	for _, e := range events {
		next.TotalPoints += e.PointsEarned
	}
	next.TotalTrainingCount = len(events)

	last := events[0].CompletedAt
	for _, e := range events[1:] {
		if e.CompletedAt.After(last) {
			last = e.CompletedAt
		}
	}
	lastDate := calendar.DateOf(last)
	next.LastTrainingDate = &lastDate

	dates := distinctDates(events)

	current := currentStreak(dates, calendar.DateOf(today), isBusinessDay)
	longest := longestStreak(dates, isBusinessDay)

	next.CurrentStreak = current
	next.LongestStreak = maxOf(next.LongestStreak, longest, current)

	return next
}

// distinctDates возвращает отсортированный по возрастанию список
// уникальных календарных дат событий.
func distinctDates(events []Event) []time.Time {
	seen := make(map[time.Time]struct{}, len(events))
	dates := make([]time.Time, 0, len(events))

	for _, e := range events {
		d := calendar.DateOf(e.CompletedAt)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// currentStreak считает текущую серию, двигаясь от today назад во времени.
// Серия растёт, пока очередной день — рабочий и на него есть тренировка.
// После каждого шага нерабочие дни пропускаются, но только пока проверяемая
// дата остаётся позже самой ранней даты в истории.
func currentStreak(dates []time.Time, today time.Time, isBusinessDay calendar.BusinessDayFunc) int {
	set := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	first := dates[0]

	streak := 0
	check := today

	for {
		if !isBusinessDay(check) {
			break
		}
		if _, ok := set[check]; !ok {
			break
		}

		streak++
		check = check.AddDate(0, 0, -1)

		for !isBusinessDay(check) && check.After(first) {
			check = check.AddDate(0, 0, -1)
		}
	}

	return streak
}

// longestStreak считает максимальную серию по всей истории. Две даты
// считаются непрерывными, если следующий рабочий день после более ранней
// из них совпадает с более поздней.
func longestStreak(dates []time.Time, isBusinessDay calendar.BusinessDayFunc) int {
	maxStreak := 0
	streak := 1

	for i := 1; i < len(dates); i++ {
		expected := dates[i-1].AddDate(0, 0, 1)
		for !isBusinessDay(expected) && expected.Before(dates[i]) {
			expected = expected.AddDate(0, 0, 1)
		}

		if expected.Equal(dates[i]) {
			streak++
		} else {
			if streak > maxStreak {
				maxStreak = streak
			}
			streak = 1
		}
	}

	if streak > maxStreak {
		maxStreak = streak
	}

	return maxStreak
}

func maxOf(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Package calendar реализует определение рабочих дней
// с учётом выходных и государственных праздников Японии.
package calendar

import "time"

// BusinessDayFunc — предикат «является ли дата рабочим днём».
// Функция должна быть детерминированной и не иметь побочных эффектов.
type BusinessDayFunc func(date time.Time) bool

// японские государственные праздники, включая перенесённые дни отдыха
var japaneseHolidays = []string{
	// 2025
	"2025-01-01", "2025-01-13", "2025-02-11", "2025-02-23", "2025-02-24",
	"2025-03-20", "2025-04-29", "2025-05-03", "2025-05-04", "2025-05-05",
	"2025-05-06", "2025-07-21", "2025-08-11", "2025-09-15", "2025-09-23",
	"2025-10-13", "2025-11-03", "2025-11-23", "2025-11-24",
	// 2026
	"2026-01-01", "2026-01-12", "2026-02-11", "2026-02-23", "2026-03-20",
	"2026-04-29", "2026-05-03", "2026-05-04", "2026-05-05", "2026-05-06",
	"2026-07-20", "2026-08-11", "2026-09-21", "2026-09-22", "2026-09-23",
	"2026-10-12", "2026-11-03", "2026-11-23",
}

// Calendar хранит множество праздничных дат и отвечает на вопрос,
// является ли дата рабочим днём.
type Calendar struct {
	holidays map[time.Time]struct{}
}

// NewJapanese создаёт календарь с японскими государственными праздниками.
// Дополнительные нерабочие даты можно передать параметром extra.
func NewJapanese(extra ...time.Time) *Calendar {
	c := &Calendar{
		holidays: make(map[time.Time]struct{}, len(japaneseHolidays)+len(extra)),
	}

	for _, s := range japaneseHolidays {
		d, err := time.Parse(time.DateOnly, s)
		if err != nil {
			continue
		}
		c.holidays[DateOf(d)] = struct{}{}
	}

	for _, d := range extra {
		c.holidays[DateOf(d)] = struct{}{}
	}

	return c
}

// IsBusinessDay сообщает, является ли дата рабочим днём:
// не суббота, не воскресенье и не праздник.
func (c *Calendar) IsBusinessDay(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	_, holiday := c.holidays[DateOf(date)]
	return !holiday
}

// DateOf нормализует момент времени до календарной даты (полночь UTC).
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Package day содержит функции для работы с календарными днями:
// каноничный ключ дня и границы суток в локальном часовом поясе.
package day

import "time"

// KeyLayout формат ключа дня, который хранится в last_reminder_date.
const KeyLayout = "2006-01-02"

// Key возвращает ключ календарного дня в формате YYYY-MM-DD в часовом поясе t.
func Key(t time.Time) string {
	return t.Format(KeyLayout)
}

// Start возвращает полночь календарного дня, которому принадлежит t.
func Start(t time.Time) time.Time {
	year, month, d := t.Date()
	return time.Date(year, month, d, 0, 0, 0, 0, t.Location())
}

// Bounds возвращает первое и последнее мгновение календарного дня t включительно.
// Конец дня равен началу следующего дня минус одна наносекунда,
// поэтому t попадает в [start, end] тогда и только тогда, когда Key(t) == Key(d).
func Bounds(t time.Time) (start, end time.Time) {
	start = Start(t)
	end = AddDays(start, 1).Add(-time.Nanosecond)
	return start, end
}

// AddDays сдвигает дату на n календарных дней, не опираясь на длину суток,
// так что переход на летнее время не смещает результат.
func AddDays(t time.Time, n int) time.Time {
	year, month, d := t.Date()
	hour, minute, sec := t.Clock()
	return time.Date(year, month, d+n, hour, minute, sec, t.Nanosecond(), t.Location())
}

// ParseKey разбирает ключ дня в полночь указанного часового пояса.
func ParseKey(key string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(KeyLayout, key, loc)
}

// Package reminder решает, каким подпискам нужно напоминание о продлении,
// и рассылает их не более одного раза на подписку и целевой день.
package reminder

import (
	"fmt"
	"strconv"
	"time"

	"github.com/magabrotheeeer/renewal-reminder/internal/lib/day"
	"github.com/magabrotheeeer/renewal-reminder/internal/models"
)

// LeadTime количество дней до продления и метка для текста письма.
type LeadTime struct {
	Days  int
	Label string
}

// Target целевой день, для которого ищутся продления.
type Target struct {
	Date  time.Time
	Days  int
	Label string
}

// DayKey ключ целевого дня.
func (t Target) DayKey() string {
	return day.Key(t.Date)
}

// SameDay сообщает, что напоминание отправляется в день продления.
func (t Target) SameDay() bool {
	return t.Days == 0
}

// Policy хранит настроенные сроки напоминаний и правило отбора по статусу.
type Policy struct {
	leadTimes           []LeadTime
	honorStatusFilter   bool
	distinctLeadMarkers bool
}

// Options правила отбора кандидатов.
type Options struct {
	// HonorStatusFilter оставляет только активные подписки.
	HonorStatusFilter bool
	// DistinctLeadMarkers различает маркеры разных сроков для одного дня продления,
	// чтобы напоминание в день продления не подавлялось напоминанием за N дней.
	DistinctLeadMarkers bool
}

// NewPolicy создаёт политику. Порядок leadTimes сохраняется,
// пустая метка заменяется количеством дней.
func NewPolicy(leadTimes []LeadTime, opts Options) (*Policy, error) {
	const op = "reminder.NewPolicy"

	if len(leadTimes) == 0 {
		return nil, fmt.Errorf("%s: at least one lead time is required", op)
	}
	lts := make([]LeadTime, 0, len(leadTimes))
	for _, lt := range leadTimes {
		if lt.Days < 0 {
			return nil, fmt.Errorf("%s: lead time must be non-negative, got %d", op, lt.Days)
		}
		if lt.Label == "" {
			lt.Label = strconv.Itoa(lt.Days)
		}
		lts = append(lts, lt)
	}
	return &Policy{
		leadTimes:           lts,
		honorStatusFilter:   opts.HonorStatusFilter,
		distinctLeadMarkers: opts.DistinctLeadMarkers,
	}, nil
}

// LeadTimes возвращает копию настроенных сроков.
func (p *Policy) LeadTimes() []LeadTime {
	out := make([]LeadTime, len(p.leadTimes))
	copy(out, p.leadTimes)
	return out
}

// TargetDatesForTick возвращает целевые дни для тика в порядке конфигурации.
// Сегодняшний день берётся как полночь now в его часовом поясе, сдвиг считается
// в календарных днях. Совпадающие дни не схлопываются.
func (p *Policy) TargetDatesForTick(now time.Time) []Target {
	today := day.Start(now)
	targets := make([]Target, 0, len(p.leadTimes))
	for _, lt := range p.leadTimes {
		targets = append(targets, Target{
			Date:  day.AddDays(today, lt.Days),
			Days:  lt.Days,
			Label: lt.Label,
		})
	}
	return targets
}

// IsDue сообщает, нужно ли отправлять напоминание подписке для целевого дня.
// Это единственная проверка на дубликаты: маркер совпадает с ключом дня, значит
// письмо уже ушло. С DistinctLeadMarkers совпасть должен и срок.
func (p *Policy) IsDue(sub *models.Subscription, target Target) bool {
	if p.distinctLeadMarkers {
		return !sub.RemindedWithLead(target.DayKey(), target.Days)
	}
	return !sub.Reminded(target.DayKey())
}

// Statuses возвращает статусы, по которым фильтруются кандидаты.
// nil означает, что статус не учитывается.
func (p *Policy) Statuses() []models.Status {
	if !p.honorStatusFilter {
		return nil
	}
	return []models.Status{models.StatusActive}
}

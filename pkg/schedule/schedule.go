package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// ScheduleType selects the variant of a Schedule.
type ScheduleType string

const (
	// TypeOnce fires once at a fixed instant.
	TypeOnce ScheduleType = "once"
	// TypeInterval fires every fixed number of seconds.
	TypeInterval ScheduleType = "interval"
	// TypeDaily fires at the listed times of day, every day.
	TypeDaily ScheduleType = "daily"
	// TypeWeekly fires on the listed weekdays at one time of day.
	TypeWeekly ScheduleType = "weekly"
	// TypeMonthly fires on the listed days of the month at one time.
	TypeMonthly ScheduleType = "monthly"
	// TypeCron fires per a reduced two-field "minute hour" expression.
	TypeCron ScheduleType = "cron"
)

// Schedule is a declarative fire-time specification. It carries no
// mutable state; NextExecution is a pure function of the clock.
// All times are UTC.
type Schedule struct {
	Type ScheduleType `yaml:"type" json:"type"`

	// At is the instant for Once schedules.
	At *time.Time `yaml:"at,omitempty" json:"at,omitempty"`

	// IntervalSeconds and StartImmediately drive Interval schedules.
	IntervalSeconds  int  `yaml:"interval_seconds,omitempty" json:"interval_seconds,omitempty"`
	StartImmediately bool `yaml:"start_immediately,omitempty" json:"start_immediately,omitempty"`

	// Times lists "HH:MM" times of day for Daily schedules.
	Times []string `yaml:"times,omitempty" json:"times,omitempty"`

	// Days lists weekdays for Weekly schedules.
	Days []time.Weekday `yaml:"days,omitempty" json:"days,omitempty"`

	// MonthDays lists days of the month (1-31) for Monthly schedules.
	// Days beyond 28 are clamped to 28 so every month qualifies.
	MonthDays []int `yaml:"month_days,omitempty" json:"month_days,omitempty"`

	// TimeOfDay is the "HH:MM" fire time for Weekly and Monthly.
	TimeOfDay string `yaml:"time,omitempty" json:"time,omitempty"`

	// Expression is the cron expression for Cron schedules. Only the
	// two-field "minute hour" form is accepted.
	Expression string `yaml:"expression,omitempty" json:"expression,omitempty"`

	// Timezone is informational only; evaluation is always UTC.
	Timezone string `yaml:"timezone,omitempty" json:"timezone,omitempty"`
}

// Once returns a schedule that fires once at the given instant.
func Once(at time.Time) Schedule {
	at = at.UTC()
	return Schedule{Type: TypeOnce, At: &at}
}

// Every returns an interval schedule.
func Every(seconds int, startImmediately bool) Schedule {
	return Schedule{Type: TypeInterval, IntervalSeconds: seconds, StartImmediately: startImmediately}
}

// Daily returns a schedule firing at the given "HH:MM" times each day.
func Daily(times ...string) Schedule {
	return Schedule{Type: TypeDaily, Times: times}
}

// Weekly returns a schedule firing on the given weekdays at timeOfDay.
func Weekly(timeOfDay string, days ...time.Weekday) Schedule {
	return Schedule{Type: TypeWeekly, Days: days, TimeOfDay: timeOfDay}
}

// Monthly returns a schedule firing on the given days of the month.
func Monthly(timeOfDay string, days ...int) Schedule {
	return Schedule{Type: TypeMonthly, MonthDays: days, TimeOfDay: timeOfDay}
}

// Cron returns a schedule driven by a two-field cron expression.
func Cron(expression string) Schedule {
	return Schedule{Type: TypeCron, Expression: expression}
}

// NextExecution returns the next fire time strictly derived from now,
// or false when the schedule will never fire again (a past Once, or a
// malformed specification).
func (s Schedule) NextExecution(now time.Time) (time.Time, bool) {
	now = now.UTC()

	switch s.Type {
	case TypeOnce:
		if s.At == nil || !s.At.After(now) {
			return time.Time{}, false
		}
		return s.At.UTC(), true

	case TypeInterval:
		if s.IntervalSeconds <= 0 && !s.StartImmediately {
			return time.Time{}, false
		}
		if s.StartImmediately {
			return now, true
		}
		return now.Add(time.Duration(s.IntervalSeconds) * time.Second), true

	case TypeDaily:
		return nextDaily(now, s.Times)

	case TypeWeekly:
		return nextWeekly(now, s.Days, s.TimeOfDay)

	case TypeMonthly:
		return nextMonthly(now, s.MonthDays, s.TimeOfDay)

	case TypeCron:
		return nextCron(now, s.Expression)
	}

	return time.Time{}, false
}

// Validate checks that the schedule is well-formed enough to ever fire.
func (s Schedule) Validate() error {
	switch s.Type {
	case TypeOnce:
		if s.At == nil {
			return fmt.Errorf("once schedule requires an instant")
		}
	case TypeInterval:
		if s.IntervalSeconds <= 0 {
			return fmt.Errorf("interval schedule requires a positive interval")
		}
	case TypeDaily:
		if len(s.Times) == 0 {
			return fmt.Errorf("daily schedule requires at least one time")
		}
		for _, t := range s.Times {
			if _, _, err := parseClock(t); err != nil {
				return err
			}
		}
	case TypeWeekly:
		if len(s.Days) == 0 {
			return fmt.Errorf("weekly schedule requires at least one weekday")
		}
		if _, _, err := parseClock(s.TimeOfDay); err != nil {
			return err
		}
	case TypeMonthly:
		if len(s.MonthDays) == 0 {
			return fmt.Errorf("monthly schedule requires at least one day")
		}
		for _, d := range s.MonthDays {
			if d < 1 || d > 31 {
				return fmt.Errorf("monthly schedule day %d out of range", d)
			}
		}
		if _, _, err := parseClock(s.TimeOfDay); err != nil {
			return err
		}
	case TypeCron:
		if _, err := parseTwoFieldCron(s.Expression); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown schedule type %q", s.Type)
	}
	return nil
}

// parseClock parses an "HH:MM" time of day.
func parseClock(s string) (hour, minute int, err error) {
	parsed, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

func atClock(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC)
}

func nextDaily(now time.Time, times []string) (time.Time, bool) {
	var candidates []time.Time
	for _, t := range times {
		hour, minute, err := parseClock(t)
		if err != nil {
			return time.Time{}, false
		}
		candidates = append(candidates, atClock(now, hour, minute))
	}
	if len(candidates) == 0 {
		return time.Time{}, false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Before(candidates[j]) })

	for _, c := range candidates {
		if c.After(now) {
			return c, true
		}
	}
	// All of today's times have passed; earliest time tomorrow.
	return candidates[0].AddDate(0, 0, 1), true
}

func nextWeekly(now time.Time, days []time.Weekday, timeOfDay string) (time.Time, bool) {
	if len(days) == 0 {
		return time.Time{}, false
	}
	hour, minute, err := parseClock(timeOfDay)
	if err != nil {
		return time.Time{}, false
	}

	var best time.Time
	for _, day := range days {
		until := (int(day) - int(now.Weekday()) + 7) % 7
		candidate := atClock(now.AddDate(0, 0, until), hour, minute)
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 7)
		}
		if best.IsZero() || candidate.Before(best) {
			best = candidate
		}
	}
	return best, true
}

func nextMonthly(now time.Time, monthDays []int, timeOfDay string) (time.Time, bool) {
	if len(monthDays) == 0 {
		return time.Time{}, false
	}
	hour, minute, err := parseClock(timeOfDay)
	if err != nil {
		return time.Time{}, false
	}

	days := make([]int, 0, len(monthDays))
	for _, d := range monthDays {
		if d < 1 || d > 31 {
			return time.Time{}, false
		}
		days = append(days, d)
	}
	sort.Ints(days)

	for _, d := range days {
		candidate := time.Date(now.Year(), now.Month(), d, hour, minute, 0, 0, time.UTC)
		// Months without this day normalize into the following month;
		// skip those so the real day fires when the month has it.
		if candidate.Month() != now.Month() {
			continue
		}
		if candidate.After(now) {
			return candidate, true
		}
	}
	// Nothing left this month; earliest qualifying day next month,
	// clamped so the rollover lands on a day every month has.
	d := days[0]
	if d > 28 {
		d = 28
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return time.Date(first.Year(), first.Month(), d, hour, minute, 0, 0, time.UTC), true
}

// nextCron supports the reduced "minute hour" form only. The two
// fields are expanded to a full five-field expression before parsing,
// so step and list syntax inside them still works.
func nextCron(now time.Time, expression string) (time.Time, bool) {
	sched, err := parseTwoFieldCron(expression)
	if err != nil {
		return time.Time{}, false
	}
	return sched.Next(now), true
}

func parseTwoFieldCron(expression string) (cron.Schedule, error) {
	fields := strings.Fields(expression)
	if len(fields) != 2 {
		return nil, fmt.Errorf("cron expression %q: want two fields (minute hour)", expression)
	}
	full := fields[0] + " " + fields[1] + " * * *"
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(full)
	if err != nil {
		return nil, fmt.Errorf("cron expression %q: %w", expression, err)
	}
	return sched, nil
}

// ScheduledWorkflow binds a Schedule to a target workflow.
type ScheduledWorkflow struct {
	ID            string         `json:"id"`
	WorkflowID    string         `json:"workflow_id"`
	Schedule      Schedule       `json:"schedule"`
	Enabled       bool           `json:"enabled"`
	Input         map[string]any `json:"input,omitempty"`
	MaxConcurrent int            `json:"max_concurrent"`
	CatchUp       bool           `json:"catch_up"`
	Timezone      string         `json:"timezone"`
	CreatedAt     time.Time      `json:"created_at"`
	LastExecution *time.Time     `json:"last_execution,omitempty"`
	NextExecution *time.Time     `json:"next_execution,omitempty"`
	TenantID      string         `json:"tenant_id,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
}

// NewScheduledWorkflow creates an enabled schedule entry with its next
// fire time precomputed.
func NewScheduledWorkflow(workflowID string, sched Schedule) *ScheduledWorkflow {
	s := &ScheduledWorkflow{
		ID:            "sched_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		WorkflowID:    workflowID,
		Schedule:      sched,
		Enabled:       true,
		MaxConcurrent: 1,
		Timezone:      "UTC",
		CreatedAt:     time.Now().UTC(),
	}
	s.UpdateNextExecution(time.Now().UTC())
	return s
}

// WithInput sets the static input payload.
func (s *ScheduledWorkflow) WithInput(input map[string]any) *ScheduledWorkflow {
	s.Input = input
	return s
}

// WithTenant sets the owning tenant.
func (s *ScheduledWorkflow) WithTenant(tenantID string) *ScheduledWorkflow {
	s.TenantID = tenantID
	return s
}

// WithTags sets the tag list.
func (s *ScheduledWorkflow) WithTags(tags ...string) *ScheduledWorkflow {
	s.Tags = tags
	return s
}

// UpdateNextExecution recomputes the next fire time from now. A
// schedule with no further fire time gets a nil NextExecution and
// stops firing.
func (s *ScheduledWorkflow) UpdateNextExecution(now time.Time) {
	next, ok := s.Schedule.NextExecution(now)
	if !ok {
		s.NextExecution = nil
		return
	}
	s.NextExecution = &next
}

// Due reports whether the entry should fire at or before now.
func (s *ScheduledWorkflow) Due(now time.Time) bool {
	return s.Enabled && s.NextExecution != nil && !s.NextExecution.After(now)
}

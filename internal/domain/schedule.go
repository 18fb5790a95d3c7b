package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ScheduleType задаёт периодичность запуска категории.
type ScheduleType string

const (
	ScheduleDaily    ScheduleType = "daily"
	ScheduleWeekly   ScheduleType = "weekly"
	ScheduleBiweekly ScheduleType = "biweekly"
	ScheduleMonthly  ScheduleType = "monthly"
)

// CategoryStatus задаёт жизненный цикл категории.
type CategoryStatus string

const (
	StatusActive   CategoryStatus = "active"
	StatusPaused   CategoryStatus = "paused"
	StatusDisabled CategoryStatus = "disabled"
)

// ParseCategoryStatus проверяет и нормализует статус категории.
func ParseCategoryStatus(raw string) (CategoryStatus, error) {
	switch CategoryStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusActive:
		return StatusActive, nil
	case StatusPaused:
		return StatusPaused, nil
	case StatusDisabled:
		return StatusDisabled, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// Schedule описывает расписание запуска категории: периодичность,
// время суток и необязательный день недели либо число месяца.
type Schedule struct {
	Type ScheduleType
	Time string
	Day  time.Weekday
	// HasDay отличает воскресенье от незаданного дня.
	HasDay bool
	Date   int
}

var (
	ErrInvalidScheduleTime = errors.New("время должно быть в формате HH:MM")
	ErrInvalidScheduleType = errors.New("недопустимая периодичность")
	ErrInvalidStatus       = errors.New("недопустимый статус")
	ErrScheduleNeedsDay    = errors.New("для этой периодичности нужен день недели")
	ErrScheduleNeedsDate   = errors.New("для месячного расписания нужно число месяца от 1 до 31")
	ErrInvalidWeekday      = errors.New("недопустимый день недели")
)

var scheduleTimeRegex = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):([0-5][0-9])$`)

var weekdayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// ParseSchedule собирает расписание из пользовательского ввода.
// day и date обязательны в зависимости от периодичности.
func ParseSchedule(frequency, timeOfDay, day string, date int) (Schedule, error) {
	if !scheduleTimeRegex.MatchString(strings.TrimSpace(timeOfDay)) {
		return Schedule{}, ErrInvalidScheduleTime
	}

	s := Schedule{Time: normalizeTime(timeOfDay)}
	switch ScheduleType(strings.ToLower(strings.TrimSpace(frequency))) {
	case ScheduleDaily:
		s.Type = ScheduleDaily
	case ScheduleWeekly:
		s.Type = ScheduleWeekly
	case ScheduleBiweekly:
		s.Type = ScheduleBiweekly
	case ScheduleMonthly:
		s.Type = ScheduleMonthly
	default:
		return Schedule{}, fmt.Errorf("%w: %q", ErrInvalidScheduleType, frequency)
	}

	switch s.Type {
	case ScheduleWeekly, ScheduleBiweekly:
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(day))]
		if !ok {
			if strings.TrimSpace(day) == "" {
				return Schedule{}, ErrScheduleNeedsDay
			}
			return Schedule{}, fmt.Errorf("%w: %q", ErrInvalidWeekday, day)
		}
		s.Day = wd
		s.HasDay = true
	case ScheduleMonthly:
		if date < 1 || date > 31 {
			return Schedule{}, ErrScheduleNeedsDate
		}
		s.Date = date
	}
	return s, nil
}

func normalizeTime(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) == 4 {
		return "0" + trimmed
	}
	return trimmed
}

// Clock возвращает час и минуту расписания.
func (s Schedule) Clock() (hour, minute int) {
	fmt.Sscanf(s.Time, "%d:%d", &hour, &minute)
	return hour, minute
}

// DueAt сообщает, должна ли категория запуститься в указанную минуту.
// Для biweekly запуск пропускается, если с последнего прошло меньше 13 дней.
func (s Schedule) DueAt(now time.Time, lastRun *time.Time) bool {
	hour, minute := s.Clock()
	if now.Hour() != hour || now.Minute() != minute {
		return false
	}

	switch s.Type {
	case ScheduleDaily:
		return true
	case ScheduleWeekly, ScheduleBiweekly:
		if now.Weekday() != s.Day {
			return false
		}
		if s.Type == ScheduleBiweekly && lastRun != nil {
			if int(now.Sub(*lastRun).Hours()/24) < 13 {
				return false
			}
		}
		return true
	case ScheduleMonthly:
		return now.Day() == s.Date
	}
	return false
}

// Format возвращает человекочитаемое описание расписания.
func (s Schedule) Format() string {
	switch s.Type {
	case ScheduleDaily:
		return fmt.Sprintf("Daily at %s", s.Time)
	case ScheduleWeekly:
		return fmt.Sprintf("Weekly (%s) at %s", s.Day, s.Time)
	case ScheduleBiweekly:
		return fmt.Sprintf("Biweekly (%s) at %s", s.Day, s.Time)
	case ScheduleMonthly:
		return fmt.Sprintf("Monthly (day %d) at %s", s.Date, s.Time)
	}
	return "Unknown schedule"
}

// WeekdayName возвращает имя дня недели в нижнем регистре для хранения.
func (s Schedule) WeekdayName() string {
	if !s.HasDay {
		return ""
	}
	return strings.ToLower(s.Day.String())
}

// ScheduleFromStorage восстанавливает расписание из колонок БД.
func ScheduleFromStorage(scheduleType, scheduleTime, scheduleDay string, scheduleDate int) (Schedule, error) {
	return ParseSchedule(scheduleType, scheduleTime, scheduleDay, scheduleDate)
}

package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule("weekly", "09:00", "Monday", 0)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if s.Type != ScheduleWeekly || s.Day != time.Monday || !s.HasDay {
		t.Fatalf("неверный разбор: %+v", s)
	}

	if _, err := ParseSchedule("weekly", "09:00", "", 0); !errors.Is(err, ErrScheduleNeedsDay) {
		t.Fatalf("ожидали ErrScheduleNeedsDay, получили %v", err)
	}
	if _, err := ParseSchedule("monthly", "09:00", "", 0); !errors.Is(err, ErrScheduleNeedsDate) {
		t.Fatalf("ожидали ErrScheduleNeedsDate, получили %v", err)
	}
	if _, err := ParseSchedule("monthly", "09:00", "", 32); !errors.Is(err, ErrScheduleNeedsDate) {
		t.Fatalf("ожидали ErrScheduleNeedsDate для 32, получили %v", err)
	}
	if _, err := ParseSchedule("hourly", "09:00", "", 0); !errors.Is(err, ErrInvalidScheduleType) {
		t.Fatalf("ожидали ErrInvalidScheduleType, получили %v", err)
	}
	if _, err := ParseSchedule("daily", "24:00", "", 0); !errors.Is(err, ErrInvalidScheduleTime) {
		t.Fatalf("ожидали ErrInvalidScheduleTime, получили %v", err)
	}
	if _, err := ParseSchedule("weekly", "09:00", "someday", 0); !errors.Is(err, ErrInvalidWeekday) {
		t.Fatalf("ожидали ErrInvalidWeekday, получили %v", err)
	}
}

func TestParseScheduleNormalizesTime(t *testing.T) {
	s, err := ParseSchedule("daily", "9:05", "", 0)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if s.Time != "09:05" {
		t.Fatalf("ожидали 09:05, получили %s", s.Time)
	}
	hour, minute := s.Clock()
	if hour != 9 || minute != 5 {
		t.Fatalf("ожидали 9:05, получили %d:%d", hour, minute)
	}
}

func TestDueAtDaily(t *testing.T) {
	s := Schedule{Type: ScheduleDaily, Time: "08:30"}
	at := time.Date(2026, 8, 23, 8, 30, 0, 0, time.UTC)
	if !s.DueAt(at, nil) {
		t.Fatalf("ожидали запуск в 08:30")
	}
	if s.DueAt(at.Add(time.Minute), nil) {
		t.Fatalf("не ожидали запуск в 08:31")
	}
}

func TestDueAtWeekly(t *testing.T) {
	s := Schedule{Type: ScheduleWeekly, Time: "10:00", Day: time.Sunday, HasDay: true}
	sunday := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	if sunday.Weekday() != time.Sunday {
		t.Fatalf("дата теста должна быть воскресеньем")
	}
	if !s.DueAt(sunday, nil) {
		t.Fatalf("ожидали запуск в воскресенье")
	}
	if s.DueAt(sunday.AddDate(0, 0, 1), nil) {
		t.Fatalf("не ожидали запуск в понедельник")
	}
}

func TestDueAtBiweeklySkipsEarlyRun(t *testing.T) {
	s := Schedule{Type: ScheduleBiweekly, Time: "10:00", Day: time.Sunday, HasDay: true}
	sunday := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)

	weekAgo := sunday.AddDate(0, 0, -7)
	if s.DueAt(sunday, &weekAgo) {
		t.Fatalf("не ожидали запуск спустя 7 дней")
	}
	twoWeeksAgo := sunday.AddDate(0, 0, -14)
	if !s.DueAt(sunday, &twoWeeksAgo) {
		t.Fatalf("ожидали запуск спустя 14 дней")
	}
	if !s.DueAt(sunday, nil) {
		t.Fatalf("ожидали первый запуск без last_run")
	}
}

func TestDueAtMonthly(t *testing.T) {
	s := Schedule{Type: ScheduleMonthly, Time: "12:00", Date: 23}
	at := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	if !s.DueAt(at, nil) {
		t.Fatalf("ожидали запуск 23 числа")
	}
	if s.DueAt(at.AddDate(0, 0, 1), nil) {
		t.Fatalf("не ожидали запуск 24 числа")
	}
}

func TestFormat(t *testing.T) {
	cases := map[string]Schedule{
		"Daily at 09:00":             {Type: ScheduleDaily, Time: "09:00"},
		"Weekly (Monday) at 09:00":   {Type: ScheduleWeekly, Time: "09:00", Day: time.Monday, HasDay: true},
		"Biweekly (Friday) at 18:30": {Type: ScheduleBiweekly, Time: "18:30", Day: time.Friday, HasDay: true},
		"Monthly (day 1) at 08:00":   {Type: ScheduleMonthly, Time: "08:00", Date: 1},
	}
	for expected, s := range cases {
		if got := s.Format(); got != expected {
			t.Fatalf("ожидали %q, получили %q", expected, got)
		}
	}
}

func TestParseCategoryStatus(t *testing.T) {
	if _, err := ParseCategoryStatus("archived"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("ожидали ErrInvalidStatus, получили %v", err)
	}
	st, err := ParseCategoryStatus(" Paused ")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if st != StatusPaused {
		t.Fatalf("ожидали paused, получили %s", st)
	}
}

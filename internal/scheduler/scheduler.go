package scheduler

import (
	"context"
	"errors"
	"os"
	"regexp"
	"sync"
	"time"

	"kassabot/internal/domain"

	"github.com/rs/zerolog"
)

// ErrInvalidTime signals a malformed "HH:MM" value; scheduler state is left
// unchanged.
var ErrInvalidTime = errors.New("invalid time format, expected HH:MM")

var timePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidTime reports whether raw is a strict two-digit "HH:MM" value.
func ValidTime(raw string) bool {
	return timePattern.MatchString(raw)
}

// Scheduler holds the configured daily export time and triggers the export
// orchestrator when the current minute matches it.
type Scheduler struct {
	mu        sync.Mutex
	current   string
	lastFired string // minute key "2006-01-02 15:04", guards double firing

	store  *Store
	runner domain.CycleRunner
	logger *zerolog.Logger

	tickInterval time.Duration
}

// New loads the persisted schedule and builds the scheduler.
func New(store *Store, runner domain.CycleRunner, logger *zerolog.Logger) (*Scheduler, error) {
	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}

	current, err := store.Load()
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		current:      current,
		store:        store,
		runner:       runner,
		logger:       logger,
		tickInterval: 30 * time.Second,
	}, nil
}

// Current returns the active "HH:MM" value.
func (s *Scheduler) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Reconfigure validates and replaces the daily export time. The value is
// persisted before the in-memory swap, so memory never runs ahead of disk;
// a failed persist leaves both unchanged and surfaces the error.
func (s *Scheduler) Reconfigure(newTime string) error {
	if !ValidTime(newTime) {
		return ErrInvalidTime
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(newTime); err != nil {
		return err
	}
	s.current = newTime
	s.logger.Info().Str("schedule_time", newTime).Msg("Расписание выгрузки обновлено")
	return nil
}

// Run drives the cooperative polling loop until ctx is done. Sub-minute
// latency is not guaranteed; the guard keeps one firing per matching minute.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	s.logger.Info().Str("schedule_time", s.Current()).Msg("Планировщик запущен")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Планировщик остановлен")
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

// tick fires the export cycle when now's HH:MM matches the schedule and this
// exact minute has not fired yet. The cycle runs fire-and-forget relative to
// the tick loop.
func (s *Scheduler) tick(ctx context.Context, now time.Time) bool {
	minuteKey := now.Format("2006-01-02 15:04")

	s.mu.Lock()
	match := now.Format("15:04") == s.current && s.lastFired != minuteKey
	if match {
		s.lastFired = minuteKey
	}
	s.mu.Unlock()

	if !match {
		return false
	}

	s.logger.Info().Str("minute", minuteKey).Msg("Запуск выгрузки по расписанию")
	go func() {
		if _, err := s.runner.RunCycle(ctx, now); err != nil {
			s.logger.Error().Err(err).Msg("Плановая выгрузка не запустилась")
		}
	}()
	return true
}

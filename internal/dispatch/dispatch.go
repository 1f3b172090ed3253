package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"kassabot/internal/domain"
	"kassabot/internal/export"
	"kassabot/internal/scheduler"

	"github.com/rs/zerolog"
)

const (
	CmdSetSchedule = "set_schedule"
	CmdStatToday   = "stat_today"
	CmdForceExport = "force_export"
	CmdHelp        = "help"
	CmdHistory     = "history"
)

// ErrUnknownCommand is returned for command names outside the surface; the
// HTTP front end maps it to 400.
var ErrUnknownCommand = errors.New("Unknown command")

// UsageError reports a missing or unparseable argument. It is operator
// feedback, not a system error.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return e.Message }

const helpText = `Доступные команды:
/set_schedule HH:MM - установить время ежедневной выгрузки
/stat_today - получить статистику за сегодня
/force_export - немедленная выгрузка данных
/history - показать последние выгрузки
/help - показать это сообщение`

// Dispatcher validates operator commands and routes them to the scheduler
// and export orchestrator. It is stateless and safe for concurrent use by
// both front ends.
type Dispatcher struct {
	schedule domain.ScheduleManager
	exporter domain.CycleRunner
	client   domain.UpstreamClient
	history  domain.CycleStore
	docURL   string
	logger   *zerolog.Logger

	now func() time.Time
}

// New wires the dispatcher. history may be nil; docURL is included in
// successful force_export replies.
func New(
	schedule domain.ScheduleManager,
	exporter domain.CycleRunner,
	client domain.UpstreamClient,
	history domain.CycleStore,
	docURL string,
	logger *zerolog.Logger,
) *Dispatcher {
	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}
	return &Dispatcher{
		schedule: schedule,
		exporter: exporter,
		client:   client,
		history:  history,
		docURL:   docURL,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle executes one command. Every known command terminates with a text
// result; the only errors are ErrUnknownCommand and *UsageError, which the
// front ends translate themselves.
func (d *Dispatcher) Handle(ctx context.Context, cmd domain.Command) (string, error) {
	switch cmd.Name {
	case CmdSetSchedule:
		return d.handleSetSchedule(cmd.Args)
	case CmdStatToday:
		return d.handleStatToday(ctx), nil
	case CmdForceExport:
		return d.handleForceExport(ctx), nil
	case CmdHistory:
		return d.handleHistory(ctx), nil
	case CmdHelp:
		return helpText, nil
	default:
		return "", ErrUnknownCommand
	}
}

func (d *Dispatcher) handleSetSchedule(args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", &UsageError{Message: "Используйте: /set_schedule HH:MM"}
	}

	newTime := strings.TrimSpace(args[0])
	if err := d.schedule.Reconfigure(newTime); err != nil {
		if errors.Is(err, scheduler.ErrInvalidTime) {
			return "", &UsageError{Message: "Неверный формат времени. Используйте HH:MM, например 23:00"}
		}
		d.logger.Error().Err(err).Str("time", newTime).Msg("Не удалось сохранить расписание")
		return "Ошибка при сохранении расписания", nil
	}
	return "Расписание обновлено: " + newTime, nil
}

func (d *Dispatcher) handleStatToday(ctx context.Context) string {
	sales, err := d.client.FetchSales(ctx, d.now())
	if err != nil {
		d.logger.Error().Err(err).Msg("Ошибка при получении данных для статистики")
		return "Ошибка при получении данных"
	}

	summary := export.Summarize(sales)
	return fmt.Sprintf(
		"Продаж: %d\nВыручка: %.2f₽\nСредний чек: %.2f₽\nВозвраты: %d (на %.2f₽)",
		summary.Count, summary.TotalAmount, summary.AverageCheck,
		summary.ReturnsCount, summary.ReturnsAmount,
	)
}

func (d *Dispatcher) handleForceExport(ctx context.Context) string {
	cycle, err := d.exporter.RunCycle(ctx, d.now())
	if err != nil {
		if errors.Is(err, export.ErrBusy) {
			return "Выгрузка уже выполняется, попробуйте позже"
		}
		d.logger.Error().Err(err).Msg("Ошибка запуска выгрузки")
		return "Ошибка при выгрузке данных"
	}

	if !cycle.Success {
		return "Ошибка при выгрузке данных"
	}
	if d.docURL != "" {
		return "Выгрузка завершена, вот таблица: " + d.docURL
	}
	return "Выгрузка завершена"
}

func (d *Dispatcher) handleHistory(ctx context.Context) string {
	if d.history == nil {
		return "История выгрузок недоступна"
	}

	cycles, err := d.history.RecentCycles(ctx, 5)
	if err != nil {
		d.logger.Error().Err(err).Msg("Ошибка чтения истории выгрузок")
		return "Ошибка при получении истории"
	}
	if len(cycles) == 0 {
		return "Выгрузок еще не было"
	}

	var sb strings.Builder
	sb.WriteString("Последние выгрузки:\n")
	for _, c := range cycles {
		mark := "✅"
		if !c.Success {
			mark = "❌"
		}
		sb.WriteString(fmt.Sprintf("%s %s — строк: %d\n",
			mark, c.StartedAt.Format("02.01.2006 15:04"), c.TotalRows()))
	}
	return strings.TrimRight(sb.String(), "\n")
}

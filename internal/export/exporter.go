package export

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"kassabot/internal/domain"
	"kassabot/internal/events"
	"kassabot/internal/evotor"
	"kassabot/internal/metrics"
	"kassabot/internal/models"

	"github.com/rs/zerolog"
)

// ErrBusy is returned when a cycle is requested while another is in flight.
// Concurrent cycles are rejected, not queued: appends from two cycles would
// interleave rows inside the same destination section.
var ErrBusy = errors.New("export cycle already running")

// Exporter runs export cycles: fetch each category from the upstream client,
// map records to section rows and append them to the destination sink.
type Exporter struct {
	client   domain.UpstreamClient
	sink     domain.RowSink
	history  domain.CycleStore
	eventBus domain.EventPublisher
	metrics  *metrics.Metrics
	retry    RetryPolicy
	logger   *zerolog.Logger

	snapshotDir string

	mu sync.Mutex
}

// NewExporter wires the orchestrator. history, eventBus, metrics and
// snapshotDir are optional.
func NewExporter(
	client domain.UpstreamClient,
	sink domain.RowSink,
	history domain.CycleStore,
	eventBus domain.EventPublisher,
	m *metrics.Metrics,
	retry RetryPolicy,
	snapshotDir string,
	logger *zerolog.Logger,
) *Exporter {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 3
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}

	return &Exporter{
		client:      client,
		sink:        sink,
		history:     history,
		eventBus:    eventBus,
		metrics:     m,
		retry:       retry,
		snapshotDir: snapshotDir,
		logger:      logger,
	}
}

// RunCycle executes one export cycle for the given date. At most one cycle
// runs at a time; a second caller gets ErrBusy. Each category is isolated:
// its failure is recorded and does not stop the remaining categories.
func (e *Exporter) RunCycle(ctx context.Context, date time.Time) (*models.ExportCycle, error) {
	if !e.mu.TryLock() {
		return nil, ErrBusy
	}
	defer e.mu.Unlock()

	cycle := &models.ExportCycle{Date: date, StartedAt: time.Now()}
	batches := make(map[models.Section][]models.Row, len(models.CategoryOrder))

	for _, category := range models.CategoryOrder {
		result := e.exportCategory(ctx, category, date)
		cycle.Categories = append(cycle.Categories, result.CategoryResult)
		if !result.Failed() {
			batches[models.SectionFor(category)] = result.rows
		}
	}

	cycle.FinishedAt = time.Now()
	cycle.Success = len(cycle.FailedCategories()) == 0

	e.finalizeCycle(ctx, cycle, batches)
	return cycle, nil
}

func (e *Exporter) exportCategory(ctx context.Context, category models.Category, date time.Time) resultWithRows {
	rows, err := e.fetchRows(ctx, category, date)
	if err != nil {
		kind := string(evotor.KindOf(err))
		e.logger.Error().Err(err).
			Str("category", string(category)).
			Str("kind", kind).
			Msg("Ошибка получения данных категории")
		if e.metrics != nil {
			e.metrics.CategoryFailures.WithLabelValues(string(category), kind).Inc()
		}
		return resultWithRows{CategoryResult: models.CategoryResult{Category: category, Err: "fetch: " + kind}}
	}

	section := models.SectionFor(category)
	if err := e.appendWithRetry(ctx, section, rows); err != nil {
		e.logger.Error().Err(err).
			Str("category", string(category)).
			Str("section", string(section)).
			Msg("Ошибка записи в таблицу")
		if e.metrics != nil {
			e.metrics.CategoryFailures.WithLabelValues(string(category), "sink").Inc()
		}
		return resultWithRows{CategoryResult: models.CategoryResult{Category: category, Err: "append: sink unavailable"}}
	}

	if e.metrics != nil {
		e.metrics.ExportedRows.WithLabelValues(string(category)).Add(float64(len(rows)))
	}
	return resultWithRows{
		CategoryResult: models.CategoryResult{Category: category, Rows: len(rows)},
		rows:           rows,
	}
}

type resultWithRows struct {
	models.CategoryResult
	rows []models.Row
}

func (e *Exporter) fetchRows(ctx context.Context, category models.Category, date time.Time) ([]models.Row, error) {
	switch category {
	case models.CategorySales:
		records, err := e.client.FetchSales(ctx, date)
		if err != nil {
			return nil, err
		}
		rows := make([]models.Row, 0, len(records))
		for _, r := range records {
			rows = append(rows, r.Row())
		}
		return rows, nil
	case models.CategoryReturns:
		records, err := e.client.FetchReturns(ctx, date)
		if err != nil {
			return nil, err
		}
		rows := make([]models.Row, 0, len(records))
		for _, r := range records {
			rows = append(rows, r.Row())
		}
		return rows, nil
	case models.CategoryInventory:
		records, err := e.client.FetchInventory(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]models.Row, 0, len(records))
		for _, r := range records {
			rows = append(rows, r.Row())
		}
		return rows, nil
	case models.CategoryEmployees:
		records, err := e.client.FetchEmployees(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]models.Row, 0, len(records))
		for _, r := range records {
			rows = append(rows, r.Row())
		}
		return rows, nil
	}
	return nil, errors.New("unknown category: " + string(category))
}

func (e *Exporter) appendWithRetry(ctx context.Context, section models.Section, rows []models.Row) error {
	var lastErr error
	for attempt := 1; attempt <= e.retry.MaxRetries; attempt++ {
		lastErr = e.sink.AppendRows(ctx, section, rows)
		if lastErr == nil {
			return nil
		}
		if attempt == e.retry.MaxRetries {
			break
		}

		delay := e.retry.NextDelay(attempt)
		e.logger.Warn().Err(lastErr).
			Str("section", string(section)).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("Повтор записи в таблицу")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

func (e *Exporter) finalizeCycle(ctx context.Context, cycle *models.ExportCycle, batches map[models.Section][]models.Row) {
	duration := cycle.FinishedAt.Sub(cycle.StartedAt)

	if e.metrics != nil {
		result := "success"
		if !cycle.Success {
			result = "failure"
		}
		e.metrics.ExportCycles.WithLabelValues(result).Inc()
		e.metrics.ExportDuration.Observe(duration.Seconds())
	}

	if e.history != nil {
		if err := e.history.SaveCycle(ctx, cycle); err != nil {
			e.logger.Error().Err(err).Msg("Ошибка сохранения истории выгрузки")
		}
	}

	if e.snapshotDir != "" {
		if path, err := e.writeSnapshot(cycle, batches); err != nil {
			e.logger.Error().Err(err).Msg("Ошибка создания локальной копии выгрузки")
		} else {
			e.logger.Info().Str("file_path", path).Msg("Локальная копия выгрузки создана")
		}
	}

	if e.eventBus != nil {
		eventType := events.EventExportCompleted
		if !cycle.Success {
			eventType = events.EventExportFailed
		}
		failed := make([]string, 0)
		for _, c := range cycle.FailedCategories() {
			failed = append(failed, string(c))
		}
		payload := events.ExportEventPayload{
			Date:       cycle.Date.Format(models.DateLayout),
			Success:    cycle.Success,
			TotalRows:  cycle.TotalRows(),
			Failed:     failed,
			DurationMs: duration.Milliseconds(),
		}
		if err := e.eventBus.PublishJSON(eventType, payload); err != nil {
			e.logger.Error().Err(err).Msg("Ошибка публикации события выгрузки")
		}
	}

	e.logger.Info().
		Str("date", cycle.Date.Format(models.DateLayout)).
		Bool("success", cycle.Success).
		Int("total_rows", cycle.TotalRows()).
		Dur("duration", duration).
		Msg("Цикл выгрузки завершен")
}

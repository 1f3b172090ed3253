package domain

import (
	"context"
	"time"

	"kassabot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// UpstreamClient reads record categories from the POS provider.
type UpstreamClient interface {
	FetchSales(ctx context.Context, date time.Time) ([]models.SaleRecord, error)
	FetchReturns(ctx context.Context, date time.Time) ([]models.ReturnRecord, error)
	FetchInventory(ctx context.Context) ([]models.InventoryRecord, error)
	FetchEmployees(ctx context.Context) ([]models.EmployeeRecord, error)
}

// RowSink appends row batches to a destination document section.
type RowSink interface {
	AppendRows(ctx context.Context, section models.Section, rows []models.Row) error
	SpreadsheetURL() string
}

// CycleRunner executes one export cycle for a date.
type CycleRunner interface {
	RunCycle(ctx context.Context, date time.Time) (*models.ExportCycle, error)
}

// ScheduleManager owns the daily export time.
type ScheduleManager interface {
	Current() string
	Reconfigure(newTime string) error
}

// CycleStore persists export cycle history.
type CycleStore interface {
	SaveCycle(ctx context.Context, cycle *models.ExportCycle) error
	RecentCycles(ctx context.Context, limit int) ([]*models.ExportCycle, error)
}

// EventPublisher emits domain events.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// TelegramSender is the subset of the bot API the front end needs.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

// Dispatcher routes validated commands from both front ends.
type Dispatcher interface {
	Handle(ctx context.Context, cmd Command) (string, error)
}

// Command is one parsed operator command.
type Command struct {
	Name string
	Args []string
}

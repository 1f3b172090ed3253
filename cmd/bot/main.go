package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kassabot/internal/api"
	"kassabot/internal/bot"
	"kassabot/internal/config"
	"kassabot/internal/dispatch"
	"kassabot/internal/events"
	"kassabot/internal/evotor"
	"kassabot/internal/export"
	"kassabot/internal/history"
	"kassabot/internal/logging"
	"kassabot/internal/metrics"
	"kassabot/internal/scheduler"
	"kassabot/internal/sheets"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	historyStore, err := history.NewStore(cfg.Database.Path)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации базы истории")
		return err
	}
	defer historyStore.Close()

	sheetsService, err := initGoogleSheets(ctx, cfg, &logger)
	if err != nil {
		return err
	}

	evotorClient := initEvotorClient(ctx, cfg, &logger)

	m := metrics.New()
	eventBus := events.NewEventBus()

	exporter := export.NewExporter(
		evotorClient, sheetsService, historyStore, eventBus, m,
		export.RetryPolicy{MaxRetries: 3, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2},
		cfg.Exports.Path, &logger,
	)

	sched, err := scheduler.New(scheduler.NewStore(cfg.Schedule.File), exporter, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка загрузки расписания")
		return err
	}
	go sched.Run(ctx)

	dispatcher := dispatch.New(sched, exporter, evotorClient, historyStore, sheetsService.SpreadsheetURL(), &logger)

	if cfg.API.Enabled {
		apiServer := api.NewHTTPServer(cfg.API, dispatcher, m, &logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
		defer func() {
			_ = apiServer.Shutdown(context.Background())
		}()
	}

	if cfg.Monitoring.PrometheusEnabled {
		go servePrometheus(cfg.Monitoring.PrometheusPort, &logger)
	}

	return startBot(ctx, cfg, dispatcher, eventBus, m, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "bot-main").Logger()

	return cfg, logger, closer, nil
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*sheets.Service, error) {
	sheetsSvc, err := sheets.NewService(ctx, cfg.Google.CredentialsFile, cfg.Google.SpreadsheetID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize Google Sheets service")
		return nil, err
	}

	if err := sheetsSvc.TestConnection(ctx); err != nil {
		logger.Error().Err(err).Msg("Google Sheets connection test failed")
		return nil, err
	}

	logger.Info().Msg("Google Sheets service initialized successfully")
	return sheetsSvc, nil
}

func initEvotorClient(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *evotor.Client {
	client := evotor.NewClient(cfg.Evotor.BaseURL, cfg.Evotor.Token,
		time.Duration(cfg.Evotor.TimeoutSeconds)*time.Second)

	if cfg.Redis.Address != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, sales cache disabled")
		} else {
			client.UseRedisCache(redisClient, time.Duration(cfg.Redis.CacheTTLSeconds)*time.Second)
			logger.Info().Msg("Redis sales cache enabled")
		}
	}
	return client
}

func servePrometheus(port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Info().Str("addr", addr).Msg("Prometheus metrics listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("Prometheus server error")
	}
}

func startBot(
	ctx context.Context,
	cfg *config.Config,
	dispatcher *dispatch.Dispatcher,
	eventBus *events.EventBus,
	m *metrics.Metrics,
	logger *zerolog.Logger,
) error {
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания BotAPI")
		return err
	}
	botAPI.Debug = cfg.Telegram.Debug

	telegramBot := bot.NewBot(bot.NewBotWrapper(botAPI), dispatcher, cfg.Managers, m, logger)

	subscribeExportEvents(eventBus, telegramBot, cfg.Managers, logger)

	logger.Info().Msg("Бот запущен...")
	telegramBot.Start(ctx)

	logger.Info().Msg("Shutdown complete.")
	return nil
}

// subscribeExportEvents alerts managers in Telegram when a cycle fails.
// Successful force_export runs already answer the caller directly.
func subscribeExportEvents(bus *events.EventBus, telegramBot *bot.Bot, managers []int64, logger *zerolog.Logger) {
	if bus == nil || telegramBot == nil || len(managers) == 0 {
		return
	}

	bus.Subscribe(events.EventExportFailed, func(ev *events.Event) error {
		var payload events.ExportEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}

		text := fmt.Sprintf("⚠️ Выгрузка за %s завершилась с ошибками (категории: %v)",
			payload.Date, payload.Failed)
		for _, chatID := range managers {
			telegramBot.SendMessage(chatID, text)
		}
		return nil
	})
}

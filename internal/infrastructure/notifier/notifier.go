package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/iho/cashdesk/internal/domain"
	"github.com/iho/cashdesk/internal/usecase"
)

// Notifier delivers stored notifications to recipients.
// It polls the notification store and pushes undelivered entries through
// the configured publisher, marking each one delivered on success.
type Notifier struct {
	repo      usecase.NotificationRepository
	publisher Publisher
	logger    *slog.Logger
	batchSize int
	interval  time.Duration
}

// Publisher defines the delivery channel for notifications.
type Publisher interface {
	Publish(ctx context.Context, notification *domain.Notification) error
}

// Config for Notifier.
type Config struct {
	Repo      usecase.NotificationRepository
	Publisher Publisher
	Logger    *slog.Logger
	BatchSize int           // Number of notifications to fetch per batch
	Interval  time.Duration // Polling interval
}

// New creates a new Notifier.
func New(cfg Config) *Notifier {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Notifier{
		repo:      cfg.Repo,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		batchSize: cfg.BatchSize,
		interval:  cfg.Interval,
	}
}

// Start begins the delivery worker.
// It runs continuously until the context is cancelled.
func (n *Notifier) Start(ctx context.Context) error {
	n.logger.Info("notifier started",
		slog.Int("batch_size", n.batchSize),
		slog.Duration("interval", n.interval))

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	// Process immediately on start
	if err := n.processBatch(ctx); err != nil {
		n.logger.Error("error delivering notifications on start", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("notifier shutting down")
			return ctx.Err()
		case <-ticker.C:
			if err := n.processBatch(ctx); err != nil {
				n.logger.Error("error delivering notifications", slog.String("error", err.Error()))
			}
		}
	}
}

// processBatch fetches and delivers a batch of undelivered notifications.
func (n *Notifier) processBatch(ctx context.Context) error {
	notifications, err := n.repo.GetUndelivered(ctx, n.batchSize)
	if err != nil {
		return err
	}

	if len(notifications) == 0 {
		return nil
	}

	n.logger.Info("delivering notifications", slog.Int("count", len(notifications)))

	for _, notification := range notifications {
		if err := n.publisher.Publish(ctx, notification); err != nil {
			n.logger.Error("failed to deliver notification",
				slog.String("notification_id", notification.ID),
				slog.String("type", notification.Type),
				slog.String("error", err.Error()))
			// Continue delivering other notifications even if one fails
			continue
		}

		if err := n.repo.MarkDelivered(ctx, notification.ID, time.Now()); err != nil {
			n.logger.Error("failed to mark notification as delivered",
				slog.String("notification_id", notification.ID),
				slog.String("error", err.Error()))
			// Don't continue - we don't want to redeliver this notification
		}
	}

	return nil
}

// DeliverySender pushes one event to a specific identity and fails when the
// recipient has no live connection. The realtime router satisfies it.
type DeliverySender interface {
	Deliver(identity string, event string, payload any) error
}

// RouterPublisher pushes notifications to connected recipients over the
// realtime channel router. Recipients that are offline are skipped and the
// notification stays queued for the next cycle.
type RouterPublisher struct {
	sender DeliverySender
}

// NewRouterPublisher creates a publisher backed by the channel router.
func NewRouterPublisher(sender DeliverySender) *RouterPublisher {
	return &RouterPublisher{sender: sender}
}

// Publish sends the notification to the recipient's live connection.
func (p *RouterPublisher) Publish(ctx context.Context, notification *domain.Notification) error {
	return p.sender.Deliver(notification.RecipientID, "notification", notification)
}

// LogPublisher is a simple publisher that logs notifications.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs the notification.
func (p *LogPublisher) Publish(ctx context.Context, notification *domain.Notification) error {
	data, err := json.Marshal(notification.Data)
	if err != nil {
		return err
	}

	p.logger.Info("NOTIFICATION DELIVERED",
		slog.String("notification_id", notification.ID),
		slog.String("type", notification.Type),
		slog.String("recipient_id", notification.RecipientID),
		slog.String("data", string(data)))

	return nil
}

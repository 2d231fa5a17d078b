package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/umoja-platform/umoja-api/pkg/jobs"
)

// Kind classifies user-facing notifications.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
)

// Message is a single user-facing notification.
type Message struct {
	Kind        Kind      `json:"kind"`
	Text        string    `json:"text"`
	RecipientID string    `json:"recipient_id,omitempty"`
	EmittedAt   time.Time `json:"emitted_at"`
}

// Notifier delivers user-facing feedback. Delivery is best effort and must
// never affect the control flow of the caller.
type Notifier interface {
	Notify(ctx context.Context, kind Kind, text string)
	NotifyUser(ctx context.Context, recipientID string, kind Kind, text string)
}

// LogNotifier writes notifications to the structured log. It is the fallback
// sink in environments without Redis.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, kind Kind, text string) {
	n.logger.Info("notification", zap.String("kind", string(kind)), zap.String("text", text))
}

// NotifyUser implements Notifier.
func (n *LogNotifier) NotifyUser(_ context.Context, recipientID string, kind Kind, text string) {
	n.logger.Info("notification",
		zap.String("kind", string(kind)),
		zap.String("text", text),
		zap.String("recipient_id", recipientID))
}

// RedisPublisher fans notifications out over a Redis pub/sub channel so
// connected frontends can surface them as toasts.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisPublisher constructs a RedisPublisher.
func NewRedisPublisher(client *redis.Client, channel string, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

// Notify implements Notifier.
func (p *RedisPublisher) Notify(ctx context.Context, kind Kind, text string) {
	p.publish(ctx, Message{Kind: kind, Text: text, EmittedAt: time.Now().UTC()})
}

// NotifyUser implements Notifier.
func (p *RedisPublisher) NotifyUser(ctx context.Context, recipientID string, kind Kind, text string) {
	p.publish(ctx, Message{Kind: kind, Text: text, RecipientID: recipientID, EmittedAt: time.Now().UTC()})
}

func (p *RedisPublisher) publish(ctx context.Context, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		p.logger.Warn("failed to encode notification", zap.Error(err))
		return
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Warn("failed to publish notification", zap.Error(err))
	}
}

// AsyncDispatcher decouples notification delivery from request handling by
// routing messages through a background worker queue.
type AsyncDispatcher struct {
	queue *jobs.Queue
}

// DispatcherConfig tunes the background queue.
type DispatcherConfig struct {
	Workers    int
	BufferSize int
	Logger     *zap.Logger
}

// NewAsyncDispatcher wraps a sink with a worker queue.
func NewAsyncDispatcher(sink Notifier, cfg DispatcherConfig) *AsyncDispatcher {
	queue := jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(Message)
		if !ok {
			return nil
		}
		if msg.RecipientID != "" {
			sink.NotifyUser(ctx, msg.RecipientID, msg.Kind, msg.Text)
		} else {
			sink.Notify(ctx, msg.Kind, msg.Text)
		}
		return nil
	}, jobs.QueueConfig{Workers: cfg.Workers, BufferSize: cfg.BufferSize, Logger: cfg.Logger})
	return &AsyncDispatcher{queue: queue}
}

// Start begins background delivery.
func (d *AsyncDispatcher) Start(ctx context.Context) { d.queue.Start(ctx) }

// Stop drains the workers.
func (d *AsyncDispatcher) Stop() { d.queue.Stop() }

// Notify implements Notifier.
func (d *AsyncDispatcher) Notify(_ context.Context, kind Kind, text string) {
	d.enqueue(Message{Kind: kind, Text: text, EmittedAt: time.Now().UTC()})
}

// NotifyUser implements Notifier.
func (d *AsyncDispatcher) NotifyUser(_ context.Context, recipientID string, kind Kind, text string) {
	d.enqueue(Message{Kind: kind, Text: text, RecipientID: recipientID, EmittedAt: time.Now().UTC()})
}

func (d *AsyncDispatcher) enqueue(msg Message) {
	// Best effort: a full or stopped queue drops the toast, never the request.
	_ = d.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: string(msg.Kind), Payload: msg})
}

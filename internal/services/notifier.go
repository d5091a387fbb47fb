package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/veilhq/veil-backend/internal/logger"
	"github.com/veilhq/veil-backend/internal/utils"
)

// Notification is what goes out on the wire after the jitter delay. It is
// deliberately count-and-state only: no body text, no handles, so a
// compromised notification channel reveals nothing beyond what the gate
// already allows.
type Notification struct {
	OrgID       string `json:"org_id"`
	ThreadID    string `json:"thread_id"`
	Kind        string `json:"kind"`
	RenderState string `json:"render_state"`
	SentAt      int64  `json:"sent_at"`
}

const (
	NotifyNewActivity      = "new_activity"
	NotifyThresholdCrossed = "threshold_crossed"
	NotifyDigestReady      = "digest_ready"
)

type NotifierService interface {
	Publish(ctx context.Context, n Notification) error
	Close() error
}

type redisNotifier struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewRedisNotifier(log *logger.Logger) (NotifierService, error) {
	serviceLog := log.With("service", "RedisNotifier")

	addr := strings.TrimSpace(utils.GetEnv("REDIS_ADDR", "", log))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	channel := utils.GetEnv("REDIS_NOTIFY_CHANNEL", "veil.notifications", log)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisNotifier{log: serviceLog, rdb: rdb, channel: channel}, nil
}

func (n *redisNotifier) Publish(ctx context.Context, msg Notification) error {
	if msg.SentAt == 0 {
		msg.SentAt = time.Now().Unix()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := n.rdb.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

func (n *redisNotifier) Close() error {
	return n.rdb.Close()
}

// noopNotifier keeps the ingest path alive when redis is not configured.
type noopNotifier struct {
	log *logger.Logger
}

func NewNoopNotifier(log *logger.Logger) NotifierService {
	return &noopNotifier{log: log.With("service", "NoopNotifier")}
}

func (n *noopNotifier) Publish(ctx context.Context, msg Notification) error {
	n.log.Debug("notification dropped (no redis configured)", "kind", msg.Kind)
	return nil
}

func (n *noopNotifier) Close() error { return nil }

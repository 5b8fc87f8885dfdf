// Package scheduler runs the background side of the engine on asynq:
// notification retries, unassigned-job escalations and the reservation
// janitor.
package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"measurehub_backend/internal/measurements/domain"
	"measurehub_backend/platform/config"
)

// Client enqueues background tasks. A nil client drops tasks silently so the
// API can run without a worker in development.
type Client struct {
	client     *asynq.Client
	queue      string
	retryMax   int
	retryDelay time.Duration
	escalation time.Duration
}

// NewClient creates an asynq client from scheduler configuration.
func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	return &Client{
		client:     asynq.NewClient(opt),
		queue:      queue,
		retryMax:   cfg.GetNotificationRetryMax(),
		retryDelay: cfg.GetNotificationRetryDelay(),
		escalation: cfg.GetEscalationDelay(),
	}, nil
}

// Close releases the underlying Redis connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueNotificationRetry schedules a replay of the event after the retry
// delay. asynq retries the task with backoff until the fan-out is clean or
// the retry budget runs out.
func (c *Client) EnqueueNotificationRetry(ctx context.Context, event domain.InboundEvent) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewNotificationRetryTask(event)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(c.retryMax),
		asynq.ProcessIn(c.retryDelay),
	)
	return err
}

// EnqueueEscalation schedules the unassigned-job check after the escalation
// delay.
func (c *Client) EnqueueEscalation(ctx context.Context, externalLeadID int64) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewMeasurementEscalationTask(MeasurementEscalationPayload{ExternalLeadID: externalLeadID})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.ProcessIn(c.escalation),
	)
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}

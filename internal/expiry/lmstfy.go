package expiry

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/bitleak/lmstfy/client"

	"transport-dispatch/internal/logx"
)

const defaultTries uint16 = 3

type expiryJob struct {
	OfferID  string    `json:"offer_id"`
	ExpireAt time.Time `json:"expire_at"`
}

// LmstfyScheduler publishes one delayed job per activated offer.
// Jobs cannot be withdrawn, so Cancel is a no-op and a late job finds the
// offer already resolved.
type LmstfyScheduler struct {
	client QueueClient
	queue  string
	now    func() time.Time
}

// NewLmstfyScheduler creates a LmstfyScheduler.
func NewLmstfyScheduler(c QueueClient, queue string) *LmstfyScheduler {
	return &LmstfyScheduler{client: c, queue: queue, now: time.Now}
}

// Schedule publishes a job delayed until at, rounded up to whole seconds.
func (s *LmstfyScheduler) Schedule(_ context.Context, offerID string, at time.Time) error {
	data, err := json.Marshal(expiryJob{OfferID: offerID, ExpireAt: at})
	if err != nil {
		return fmt.Errorf("encode expiry job: %w", err)
	}
	if _, err := s.client.Publish(s.queue, data, 0, defaultTries, delaySeconds(at.Sub(s.now()))); err != nil {
		return fmt.Errorf("publish expiry job for offer %q: %w", offerID, err)
	}
	return nil
}

// Cancel is a no-op.
func (s *LmstfyScheduler) Cancel(string) {}

func delaySeconds(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	secs := math.Ceil(d.Seconds())
	if secs > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(secs)
}

// ConsumerConfig tunes the lmstfy polling loop.
type ConsumerConfig struct {
	TTR         time.Duration
	PollTimeout time.Duration
	IdleBackoff time.Duration
}

// Consumer pulls due expiry jobs and passes them to a Handler.
type Consumer struct {
	client  QueueClient
	queue   string
	handler Handler
	logger  logx.Logger
	cfg     ConsumerConfig
}

// NewConsumer creates a Consumer.
func NewConsumer(c QueueClient, queue string, h Handler, logger logx.Logger, cfg ConsumerConfig) *Consumer {
	if cfg.TTR <= 0 {
		cfg.TTR = 30 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.IdleBackoff <= 0 {
		cfg.IdleBackoff = time.Second
	}
	return &Consumer{client: c, queue: queue, handler: h, logger: logger, cfg: cfg}
}

// Run polls until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("expiry consumer started", logx.String("queue", c.queue))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		handled, err := c.poll(ctx)
		if err != nil {
			c.logger.Warn("expiry consume failed", logx.String("queue", c.queue), logx.Err(err))
		}
		if handled {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.IdleBackoff):
		}
	}
}

// poll handles at most one job. It reports whether a job was received.
func (c *Consumer) poll(ctx context.Context) (bool, error) {
	job, err := c.client.Consume(c.queue, uint32(c.cfg.TTR.Seconds()), uint32(c.cfg.PollTimeout.Seconds()))
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	var payload expiryJob
	if err := json.Unmarshal(job.Data, &payload); err != nil || payload.OfferID == "" {
		c.logger.Warn("skip malformed expiry job", logx.String("job_id", job.ID))
		return true, c.client.Ack(c.queue, job.ID)
	}

	// Without an ack the job comes back after TTR.
	if err := c.handler(ctx, payload.OfferID); err != nil {
		return true, fmt.Errorf("expire offer %q: %w", payload.OfferID, err)
	}
	return true, c.client.Ack(c.queue, job.ID)
}

// LmstfyClient adapts *client.LmstfyClient to QueueClient. The client reports
// failures as *client.APIError, so nil results are checked before widening.
type LmstfyClient struct {
	cli *client.LmstfyClient
}

// NewLmstfyClient connects to the lmstfy namespace.
func NewLmstfyClient(host string, port int, namespace, token string) *LmstfyClient {
	return &LmstfyClient{cli: client.NewLmstfyClient(host, port, namespace, token)}
}

func (c *LmstfyClient) Publish(queue string, data []byte, ttlSecond uint32, tries uint16, delaySecond uint32) (string, error) {
	id, err := c.cli.Publish(queue, data, ttlSecond, tries, delaySecond)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (c *LmstfyClient) Consume(queue string, ttrSecond, timeoutSecond uint32) (*client.Job, error) {
	job, err := c.cli.Consume(queue, ttrSecond, timeoutSecond)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (c *LmstfyClient) Ack(queue, jobID string) error {
	if err := c.cli.Ack(queue, jobID); err != nil {
		return err
	}
	return nil
}

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"aligncv/internal/config"
	"aligncv/internal/errors"

	"github.com/streadway/amqp"
)

// Publisher sends job status updates.
type Publisher interface {
	Publish(ctx context.Context, status Status) error
}

// Handler turns deliveries into processed jobs and status updates.
type Handler struct {
	processor *Processor
	publisher Publisher
	logger    *errors.Logger
}

func NewHandler(processor *Processor, publisher Publisher, logger *errors.Logger) *Handler {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &Handler{processor: processor, publisher: publisher, logger: logger}
}

// Handle processes one message body. Every job ends with a completed or
// failed status; the returned error is the failure cause.
func (h *Handler) Handle(ctx context.Context, body []byte) error {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		h.logger.Warn("Discarding malformed job", "error", err.Error())
		h.publish(ctx, Status{JobID: job.ID, Status: StatusFailed, Message: "malformed job"})
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "malformed job", err)
	}

	h.logger.Info("Processing job", "job_id", job.ID)
	h.publish(ctx, Status{JobID: job.ID, Status: StatusProcessing, Message: "analysis started"})

	key, err := h.processor.Process(ctx, job)
	if err != nil {
		h.logger.LogError(err, "Job failed", "job_id", job.ID)
		h.publish(ctx, Status{JobID: job.ID, Status: StatusFailed, Message: fmt.Sprintf("analysis failed: %s", message(err))})
		return err
	}

	h.publish(ctx, Status{JobID: job.ID, Status: StatusCompleted, Message: "analysis completed", ResultKey: key})
	return nil
}

func (h *Handler) publish(ctx context.Context, status Status) {
	if h.publisher == nil {
		return
	}
	status.Timestamp = time.Now().UTC()
	if err := h.publisher.Publish(ctx, status); err != nil {
		h.logger.Warn("Failed to publish job status", "job_id", status.JobID, "error", err.Error())
	}
}

// deliver handles d and acknowledges it. Failed jobs are reported through
// their status and never requeued; jobs cut short by shutdown are requeued.
func (h *Handler) deliver(ctx context.Context, d amqp.Delivery) {
	_ = h.Handle(ctx, d.Body)
	if ctx.Err() != nil {
		if err := d.Nack(false, true); err != nil {
			h.logger.Warn("Failed to requeue delivery", "delivery_tag", d.DeliveryTag, "error", err.Error())
		}
		return
	}
	if err := d.Ack(false); err != nil {
		h.logger.Warn("Failed to acknowledge delivery", "delivery_tag", d.DeliveryTag, "error", err.Error())
	}
}

// amqpPublisher publishes status updates to a topic exchange.
type amqpPublisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
}

func (p *amqpPublisher) Publish(_ context.Context, status Status) error {
	body, err := json.Marshal(status)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Publish(p.exchange, routingKey(status.JobID), false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   status.Timestamp,
		Body:        body,
	})
}

// Pool consumes jobs with a fixed number of workers.
type Pool struct {
	cfg       config.QueueConfig
	processor *Processor
	logger    *errors.Logger
}

func NewPool(cfg config.QueueConfig, processor *Processor, logger *errors.Logger) *Pool {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &Pool{cfg: cfg, processor: processor, logger: logger}
}

// Run connects to the broker and blocks until ctx is cancelled or the
// connection is lost.
func (p *Pool) Run(ctx context.Context) error {
	conn, err := amqp.Dial(p.cfg.URL)
	if err != nil {
		return errors.NewNetworkError(errors.ErrCodeQueueFailed, "error connecting to RabbitMQ", err)
	}
	defer func() { _ = conn.Close() }()

	pubCh, err := conn.Channel()
	if err != nil {
		return errors.NewNetworkError(errors.ErrCodeQueueFailed, "error opening RabbitMQ channel", err)
	}
	defer func() { _ = pubCh.Close() }()

	if err := pubCh.ExchangeDeclare(p.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return errors.NewNetworkError(errors.ErrCodeQueueFailed, "failed to declare exchange", err)
	}
	handler := NewHandler(p.processor, &amqpPublisher{ch: pubCh, exchange: p.cfg.Exchange}, p.logger)

	workers := max(p.cfg.Workers, 1)
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := range workers {
		go func() {
			defer wg.Done()
			if err := p.consume(ctx, conn, handler, i+1); err != nil {
				errs <- err
			}
		}()
	}
	p.logger.Info("Worker pool started", "workers", workers, "queue", p.cfg.Queue)

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	var runErr error
	select {
	case <-ctx.Done():
	case amqpErr := <-closed:
		if amqpErr != nil {
			runErr = errors.NewNetworkError(errors.ErrCodeQueueFailed, "RabbitMQ connection closed", amqpErr)
		}
	case runErr = <-errs:
	}

	_ = conn.Close()
	wg.Wait()
	return runErr
}

func (p *Pool) consume(ctx context.Context, conn *amqp.Connection, handler *Handler, id int) error {
	ch, err := conn.Channel()
	if err != nil {
		return errors.NewNetworkError(errors.ErrCodeQueueFailed, "error opening RabbitMQ channel", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.cfg.Queue, true, false, false, false, nil); err != nil {
		return errors.NewNetworkError(errors.ErrCodeQueueFailed, "failed to declare queue", err)
	}
	if err := ch.Qos(max(p.cfg.Prefetch, 1), 0, false); err != nil {
		return errors.NewNetworkError(errors.ErrCodeQueueFailed, "failed to set prefetch", err)
	}

	msgs, err := ch.Consume(p.cfg.Queue, fmt.Sprintf("aligncv-worker-%d", id), false, false, false, false, nil)
	if err != nil {
		return errors.NewNetworkError(errors.ErrCodeQueueFailed, "error consuming RabbitMQ messages", err)
	}

	logger := p.logger.With("worker", id)
	logger.Info("Worker started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			handler.deliver(ctx, d)
		}
	}
}

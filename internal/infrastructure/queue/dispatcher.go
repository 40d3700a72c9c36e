package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/petclinic/auth-service/internal/api/metrics"
	"github.com/petclinic/auth-service/internal/core/domain"
	"github.com/petclinic/auth-service/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	sendAttempts   = 3
	sendTimeout    = 15 * time.Second
)

// ErrQueueFull is returned by Publish when the target worker's buffer is full.
var ErrQueueFull = errors.New("mail queue full")

// Dispatcher delivers mail jobs on a fixed set of workers. Jobs for the same
// recipient always land on the same worker so they go out in order.
type Dispatcher struct {
	workers []chan domain.Mail
	sender  ports.MailSender
	backoff time.Duration
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, sender ports.MailSender, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.Mail, numWorkers),
		sender:  sender,
		backoff: 500 * time.Millisecond,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.Mail, channelBuffer)
	}
	return d
}

// Run starts the workers and blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	done := make(chan struct{}, len(d.workers))
	for i, ch := range d.workers {
		go func(id int, ch <-chan domain.Mail) {
			d.runWorker(ctx, id, ch)
			done <- struct{}{}
		}(i, ch)
	}
	for range d.workers {
		<-done
	}
	return nil
}

// Publish queues mail for delivery without waiting for it to be sent.
func (d *Dispatcher) Publish(ctx context.Context, mail domain.Mail) error {
	idx := d.shardIndex(mail.To)
	select {
	case d.workers[idx] <- mail:
		metrics.MailQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		metrics.MailJobsTotal.WithLabelValues("dropped").Inc()
		return ErrQueueFull
	}
}

// shardIndex maps a recipient deterministically to a worker index.
func (d *Dispatcher) shardIndex(recipient string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(recipient)))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.Mail) {
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case mail, ok := <-ch:
			if !ok {
				return
			}
			metrics.MailQueueDepth.WithLabelValues(label).Dec()
			d.deliver(ctx, id, mail)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, workerID int, mail domain.Mail) {
	start := time.Now()
	var err error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err = d.sender.Send(sendCtx, mail)
		cancel()
		if err == nil {
			break
		}
		if attempt < sendAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.backoff * time.Duration(attempt)):
			}
		}
	}
	metrics.MailSendDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.MailJobsTotal.WithLabelValues("failed").Inc()
		d.log.Error().Err(err).
			Str("subject", mail.Subject).
			Int("worker_id", workerID).
			Msg("mail delivery failed")
		return
	}
	metrics.MailJobsTotal.WithLabelValues("sent").Inc()
}

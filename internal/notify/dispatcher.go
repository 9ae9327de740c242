package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"invoice-service/internal/metrics"
	"invoice-service/internal/model"
)

// ErrSkipped marks a job that had nowhere to go.
var ErrSkipped = errors.New("notification skipped")

// Renderer produces the PDF attached to invoice emails.
type Renderer interface {
	Render(inv *model.Invoice) ([]byte, error)
}

// Options configures a Dispatcher.
type Options struct {
	Workers    int
	QueueSize  int
	MaxRetries int
	// From is the sender address; jobs are skipped when it is empty.
	From string
	// ClientAppURL is the base of the payment link.
	ClientAppURL string
	// RetryInterval is the first backoff delay between send attempts.
	RetryInterval time.Duration
}

// Failure reports an invoice whose email was finally given up on.
type Failure struct {
	InvoiceID     uint
	InvoiceNumber string
	Err           error
}

// Dispatcher emails invoices from a bounded queue so request handlers never
// wait on PDF rendering or SMTP.
type Dispatcher struct {
	mailer   Mailer
	renderer Renderer
	opts     Options
	log      *zap.Logger
	metrics  *metrics.Metrics

	queue    chan model.Invoice
	failures chan Failure

	mu      sync.RWMutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewDispatcher(mailer Mailer, renderer Renderer, opts Options, log *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}
	if log == nil {
		log = zap.L()
	}
	return &Dispatcher{
		mailer:   mailer,
		renderer: renderer,
		opts:     opts,
		log:      log,
		metrics:  m,
		queue:    make(chan model.Invoice, opts.QueueSize),
		failures: make(chan Failure, opts.QueueSize),
	}
}

// Start launches the workers. They run until Stop or ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

// Stop stops accepting jobs and lets the workers drain the queue. If ctx ends
// first, pending retries are abandoned and ctx's error is returned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	cancel := d.cancel
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if cancel != nil {
		cancel()
	}
	<-done
	return err
}

// Enqueue schedules the invoice email. It never blocks: when the queue is
// full or the dispatcher is stopped the job is dropped and false returned.
func (d *Dispatcher) Enqueue(inv *model.Invoice) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.log.Warn("Notification dropped, dispatcher stopped", zap.Uint("invoice_id", inv.ID))
		d.metrics.RecordNotification(metrics.NotificationDropped)
		return false
	}

	select {
	case d.queue <- *inv:
		return true
	default:
		d.log.Warn("Notification dropped, queue full",
			zap.Uint("invoice_id", inv.ID),
			zap.Int("queue_size", d.opts.QueueSize))
		d.metrics.RecordNotification(metrics.NotificationDropped)
		return false
	}
}

// Failures delivers jobs that exhausted their retries. Failures are dropped
// if nobody drains the channel.
func (d *Dispatcher) Failures() <-chan Failure {
	return d.failures
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for inv := range d.queue {
		err := d.deliver(ctx, &inv)
		switch {
		case err == nil:
			d.metrics.RecordNotification(metrics.NotificationSent)
		case errors.Is(err, ErrSkipped):
			d.log.Info("Invoice email skipped", zap.Uint("invoice_id", inv.ID), zap.Error(err))
			d.metrics.RecordNotification(metrics.NotificationSkipped)
		default:
			d.log.Error("Failed to email invoice",
				zap.Uint("invoice_id", inv.ID),
				zap.String("invoice_number", inv.InvoiceNumber),
				zap.Error(err))
			d.metrics.RecordNotification(metrics.NotificationFailed)
			select {
			case d.failures <- Failure{InvoiceID: inv.ID, InvoiceNumber: inv.InvoiceNumber, Err: err}:
			default:
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, inv *model.Invoice) error {
	if strings.TrimSpace(inv.ClientEmail) == "" {
		return fmt.Errorf("%w: invoice has no client email", ErrSkipped)
	}
	if d.opts.From == "" {
		return fmt.Errorf("%w: no sender address configured", ErrSkipped)
	}

	pdf, err := d.renderer.Render(inv)
	if err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	msg := d.compose(inv, pdf)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.opts.RetryInterval

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		err := d.mailer.Send(ctx, msg)
		if errors.Is(err, ErrInvalidMessage) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(d.opts.MaxRetries)+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			d.log.Warn("Retrying invoice email",
				zap.Uint("invoice_id", inv.ID),
				zap.Duration("next", next),
				zap.Error(err))
		}),
	)
	return err
}

// PaymentLink is where a client pays the invoice online.
func PaymentLink(baseURL string, invoiceID uint) string {
	return fmt.Sprintf("%s/pay-invoice/%d", strings.TrimRight(baseURL, "/"), invoiceID)
}

func (d *Dispatcher) compose(inv *model.Invoice, pdf []byte) *Message {
	link := PaymentLink(d.opts.ClientAppURL, inv.ID)
	amount := inv.Total.Format()

	text := fmt.Sprintf("Dear %s,\n\nPlease find attached invoice %s from %s for %s.\n\nYou can pay online here: %s\n\nThank you,\n%s\n",
		inv.ClientName, inv.InvoiceNumber, inv.CompanyName, amount, link, inv.CompanyName)

	h := html.EscapeString
	body := fmt.Sprintf(`<p>Dear %s,</p>
<p>Please find attached invoice <strong>%s</strong> from %s for <strong>%s</strong>.</p>
<p><a href="%s">Pay this invoice online</a></p>
<p>Thank you,<br>%s</p>`,
		h(inv.ClientName), h(inv.InvoiceNumber), h(inv.CompanyName), amount, h(link), h(inv.CompanyName))

	return &Message{
		From:    d.opts.From,
		To:      inv.ClientEmail,
		Subject: fmt.Sprintf("Invoice %s from %s", inv.InvoiceNumber, inv.CompanyName),
		Text:    text,
		HTML:    body,
		Attachments: []Attachment{{
			Filename:    fmt.Sprintf("invoice-%s.pdf", inv.InvoiceNumber),
			ContentType: "application/pdf",
			Data:        pdf,
		}},
	}
}

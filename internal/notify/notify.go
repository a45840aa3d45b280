// Package notify delivers operator status messages over a configured backend.
//
// Delivery is best-effort and fire-and-forget: the scheduler never blocks on
// or fails because of a notification.
package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"lingbot/internal/config"
	"lingbot/pkg/logx"
)

var ErrQueueFull = errors.New("notifier queue full")

// Sender is one concrete delivery backend.
type Sender interface {
	Send(ctx context.Context, text string, attachments []string) error
}

// Notifier is what scheduler components depend on. Send never blocks beyond
// an enqueue and never returns an error.
type Notifier interface {
	Send(text string, attachments ...string)
}

type item struct {
	text        string
	attachments []string
}

// Service is an async notification pipeline: bounded queue, one worker,
// rate limit. Dropped messages are logged, never surfaced.
type Service struct {
	log     logx.Logger
	sender  Sender
	limiter *rate.Limiter

	queue chan item

	runMu     sync.Mutex
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}

func New(cfg config.NotifyConfig, sender Sender, log logx.Logger) *Service {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 3
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	return &Service{
		log:     log,
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		queue:   make(chan item, size),
	}
}

// NewFromConfig builds the configured backend and wraps it in a Service.
func NewFromConfig(cfg config.NotifyConfig, log logx.Logger) (*Service, error) {
	var sender Sender
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none":
		sender = nopSender{}
	case "webhook":
		sender = NewWebhook(cfg.WebhookURL)
	case "telegram":
		tg, err := NewTelegram(*cfg.Telegram)
		if err != nil {
			return nil, err
		}
		sender = tg
	default:
		return nil, errors.New("unknown notify backend: " + cfg.Backend)
	}
	return New(cfg, sender, log), nil
}

func (s *Service) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.runCancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel
	s.workerWG.Add(1)
	go func() {
		defer s.workerWG.Done()
		s.worker(runCtx)
	}()
}

// Stop drains nothing: pending messages are abandoned, matching the
// best-effort contract.
func (s *Service) Stop() {
	s.runMu.Lock()
	cancel := s.runCancel
	s.runCancel = nil
	s.runMu.Unlock()
	if cancel != nil {
		cancel()
		s.workerWG.Wait()
	}
}

func (s *Service) Send(text string, attachments ...string) {
	select {
	case s.queue <- item{text: text, attachments: attachments}:
	default:
		s.log.Warn("notification dropped: queue full", logx.Int("queue_cap", cap(s.queue)))
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case it := <-s.queue:
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			sctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			err := s.sender.Send(sctx, it.text, it.attachments)
			cancel()
			if err != nil {
				s.log.Warn("notification delivery failed", logx.Err(err))
			}
		}
	}
}

type nopSender struct{}

func (nopSender) Send(context.Context, string, []string) error { return nil }

// Nop returns a Notifier that discards everything. Used in tests.
func Nop() Notifier { return nopNotifier{} }

type nopNotifier struct{}

func (nopNotifier) Send(string, ...string) {}

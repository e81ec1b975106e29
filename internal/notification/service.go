package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/errors"
	"github.com/campaignwatch/campaignwatch/internal/logger"
)

const (
	defaultQueueSize   = 1000
	defaultSendTimeout = 5 * time.Second
)

var (
	// ErrQueueFull is returned by Notify when the queue has no free slot.
	ErrQueueFull = errors.NewStd("notification queue full")
	// ErrStopped is returned by Notify after Stop.
	ErrStopped = errors.NewStd("notification service stopped")
)

// Recorder observes delivery outcomes. observability.Metrics implements it.
type Recorder interface {
	RecordNotification(channel string, err error)
}

// Config tunes a Service.
type Config struct {
	QueueSize   int
	SendTimeout time.Duration
}

// Service routes requests to channel providers. Notify never blocks: requests
// are queued and delivered by a single worker goroutine.
type Service struct {
	providers map[string][]Provider
	log       logger.Logger
	recorder  Recorder
	timeout   time.Duration

	queue    chan *Request
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	mu       sync.RWMutex
}

// NewService creates a service and starts its worker.
func NewService(cfg Config, log logger.Logger, recorder Recorder) *Service {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	s := &Service{
		providers: make(map[string][]Provider),
		log:       log.Module("notification"),
		recorder:  recorder,
		timeout:   cfg.SendTimeout,
		queue:     make(chan *Request, cfg.QueueSize),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	go s.processLoop()
	return s
}

// Register adds a provider for channel. A channel may have several.
func (s *Service) Register(channel string, p Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[channel] = append(s.providers[channel], p)
}

// Channels lists the registered channel names.
func (s *Service) Channels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.providers))
	for name := range s.providers {
		out = append(out, name)
	}
	return out
}

// Notify queues req for delivery.
func (s *Service) Notify(_ context.Context, req *Request) error {
	select {
	case <-s.stopCh:
		return notificationError(ErrStopped, req)
	default:
	}

	select {
	case s.queue <- req:
		return nil
	default:
		return notificationError(ErrQueueFull, req)
	}
}

// Stop stops accepting requests, delivers what is queued and waits for the
// worker. Safe to call more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.done
}

func (s *Service) processLoop() {
	defer close(s.done)
	for {
		select {
		case req := <-s.queue:
			s.Deliver(context.Background(), req)
		case <-s.stopCh:
			for {
				select {
				case req := <-s.queue:
					s.Deliver(context.Background(), req)
				default:
					return
				}
			}
		}
	}
}

// Deliver sends req synchronously to every provider of its channels and
// returns the joined failures.
func (s *Service) Deliver(ctx context.Context, req *Request) error {
	s.mu.RLock()
	targets := make(map[string][]Provider, len(req.Channels))
	for _, ch := range req.Channels {
		targets[ch] = s.providers[ch]
	}
	s.mu.RUnlock()

	var errs []error
	for _, ch := range req.Channels {
		providers := targets[ch]
		if len(providers) == 0 {
			err := fmt.Errorf("no provider registered for channel %s", ch)
			s.record(ch, err)
			s.log.Warn("notification channel not configured",
				logger.String("channel", ch),
				logger.String("notification_id", req.ID))
			errs = append(errs, err)
			continue
		}
		for _, p := range providers {
			err := s.safeSend(ctx, p, req)
			s.record(ch, err)
			if err != nil {
				s.log.Error("notification delivery failed",
					logger.String("channel", ch),
					logger.String("provider", p.Name()),
					logger.String("notification_id", req.ID),
					logger.Error(err))
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return notificationError(errors.Join(errs...), req)
	}
	return nil
}

// safeSend bounds a provider call with the send timeout and turns a panic
// into an error so one provider cannot stop the worker.
func (s *Service) safeSend(ctx context.Context, p Provider, req *Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider %s panicked: %v", p.Name(), r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return p.Send(ctx, req)
}

func (s *Service) record(channel string, err error) {
	if s.recorder != nil {
		s.recorder.RecordNotification(channel, err)
	}
}

func notificationError(err error, req *Request) error {
	return errors.New(err).
		Component("notification").
		Category(errors.CategoryNotification).
		Context("notification_id", req.ID).
		Build()
}

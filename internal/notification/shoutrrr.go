package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/errors"
	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// ShoutrrrProvider delivers requests to every service URL configured for a
// channel (slack://, smtp://, telegram://, ntfy://, ...).
type ShoutrrrProvider struct {
	name    string
	urls    []string
	timeout time.Duration
	sender  sender
}

// sender is the part of the shoutrrr router the provider uses.
type sender interface {
	Send(message string, params *types.Params) []error
}

// NewShoutrrrProvider creates a provider for channel name. The URLs are
// parsed eagerly so configuration errors surface at startup.
func NewShoutrrrProvider(name string, urls []string, timeout time.Duration) (*ShoutrrrProvider, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("channel %s has no service URLs", name)
	}
	router, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.New(fmt.Errorf("invalid service URL for channel %s: %w", name, err)).
			Component("notification").
			Category(errors.CategoryValidation).
			Build()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ShoutrrrProvider{name: name, urls: urls, timeout: timeout, sender: router}, nil
}

func (p *ShoutrrrProvider) Name() string { return p.name }

func (p *ShoutrrrProvider) Send(ctx context.Context, req *Request) error {
	params := types.Params{}
	params.SetTitle(req.Title)
	params["priority"] = shoutrrrPriority(req.Priority)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan []error, 1)
	go func() { done <- p.sender.Send(req.Message, &params) }()

	select {
	case errs := <-done:
		var failed []error
		for _, err := range errs {
			if err != nil {
				failed = append(failed, err)
			}
		}
		if len(failed) > 0 {
			return fmt.Errorf("channel %s: %w", p.name, errors.Join(failed...))
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("channel %s: %w", p.name, ctx.Err())
	}
}

// shoutrrrPriority maps to the ntfy style 1-5 scale most services accept.
func shoutrrrPriority(p Priority) string {
	switch p {
	case PriorityLow:
		return "2"
	case PriorityHigh:
		return "4"
	case PriorityUrgent:
		return "5"
	default:
		return "3"
	}
}

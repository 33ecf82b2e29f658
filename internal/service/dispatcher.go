package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"teambilling/internal/channel"
	"teambilling/internal/domain"
	"teambilling/internal/logger"
	"teambilling/internal/metrics"
)

var errChannelNotConfigured = errors.New("channel not configured")

type dispatcher struct {
	channels map[string]channel.Channel
	order    []string
	timeout  time.Duration
	metrics  *metrics.Metrics
}

// NewDispatcher fans notifications out to channels. Each dispatch is bounded by timeout.
func NewDispatcher(channels []channel.Channel, timeout time.Duration, m *metrics.Metrics) Dispatcher {
	d := &dispatcher{channels: make(map[string]channel.Channel), timeout: timeout, metrics: m}
	for _, ch := range channels {
		d.channels[ch.Name()] = ch
		d.order = append(d.order, ch.Name())
	}
	return d
}

func (d *dispatcher) Dispatch(ctx context.Context, req DispatchRequest) DispatchResult {
	names := req.ChannelHints
	if len(names) == 0 {
		names = d.order
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	msg := channel.Message{Title: req.Title, Body: req.Body, Type: string(req.Type)}
	result := DispatchResult{ChannelResults: make(map[string]bool)}
	failures := make(map[string]error)
	var mu sync.Mutex

	record := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		result.ChannelResults[name] = err == nil
		if err != nil {
			failures[name] = err
		} else {
			result.AnySucceeded = true
		}
	}

	var g errgroup.Group
	for _, name := range names {
		ch, ok := d.channels[name]
		if !ok {
			record(name, errChannelNotConfigured)
			continue
		}
		if !ch.CanDeliver(req.Recipient) {
			continue
		}
		g.Go(func() error {
			err := ch.Send(ctx, req.Recipient, msg)
			record(ch.Name(), err)
			d.metrics.RecordDispatch(ch.Name(), err == nil)
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) > 0 {
		result.Err = &domain.DispatchFailure{TenantID: req.TenantID, Channels: failures}
		logger.Warn("Notification delivery failed on some channels", "tenantID", req.TenantID,
			"type", req.Type, "error", result.Err, "anySucceeded", result.AnySucceeded)
	}
	return result
}

package gateway

import (
	"context"
	"sync"

	"github.com/wolfman30/clinic-intake/internal/analyses"
)

// AnalysisStream is an open feed of inserted analyses.
type AnalysisStream interface {
	Events() <-chan analyses.Analysis
	Close() error
}

// AnalysisSource opens analysis streams.
type AnalysisSource interface {
	Open(ctx context.Context) (AnalysisStream, error)
}

// ListenerSource adapts an analyses.Listener.
type ListenerSource struct {
	Listener *analyses.Listener
}

func (s ListenerSource) Open(ctx context.Context) (AnalysisStream, error) {
	sub, err := s.Listener.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Subscription invokes a callback per inserted analysis until closed.
type Subscription struct {
	stream    AnalysisStream
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Close stops delivery and waits for any in-flight callback to return. It must not be
// called from inside the onInsert callback, which would wait on itself; a callback that
// wants to stop the subscription should hand Close to another goroutine.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.stream.Close()
		<-s.done
	})
	return s.closeErr
}

// Done is closed once the callback will no longer be invoked.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// SubscribeToAnalyses calls onInsert once per newly inserted analysis, from a single
// goroutine. Opening blocks until the source is listening or ctx ends. The caller must
// Close the returned subscription.
func (g *Gateway) SubscribeToAnalyses(ctx context.Context, onInsert func(analyses.Analysis)) (*Subscription, error) {
	if g.realtime == nil {
		return nil, ErrRealtimeUnavailable
	}
	stream, err := g.realtime.Open(ctx)
	if err != nil {
		if ctx.Err() == nil {
			g.logger.Error("analyses subscription failed", "error", err)
		}
		return nil, err
	}
	sub := &Subscription{stream: stream, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		for analysis := range stream.Events() {
			g.metrics.ObserveAnalysisPushed()
			onInsert(analysis)
		}
	}()
	g.logger.Info("analyses subscription opened")
	return sub, nil
}

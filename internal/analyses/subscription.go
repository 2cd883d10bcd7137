package analyses

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// Loader resolves a notified analysis id to its row.
type Loader interface {
	GetByID(ctx context.Context, id string) (*Analysis, error)
}

// Deduper reports whether an analysis id is being delivered for the first time
// within scope. Each subscription uses its own scope.
type Deduper interface {
	FirstDelivery(ctx context.Context, scope, id string) (bool, error)
}

type notificationSource interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

type insertNotification struct {
	ID string `json:"id"`
}

// Listener opens LISTEN subscriptions on the analyses insert channel.
type Listener struct {
	channel      string
	loader       Loader
	dedup        Deduper
	logger       *logging.Logger
	pingInterval time.Duration
	buffer       int
	open         func() notificationSource
}

// NewListener builds a listener that reconnects to dsn on its own.
func NewListener(dsn, channel string, loader Loader, logger *logging.Logger) *Listener {
	if loader == nil {
		panic("analyses: loader required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	l := &Listener{
		channel:      channel,
		loader:       loader,
		logger:       logger,
		pingInterval: 90 * time.Second,
		buffer:       16,
	}
	l.open = func() notificationSource {
		return pq.NewListener(dsn, 2*time.Second, time.Minute, l.reportEvent)
	}
	return l
}

// WithDeduper drops notifications whose analysis id was already delivered.
func (l *Listener) WithDeduper(d Deduper) *Listener {
	l.dedup = d
	return l
}

// WithPingInterval sets how often the idle connection is health-checked.
func (l *Listener) WithPingInterval(interval time.Duration) *Listener {
	if interval > 0 {
		l.pingInterval = interval
	}
	return l
}

func (l *Listener) reportEvent(event pq.ListenerEventType, err error) {
	switch event {
	case pq.ListenerEventConnected:
		l.logger.Info("analyses listener connected", "channel", l.channel)
	case pq.ListenerEventReconnected:
		l.logger.Info("analyses listener reconnected", "channel", l.channel)
	case pq.ListenerEventDisconnected:
		l.logger.Warn("analyses listener disconnected", "channel", l.channel, "error", err)
	case pq.ListenerEventConnectionAttemptFailed:
		l.logger.Warn("analyses listener connection attempt failed", "channel", l.channel, "error", err)
	}
}

// Subscribe starts listening. It blocks until the first connection is made or ctx
// ends. The returned subscription must be closed by the caller.
func (l *Listener) Subscribe(ctx context.Context) (*Subscription, error) {
	src := l.open()
	listened := make(chan error, 1)
	go func() {
		listened <- src.Listen(l.channel)
	}()
	select {
	case err := <-listened:
		if err != nil {
			_ = src.Close()
			return nil, fmt.Errorf("analyses: listen %s: %w", l.channel, err)
		}
	case <-ctx.Done():
		// Closing the source releases the pending Listen.
		_ = src.Close()
		return nil, fmt.Errorf("analyses: listen %s: %w", l.channel, ctx.Err())
	}
	runCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		events: make(chan Analysis, l.buffer),
		src:    src,
		scope:  uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go sub.run(runCtx, l)
	return sub, nil
}

// Subscription is a live stream of inserted analyses. Delivery is at-least-once
// unless a Deduper is configured, and ordering is not guaranteed.
type Subscription struct {
	events    chan Analysis
	src       notificationSource
	scope     string
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Events yields analyses as they are inserted. The channel closes when the subscription ends.
func (s *Subscription) Events() <-chan Analysis {
	return s.events
}

// Close stops the stream and releases the database connection.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		s.closeErr = s.src.Close()
	})
	return s.closeErr
}

func (s *Subscription) run(ctx context.Context, l *Listener) {
	defer close(s.done)
	defer close(s.events)

	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	notifications := s.src.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go func() {
				if err := s.src.Ping(); err != nil {
					l.logger.Debug("analyses listener ping failed", "error", err)
				}
			}()
		case n, ok := <-notifications:
			if !ok {
				return
			}
			// pq sends nil after a reconnect; inserts made while disconnected are lost.
			if n == nil {
				continue
			}
			analysis, ok := s.resolve(ctx, l, n)
			if !ok {
				continue
			}
			select {
			case s.events <- *analysis:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Subscription) resolve(ctx context.Context, l *Listener, n *pq.Notification) (*Analysis, bool) {
	var payload insertNotification
	if err := json.Unmarshal([]byte(n.Extra), &payload); err != nil || payload.ID == "" {
		l.logger.Warn("ignoring malformed analysis notification", "channel", n.Channel, "error", err)
		return nil, false
	}
	analysis, err := l.loader.GetByID(ctx, payload.ID)
	if err != nil {
		l.logger.Error("failed to load notified analysis", "analysis_id", payload.ID, "error", err)
		return nil, false
	}
	// Claim only after the row loaded so a failed load can be redelivered.
	if l.dedup != nil {
		first, err := l.dedup.FirstDelivery(ctx, s.scope, payload.ID)
		if err != nil {
			l.logger.Warn("analysis dedup check failed", "analysis_id", payload.ID, "error", err)
		} else if !first {
			l.logger.Debug("skipping duplicate analysis notification", "analysis_id", payload.ID)
			return nil, false
		}
	}
	return analysis, true
}

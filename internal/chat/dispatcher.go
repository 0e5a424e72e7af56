// ABOUTME: Best-effort push of persisted messages to a recipient's live connections
// ABOUTME: Detached worker queue so durability never waits on delivery

package chat

import (
	"log/slog"
	"sync"

	"github.com/taskhaven/chat-gateway/internal/presence"
	"github.com/taskhaven/chat-gateway/internal/store"
)

const (
	defaultDispatchWorkers = 4
	defaultDispatchQueue   = 256
)

// ConnLookup defines what the dispatcher needs from the presence registry.
type ConnLookup interface {
	Lookup(userID string) []presence.Conn
}

// Dispatcher pushes freshly persisted messages to the recipient's live
// connections. Dispatch is fire-and-forget: the caller of Send never waits on
// delivery, and delivery failures are logged and dropped. An offline
// recipient is not an error - the message is already durable and will be
// observed on the next history or inbox pull.
type Dispatcher struct {
	registry ConnLookup
	queue    chan *store.Message
	logger   *slog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewDispatcher creates a dispatcher and starts its worker pool. Zero or
// negative workers/queueSize select the defaults. Pass nil logger for default.
func NewDispatcher(registry ConnLookup, workers, queueSize int, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = defaultDispatchWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultDispatchQueue
	}

	d := &Dispatcher{
		registry: registry,
		queue:    make(chan *store.Message, queueSize),
		logger:   logger.With("component", "dispatcher"),
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}

	return d
}

// Dispatch enqueues a persisted message for live delivery. Non-blocking: if
// the queue is full the live push is dropped; the recipient still catches up
// from history.
func (d *Dispatcher) Dispatch(msg *store.Message) {
	select {
	case d.queue <- msg:
	default:
		d.logger.Warn("dispatch queue full, dropping live delivery",
			"message_id", msg.ID,
			"recipient_id", msg.RecipientID)
	}
}

// Close stops accepting messages and waits for in-flight deliveries to drain.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(msg)
	}
}

// deliver pushes the message to every live connection owned by the
// recipient. A failed push to one connection (a stale handle, say) must not
// abort delivery to the recipient's other connections.
func (d *Dispatcher) deliver(msg *store.Message) {
	conns := d.registry.Lookup(msg.RecipientID)
	if len(conns) == 0 {
		d.logger.Debug("recipient offline, message remains durable",
			"message_id", msg.ID,
			"recipient_id", msg.RecipientID)
		return
	}

	delivered := 0
	for _, conn := range conns {
		if err := conn.PushMessage(msg); err != nil {
			d.logger.Debug("message push failed",
				"error", err,
				"message_id", msg.ID,
				"recipient_id", msg.RecipientID)
			continue
		}
		delivered++
	}

	d.logger.Debug("message dispatched",
		"message_id", msg.ID,
		"recipient_id", msg.RecipientID,
		"connections", len(conns),
		"delivered", delivered)
}

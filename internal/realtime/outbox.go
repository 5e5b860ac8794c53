package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/statusbeacon/beacon/internal/domain"
)

// Loader fetches the current state of a resource for broadcasting.
type Loader interface {
	// LoadIncident returns the incident and its owning service. The
	// service decides whether the event reaches the public channel.
	LoadIncident(ctx context.Context, id string) (*domain.Incident, *domain.Service, error)
	LoadService(ctx context.Context, id string) (*domain.Service, error)
}

type noticeKind int

const (
	noticeIncidentChanged noticeKind = iota
	noticeIncidentDeleted
	noticeServiceChanged
	noticeServiceDeleted
)

type notice struct {
	kind noticeKind
	id   string
	org  domain.OrgRef
}

// Outbox decouples write transactions from event delivery. Enqueue
// methods never block: when the queue is full the notice is dropped and
// counted, and the write path proceeds unaffected.
type Outbox struct {
	hub    *Hub
	loader Loader
	logger *slog.Logger

	queue   chan notice
	workers int

	loadTimeout time.Duration

	wg sync.WaitGroup

	// mu orders enqueues against Close: Close closes the queue under the
	// write lock, enqueues hold the read lock while sending.
	mu     sync.RWMutex
	closed bool
}

// OutboxConfig tunes the outbox queue.
type OutboxConfig struct {
	QueueSize   int
	Workers     int
	LoadTimeout time.Duration
}

// NewOutbox creates an outbox. Call Start to launch its dispatchers.
func NewOutbox(hub *Hub, loader Loader, logger *slog.Logger, cfg OutboxConfig) *Outbox {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 5 * time.Second
	}
	return &Outbox{
		hub:         hub,
		loader:      loader,
		logger:      logger,
		queue:       make(chan notice, cfg.QueueSize),
		workers:     cfg.Workers,
		loadTimeout: cfg.LoadTimeout,
	}
}

// Start launches the dispatcher workers. They stop when ctx is
// cancelled or Close is called, after draining the queue.
func (o *Outbox) Start(ctx context.Context) {
	for i := 0; i < o.workers; i++ {
		o.wg.Add(1)
		go o.run(ctx)
	}
}

// Close stops accepting notices and waits for the workers to drain the
// queue. Safe to call more than once and concurrently with enqueues.
func (o *Outbox) Close() {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()
	o.wg.Wait()
}

// IncidentChanged enqueues a broadcast for a created or updated incident.
func (o *Outbox) IncidentChanged(incidentID string, org domain.OrgRef) {
	o.enqueue(notice{kind: noticeIncidentChanged, id: incidentID, org: org})
}

// IncidentDeleted enqueues a deletion broadcast. The organization ref is
// captured by the caller before the row disappears.
func (o *Outbox) IncidentDeleted(incidentID string, org domain.OrgRef) {
	o.enqueue(notice{kind: noticeIncidentDeleted, id: incidentID, org: org})
}

// ServiceChanged enqueues a broadcast for a service whose status or
// attributes changed.
func (o *Outbox) ServiceChanged(serviceID string, org domain.OrgRef) {
	o.enqueue(notice{kind: noticeServiceChanged, id: serviceID, org: org})
}

// ServiceDeleted enqueues a deletion broadcast for a soft-deleted service.
func (o *Outbox) ServiceDeleted(serviceID string, org domain.OrgRef) {
	o.enqueue(notice{kind: noticeServiceDeleted, id: serviceID, org: org})
}

func (o *Outbox) enqueue(n notice) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return
	}

	select {
	case o.queue <- n:
	default:
		droppedNotices.Inc()
		o.logger.Warn("outbox queue full, dropping notice", "kind", n.kind, "id", n.id)
	}
}

func (o *Outbox) run(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-o.queue:
			if !ok {
				return
			}
			o.dispatch(n)
		}
	}
}

func (o *Outbox) dispatch(n notice) {
	ctx, cancel := context.WithTimeout(context.Background(), o.loadTimeout)
	defer cancel()

	switch n.kind {
	case noticeIncidentChanged:
		incident, service, err := o.loader.LoadIncident(ctx, n.id)
		if err != nil {
			o.logger.Error("failed to load incident for broadcast", "incident_id", n.id, "error", err)
			return
		}
		o.publish(n.org, Event{Type: EventTypeIncident, Data: incident}, service.IsPublic())

	case noticeIncidentDeleted:
		event := Event{Type: EventTypeIncident, Data: DeletionPayload{ID: n.id, IsDeleted: true}}
		o.publish(n.org, event, true)

	case noticeServiceChanged:
		service, err := o.loader.LoadService(ctx, n.id)
		if err != nil {
			o.logger.Error("failed to load service for broadcast", "service_id", n.id, "error", err)
			return
		}
		// The org channel carries the full record; the public channel
		// only ever sees the limited summary.
		o.hub.Publish(OrgChannel(n.org), Event{Type: EventTypeServiceStatus, Data: service})
		if service.IsPublic() {
			o.hub.Publish(PublicChannel(n.org), Event{Type: EventTypeServiceStatus, Data: service.Summary()})
		}

	case noticeServiceDeleted:
		event := Event{Type: EventTypeServiceStatus, Data: DeletionPayload{ID: n.id, IsDeleted: true}}
		o.publish(n.org, event, true)
	}
}

// publish sends the event to the organization channel and, when the
// resource is publicly visible, to the public status channel as well.
func (o *Outbox) publish(org domain.OrgRef, event Event, public bool) {
	o.hub.Publish(OrgChannel(org), event)
	if public {
		o.hub.Publish(PublicChannel(org), event)
	}
}

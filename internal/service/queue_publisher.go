// Package service holds the application layer between the HTTP handlers and
// the core packages: ticket sales with history recording, event publishing
// and verification with caching and report storage.
package service

import (
    "context"
    "encoding/json"
    "fmt"
    "log"
    "sync"
    "sync/atomic"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    q "github.com/iliyamo/route-ticketing/internal/queue"
)

// Publisher sends events to the durable q.QueueName queue.  The connection
// is dialled on first use and dropped after any failure, so the next
// publish redials.  Messages are persistent.
type Publisher struct {
    url string

    mu   sync.Mutex
    conn *amqp.Connection
    ch   *amqp.Channel
}

func NewPublisher(url string) *Publisher { return &Publisher{url: url} }

func (p *Publisher) ensure() error {
    if p.ch != nil && !p.ch.IsClosed() {
        return nil
    }
    p.reset()
    conn, err := amqp.Dial(p.url)
    if err != nil {
        return fmt.Errorf("dial: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return fmt.Errorf("channel open: %w", err)
    }
    if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return fmt.Errorf("queue declare: %w", err)
    }
    p.conn, p.ch = conn, ch
    return nil
}

func (p *Publisher) reset() {
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.conn != nil {
        _ = p.conn.Close()
    }
    p.conn, p.ch = nil, nil
}

// Publish sends one event.  Errors are logged and returned; callers on the
// request path ignore them.
func (p *Publisher) Publish(ctx context.Context, ev q.Event) error {
    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }

    p.mu.Lock()
    defer p.mu.Unlock()
    if err := p.ensure(); err != nil {
        log.Printf("rabbitmq: %v", err)
        return err
    }
    err = p.ch.PublishWithContext(ctx, "", q.QueueName, false, false, amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    })
    if err != nil {
        log.Printf("rabbitmq: publish failed: %v", err)
        p.reset()
        return err
    }
    return nil
}

// Close drops the broker connection.
func (p *Publisher) Close() {
    p.mu.Lock()
    p.reset()
    p.mu.Unlock()
}

// EventPublisher is what a Dispatcher drains into.
type EventPublisher interface {
    Publish(ctx context.Context, ev q.Event) error
}

// Dispatcher decouples request handling from the broker: Emit never blocks
// and drops the event when the buffer is full.
type Dispatcher struct {
    pub     EventPublisher
    events  chan q.Event
    dropped atomic.Int64
}

func NewDispatcher(pub EventPublisher, buffer int) *Dispatcher {
    if buffer < 1 {
        buffer = 1
    }
    return &Dispatcher{pub: pub, events: make(chan q.Event, buffer)}
}

// Emit queues ev for publishing.  A nil Dispatcher discards it.
func (d *Dispatcher) Emit(ev q.Event) {
    if d == nil {
        return
    }
    if ev.At == "" {
        ev.At = time.Now().UTC().Format(time.RFC3339Nano)
    }
    select {
    case d.events <- ev:
    default:
        if n := d.dropped.Add(1); n == 1 || n%1000 == 0 {
            log.Printf("dispatcher: event buffer full, %d events dropped", n)
        }
    }
}

// Dropped returns how many events Emit discarded.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Run publishes queued events until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
    for {
        select {
        case <-ctx.Done():
            return
        case ev := <-d.events:
            pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
            _ = d.pub.Publish(pctx, ev)
            cancel()
        }
    }
}

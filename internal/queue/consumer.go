package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Archive file names inside the consumer's directory.
const (
    TicketLog  = "tickets.log"
    VerdictLog = "verdicts.log"
)

// StartTicketConsumer consumes QueueName until ctx is done.  Sale and refund
// lines are appended to dir/tickets.log, verdicts to dir/verdicts.log.  The
// broker connection is redialled with exponential backoff; a message that
// cannot be archived is rejected without requeue so one bad payload cannot
// stall the queue.
func StartTicketConsumer(ctx context.Context, url, dir string) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Printf("ticket-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            select {
            case <-ctx.Done():
                return ctx.Err()
            case <-time.After(backoff):
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, dir)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Printf("ticket-consumer: consume loop ended: %v; reconnecting", err)
        select {
        case <-ctx.Done():
            return ctx.Err()
        case <-time.After(2 * time.Second):
        }
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, dir string) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("ticket-consumer: set QoS failed: %v", err)
    }
    if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(QueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := HandleMessage(dir, d.Body); err != nil {
                log.Printf("ticket-consumer: handle message failed: %v", err)
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// HandleMessage archives one event body under dir.
func HandleMessage(dir string, body []byte) error {
    var ev Event
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }

    var name, line string
    switch ev.Kind {
    case KindSold, KindRefunded:
        if ev.Line == "" {
            return fmt.Errorf("%s event without a trace line", ev.Kind)
        }
        name, line = TicketLog, ev.Line+"\n"
    case KindVerdict:
        name = VerdictLog
        line = fmt.Sprintf("[%s] Verification %s | report_id=%s | records=%d\n", ev.At, ev.Outcome, ev.ReportID, ev.Records)
    default:
        return fmt.Errorf("unknown event kind %q", ev.Kind)
    }

    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", dir, err)
    }
    f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

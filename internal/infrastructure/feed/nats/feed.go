package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/medbrief/internal/core/domain"
	"github.com/kirillkom/medbrief/internal/core/ports"
	"github.com/kirillkom/medbrief/internal/infrastructure/resilience"
)

// Feed is the realtime change feed: every record update is published on
// "<prefix>.<record id>" so a watch only receives its own record.
type Feed struct {
	conn     *nats.Conn
	prefix   string
	executor *resilience.Executor
}

type Options struct {
	ClientName           string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, prefix string, options Options) (*Feed, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	name := options.ClientName
	if name == "" {
		name = "medbrief"
	}

	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Feed{
		conn:     conn,
		prefix:   normalizePrefix(prefix),
		executor: options.ResilienceExecutor,
	}, nil
}

func (f *Feed) Close() {
	if f.conn != nil {
		f.conn.Close()
	}
}

func (f *Feed) PublishRecordUpdate(ctx context.Context, update domain.RecordUpdate) error {
	subject, err := subjectFor(f.prefix, update.ID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal record update: %w", err)
	}

	call := func(_ context.Context) error {
		if err := f.conn.Publish(subject, data); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if f.executor != nil {
		err = f.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(err)
}

// SubscribeRecord delivers updates for one record until the subscription is
// removed. Malformed messages are logged and dropped.
func (f *Feed) SubscribeRecord(ctx context.Context, recordID string, handler func(domain.RecordUpdate)) (ports.Subscription, error) {
	subject, err := subjectFor(f.prefix, recordID)
	if err != nil {
		return nil, err
	}

	sub, err := f.conn.Subscribe(subject, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		update, err := decodeUpdate(recordID, msg.Data)
		if err != nil {
			slog.Warn("feed_decode_error", "record_id", recordID, "error", err)
			return
		}
		handler(update)
	})
	if err != nil {
		return nil, wrapTemporaryIfNeeded(fmt.Errorf("nats subscribe: %w", err))
	}
	flushCtx, cancel := flushContext(ctx)
	defer cancel()
	if err := f.conn.FlushWithContext(flushCtx); err != nil {
		_ = sub.Unsubscribe()
		return nil, wrapTemporaryIfNeeded(fmt.Errorf("nats flush: %w", err))
	}
	return sub, nil
}

// Connected reports whether the connection is currently usable.
func (f *Feed) Connected() bool {
	return f.conn != nil && f.conn.IsConnected()
}

// FlushWithContext requires a deadline.
func flushContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return "medbrief.summaries"
	}
	return prefix
}

func subjectFor(prefix, recordID string) (string, error) {
	recordID = strings.TrimSpace(recordID)
	if recordID == "" || strings.ContainsAny(recordID, ".*> \t\r\n") {
		return "", domain.WrapError(domain.ErrValidation, "feed subject", fmt.Errorf("invalid record id %q", recordID))
	}
	return prefix + "." + recordID, nil
}

func decodeUpdate(recordID string, data []byte) (domain.RecordUpdate, error) {
	var update domain.RecordUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return domain.RecordUpdate{}, fmt.Errorf("decode record update: %w", err)
	}
	if update.ID == "" {
		update.ID = recordID
	}
	if update.ID != recordID {
		return domain.RecordUpdate{}, errors.New("record id mismatch")
	}
	return update, nil
}

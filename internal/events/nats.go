package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const DefaultSubjectPrefix = "watchbuddy"

var tracer = otel.Tracer("watch-buddy/events")

// Connect dials NATS and keeps reconnecting for the life of the process.
func Connect(url, name string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "module", "events", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "module", "events", "url", nc.ConnectedUrl())
		}),
	)
}

type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

type NATSPublisher struct {
	nc     msgPublisher
	prefix string
	log    *slog.Logger
}

func NewNATSPublisher(nc msgPublisher, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{
		nc:     nc,
		prefix: prefix,
		log:    slog.Default().With("module", "events"),
	}
}

// Subject builds <prefix>.<type>[.<room>], e.g. watchbuddy.member.joined.ABC123.
func Subject(prefix string, e Event) string {
	s := prefix + "." + string(e.Type)
	if e.RoomID != "" {
		s += "." + string(e.RoomID)
	}
	return s
}

func (p *NATSPublisher) Publish(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		p.log.Warn("encode event failed", "type", e.Type, "err", err)
		return
	}
	subject := Subject(p.prefix, e)

	ctx, span := tracer.Start(ctx, subject+" publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("messaging.destination.name", subject),
			attribute.Int("messaging.message.payload_size_bytes", len(data)),
		),
	)
	defer span.End()

	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	if err := p.nc.PublishMsg(msg); err != nil {
		span.RecordError(err)
		p.log.Warn("publish event failed", "subject", subject, "err", err)
	}
}

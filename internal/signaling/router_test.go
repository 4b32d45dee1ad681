package signaling

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
	"github.com/cwrk-planet/watch-buddy/internal/presence"
	"github.com/cwrk-planet/watch-buddy/internal/protocol"
	"github.com/cwrk-planet/watch-buddy/internal/telemetry"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type captureConn struct {
	mu   sync.Mutex
	msgs []protocol.Message
}

func (c *captureConn) Send(m protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
	return nil
}

func (c *captureConn) Close() error { return nil }

func (c *captureConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func setup(t *testing.T) (*Router, *presence.Registry, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	m, err := telemetry.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	reg := presence.NewRegistry()
	return NewRouter(reg, m), reg, reader
}

func counter(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, mt := range sm.Metrics {
			if mt.Name != name {
				continue
			}
			for _, dp := range mt.Data.(metricdata.Sum[int64]).DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestRoute_Delivers(t *testing.T) {
	router, reg, reader := setup(t)
	alice := &captureConn{}
	bob := &captureConn{}
	reg.Add(presence.NewHandle("R", domain.Member{Identity: "alice", Name: "A"}, alice))
	reg.Add(presence.NewHandle("R", domain.Member{Identity: "bob", Name: "B"}, bob))

	payload := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	ok := router.Route(context.Background(), "R", "alice", protocol.Signal{Type: protocol.TypeOffer, To: "bob", Payload: payload})
	if !ok {
		t.Fatal("expected delivery")
	}
	if alice.count() != 0 || bob.count() != 1 {
		t.Fatalf("deliveries: alice=%d bob=%d", alice.count(), bob.count())
	}

	got := bob.msgs[0]
	if got.Type != protocol.TypeOffer {
		t.Fatalf("type = %s", got.Type)
	}
	d := got.Payload.(protocol.SignalDelivery)
	if d.From != "alice" || string(d.Payload) != string(payload) {
		t.Fatalf("unexpected delivery %+v", d)
	}
	if n := counter(t, reader, "signaling_routed_total"); n != 1 {
		t.Fatalf("signaling_routed_total = %d", n)
	}
}

func TestRoute_MissIsSilent(t *testing.T) {
	router, reg, reader := setup(t)
	alice := &captureConn{}
	reg.Add(presence.NewHandle("R", domain.Member{Identity: "alice", Name: "A"}, alice))
	other := &captureConn{}
	reg.Add(presence.NewHandle("OTHER", domain.Member{Identity: "bob", Name: "B"}, other))

	ok := router.Route(context.Background(), "R", "alice", protocol.Signal{
		Type: protocol.TypeICE, To: "bob", Payload: json.RawMessage(`{"candidate":""}`),
	})
	if ok {
		t.Fatal("bob is not in room R, route must miss")
	}
	if alice.count() != 0 || other.count() != 0 {
		t.Fatalf("miss delivered something: alice=%d other=%d", alice.count(), other.count())
	}
	if n := counter(t, reader, "signaling_misses_total"); n != 1 {
		t.Fatalf("signaling_misses_total = %d, want 1", n)
	}
}

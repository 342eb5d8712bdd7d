package telemetry_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/reglet-dev/dlhost/domain/entities"
	"github.com/reglet-dev/dlhost/host"
	"github.com/reglet-dev/dlhost/infrastructure/telemetry"
	"github.com/reglet-dev/dlhost/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	"go.opentelemetry.io/otel/trace/noop"
)

type recordingSpan struct {
	noop.Span
	name   string
	attrs  map[attribute.Key]attribute.Value
	events []string
	errs   []error
	status codes.Code
	ended  bool
}

func (s *recordingSpan) SetAttributes(kv ...attribute.KeyValue) {
	for _, a := range kv {
		s.attrs[a.Key] = a.Value
	}
}
func (s *recordingSpan) AddEvent(name string, _ ...trace.EventOption) {
	s.events = append(s.events, name)
}
func (s *recordingSpan) RecordError(err error, _ ...trace.EventOption) { s.errs = append(s.errs, err) }
func (s *recordingSpan) SetStatus(c codes.Code, _ string)              { s.status = c }
func (s *recordingSpan) End(...trace.SpanEndOption)                    { s.ended = true }

type recordingTracer struct {
	embedded.Tracer
	spans []*recordingSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	s := &recordingSpan{name: name, attrs: map[attribute.Key]attribute.Value{}}
	cfg := trace.NewSpanStartConfig(opts...)
	s.SetAttributes(cfg.Attributes()...)
	t.spans = append(t.spans, s)
	return trace.ContextWithSpan(ctx, s), s
}

func newHost(t *testing.T, fn testutil.ExchangeFunc, tracer trace.Tracer) *host.Host {
	t.Helper()
	loader := testutil.NewFakeLoader().Register("/p.so", &testutil.FakePlugin{Exchange: fn})
	h, err := host.New(
		host.WithLoader(loader),
		host.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		host.WithFingerprint(false),
		host.WithMiddleware(telemetry.Middleware(tracer)),
	)
	require.NoError(t, err)
	require.NoError(t, h.Load(context.Background(), "/p.so"))
	return h
}

func TestMiddleware_Success(t *testing.T) {
	tracer := &recordingTracer{}
	h := newHost(t, testutil.WriteContent([]byte("abc")), tracer)

	_, err := h.Exchange(context.Background(), 3, true)
	require.NoError(t, err)

	require.Len(t, tracer.spans, 1)
	s := tracer.spans[0]
	assert.Equal(t, telemetry.SpanName, s.name)
	assert.True(t, s.ended)
	assert.Equal(t, codes.Ok, s.status)
	assert.Equal(t, entities.DefaultExchangeSymbol, s.attrs["dlhost.symbol"].AsString())
	assert.Equal(t, int64(1), s.attrs["dlhost.generation"].AsInt64())
	assert.Equal(t, int64(3), s.attrs["dlhost.count"].AsInt64())
	assert.True(t, s.attrs["dlhost.exact"].AsBool())
}

func TestMiddleware_DeclinedIsNotAnError(t *testing.T) {
	tracer := &recordingTracer{}
	h := newHost(t, testutil.FixedCount(0), tracer)

	_, err := h.Exchange(context.Background(), 8, false)
	require.Error(t, err)

	s := tracer.spans[0]
	assert.Equal(t, []string{"declined"}, s.events)
	assert.Empty(t, s.errs)
	assert.Equal(t, codes.Unset, s.status)
}

func TestMiddleware_ViolationIsAnError(t *testing.T) {
	tracer := &recordingTracer{}
	h := newHost(t, testutil.FixedCount(99), tracer)

	_, err := h.Exchange(context.Background(), 8, true)
	require.Error(t, err)

	s := tracer.spans[0]
	assert.Len(t, s.errs, 1)
	assert.Equal(t, codes.Error, s.status)
}

func TestMiddleware_NoopTracer(t *testing.T) {
	h := newHost(t, testutil.FixedCount(1), noop.NewTracerProvider().Tracer("test"))

	reply, err := h.Exchange(context.Background(), 8, true)
	require.NoError(t, err)
	assert.Equal(t, 1, reply.WrittenOrNeeded)
}

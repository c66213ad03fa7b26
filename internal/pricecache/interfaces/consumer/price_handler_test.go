package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/wyfcoding/pricecache/internal/pricecache/application"
	"github.com/wyfcoding/pricecache/internal/pricecache/domain"
	"github.com/wyfcoding/pricecache/pkg/metrics"
	"github.com/wyfcoding/pricecache/pkg/mq"
)

// fakeSource 依次返回预置消息，耗尽后阻塞到 ctx 取消
type fakeSource struct {
	mu        sync.Mutex
	messages  []*mq.Message
	fetchErrs int
	committed []*mq.Message
	drained   chan struct{}
}

func (s *fakeSource) Fetch(ctx context.Context) (*mq.Message, error) {
	s.mu.Lock()
	if s.fetchErrs > 0 {
		s.fetchErrs--
		s.mu.Unlock()
		return nil, errors.New("broker unavailable")
	}
	if len(s.messages) > 0 {
		m := s.messages[0]
		s.messages = s.messages[1:]
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *fakeSource) Commit(_ context.Context, msgs ...*mq.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, msgs...)
	if len(s.messages) == 0 && s.drained != nil {
		close(s.drained)
		s.drained = nil
	}
	return nil
}

type fakeDLQ struct {
	mu      sync.Mutex
	reasons []string
}

func (d *fakeDLQ) Send(_ context.Context, _ *mq.Message, reason string, _ error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reasons = append(d.reasons, reason)
	return nil
}

func newHandler(t *testing.T, src MessageSource, dlq DeadLetterSink) (*PriceHandler, *domain.PriceCache, *metrics.Metrics) {
	t.Helper()
	m := metrics.New("test")
	if err := m.Register(prometheus.NewRegistry()); err != nil {
		t.Fatal(err)
	}
	cache := domain.NewPriceCache(30)
	h := NewPriceHandler(src, dlq, application.NewPriceApplicationService(cache, m), m)
	h.retryInitial = time.Millisecond
	h.retryMax = time.Millisecond
	return h, cache, m
}

func TestHandleRoutesMessages(t *testing.T) {
	dlq := &fakeDLQ{}
	h, cache, m := newHandler(t, &fakeSource{}, dlq)
	ctx := context.Background()

	h.Handle(ctx, mq.NewMessage("prices", "V1", []byte(`{"vendor_id":"V1","instrument_id":"I1","price_date":"2024-01-10","price":"99.5"}`)))
	h.Handle(ctx, mq.NewMessage("prices", "V1", []byte(`not json`)))
	h.Handle(ctx, mq.NewMessage("prices", "V1", []byte(`{"vendor_id":"V1","instrument_id":"","price_date":"2024-01-10","price":"1"}`)))

	date, _ := domain.ParseTradingDate("2024-01-10")
	if got := cache.InstrumentPrices("I1", date); got["V1"].Price.String() != "99.5" {
		t.Errorf("valid message not applied: %+v", got)
	}

	if len(dlq.reasons) != 2 || dlq.reasons[0] != ReasonInvalidJSON || dlq.reasons[1] != ReasonInvalidPrice {
		t.Errorf("unexpected dead letters: %v", dlq.reasons)
	}
	if got := testutil.ToFloat64(m.DeadLetters); got != 2 {
		t.Errorf("expected 2 dead letters, got %v", got)
	}
}

func TestRunCommitsEveryMessage(t *testing.T) {
	drained := make(chan struct{})
	src := &fakeSource{
		fetchErrs: 2,
		drained:   drained,
		messages: []*mq.Message{
			mq.NewMessage("prices", "V1", []byte(`{"vendor_id":"V1","instrument_id":"I1","price_date":"2024-01-10","price":"1"}`)),
			mq.NewMessage("prices", "V2", []byte(`{broken`)),
			mq.NewMessage("prices", "V2", []byte(`{"vendor_id":"V2","instrument_id":"I1","price_date":"2024-01-10","price":"2"}`)),
		},
	}
	h, cache, _ := newHandler(t, src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain messages")
	}
	cancel()

	if err := <-done; err != nil {
		t.Errorf("expected clean shutdown, got %v", err)
	}

	src.mu.Lock()
	committed := len(src.committed)
	src.mu.Unlock()
	if committed != 3 {
		t.Errorf("expected 3 commits including poison message, got %d", committed)
	}

	date, _ := domain.ParseTradingDate("2024-01-10")
	if got := cache.InstrumentPrices("I1", date); len(got) != 2 {
		t.Errorf("expected 2 vendors, got %+v", got)
	}
}

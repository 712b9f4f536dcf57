package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestKafkaPublisherRoutesByType(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, "shop.orders", "shop.baskets", 8)

	p.Publish("o1", NewEnvelope(OrderCreated, map[string]string{"ref": "2026-00001"}))
	p.Publish("b1", NewEnvelope(BasketExpired, map[string]string{"basket_id": "b1"}))
	p.Close()

	require.Len(t, w.msgs, 2)
	assert.True(t, w.closed)

	assert.Equal(t, "shop.orders", w.msgs[0].Topic)
	assert.Equal(t, "o1", string(w.msgs[0].Key))
	assert.Equal(t, "shop.baskets", w.msgs[1].Topic)
	assert.Equal(t, []kafka.Header{{Key: "type", Value: []byte(BasketExpired)}}, w.msgs[1].Headers)

	var got struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, OrderCreated, got.Type)
	assert.Equal(t, "2026-00001", got.Data["ref"])
}

func TestKafkaPublisherDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	w := &blockingWriter{fakeWriter: &fakeWriter{}, block: block}
	p := newKafkaPublisher(w, "o", "b", 1)

	// The first message is taken by the loop and blocks in WriteMessages,
	// the second fills the queue and the third is dropped.
	p.Publish("k", NewEnvelope(OrderCreated, nil))
	w.waitStarted()
	p.Publish("k", NewEnvelope(OrderCreated, nil))
	p.Publish("k", NewEnvelope(OrderCreated, nil))

	close(block)
	p.Close()
	assert.Len(t, w.msgs, 2)
}

type blockingWriter struct {
	*fakeWriter
	block   chan struct{}
	once    sync.Once
	started chan struct{}
	init    sync.Once
}

func (b *blockingWriter) startedCh() chan struct{} {
	b.init.Do(func() { b.started = make(chan struct{}) })
	return b.started
}

func (b *blockingWriter) waitStarted() { <-b.startedCh() }

func (b *blockingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	b.once.Do(func() { close(b.startedCh()) })
	<-b.block
	return b.fakeWriter.WriteMessages(ctx, msgs...)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	p.Publish("k", NewEnvelope(OrderPaid, nil))
}

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(queueSize int) (*Pipeline, *MemoryBackend) {
	backend := NewMemoryBackend(100)
	p := New(Config{QueueSize: queueSize, FlushInterval: time.Hour, FlushBatch: 10}, backend, nil)
	return p, backend
}

func TestRecordMasksBeforeEnqueue(t *testing.T) {
	p, _ := newTestPipeline(10)
	p.masker = newMasker([]string{"password"})

	p.Record(Record{ToolName: "login", Arguments: map[string]interface{}{"password": "secret"}})

	select {
	case r := <-p.queue:
		assert.Equal(t, "***", r.Arguments["password"])
	default:
		t.Fatal("expected a queued record")
	}
}

func TestRecordDropsWhenQueueFull(t *testing.T) {
	p, _ := newTestPipeline(1)
	p.Record(Record{ToolName: "first"})
	p.Record(Record{ToolName: "second"}) // queue full, should be dropped not block

	assert.Len(t, p.queue, 1)
}

func TestSubscribeReceivesBroadcastRecords(t *testing.T) {
	p, _ := newTestPipeline(10)
	ch, unsubscribe := p.Subscribe(1)
	defer unsubscribe()

	p.Record(Record{ToolName: "a"})

	select {
	case r := <-ch:
		assert.Equal(t, "a", r.ToolName)
	case <-time.After(time.Second):
		t.Fatal("expected broadcast record")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	p, _ := newTestPipeline(10)
	ch, unsubscribe := p.Subscribe(1)
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok)
}

func TestRunFlushesOnContextCancel(t *testing.T) {
	p, backend := newTestPipeline(10)
	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan struct{})
	go func() { p.Run(ctx); close(done) }()

	p.Record(Record{ToolName: "a"})
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	out, err := backend.Query(t.Context(), Query{})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestRunFlushesWhenBatchFills(t *testing.T) {
	backend := NewMemoryBackend(100)
	p := New(Config{QueueSize: 10, FlushInterval: time.Hour, FlushBatch: 2}, backend, nil)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go p.Run(ctx)

	p.Record(Record{ToolName: "a"})
	p.Record(Record{ToolName: "b"})

	require.Eventually(t, func() bool {
		out, _ := backend.Query(t.Context(), Query{})
		return len(out) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestQueryDelegatesToBackend(t *testing.T) {
	p, backend := newTestPipeline(10)
	require.NoError(t, backend.StoreBatch(t.Context(), []Record{{ToolName: "a"}}))

	out, err := p.Query(t.Context(), Query{})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestCloseDelegatesToBackend(t *testing.T) {
	p, _ := newTestPipeline(10)
	assert.NoError(t, p.Close())
}

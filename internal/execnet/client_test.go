package execnet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-dex/mevshield/internal/types"
)

func sampleOrders() []types.EncryptedOrder {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []types.EncryptedOrder{{
		PoolID:       "pool-1",
		Trader:       "trader",
		AmountHandle: types.Handle{Ref: "amount-ref", Width: 256},
		MinOutHandle: types.Handle{Ref: "minout-ref", Width: 256},
		Deadline:     at.Add(5 * time.Minute),
	}}
}

func TestBatchIDIsDeterministic(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	orders := sampleOrders()

	a := BatchID(orders, at)
	b := BatchID(orders, at)
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestBatchIDVariesWithContent(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	orders := sampleOrders()

	base := BatchID(orders, at)

	assert.NotEqual(t, base, BatchID(orders, at.Add(time.Nanosecond)))

	changed := sampleOrders()
	changed[0].Trader = "other"
	assert.NotEqual(t, base, BatchID(changed, at))
}

func TestLocalBatchIDNamespace(t *testing.T) {
	at := time.Now()
	orders := sampleOrders()

	local := LocalBatchID(orders, at)
	assert.True(t, strings.HasPrefix(local, types.LocalBatchPrefix))
	assert.Equal(t, types.LocalBatchPrefix+BatchID(orders, at), local)
}

func TestClientSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/batches", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var batch types.OrderBatch
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
		require.Len(t, batch.Orders, 1)

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"batch_id": "remote-abc"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	id, err := c.Submit(context.Background(), &types.OrderBatch{Orders: sampleOrders(), SubmittedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, "remote-abc", id)
}

func TestClientSubmitErrorsAreTagged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.Submit(context.Background(), &types.OrderBatch{Orders: sampleOrders()})
	assert.ErrorIs(t, err, types.ErrExternalSubmission)

	// Unreachable endpoint.
	c = NewClient("http://127.0.0.1:1", time.Second)
	_, err = c.Submit(context.Background(), &types.OrderBatch{Orders: sampleOrders()})
	assert.ErrorIs(t, err, types.ErrExternalSubmission)
}

func TestClientSubmitRejectsEmptyBatchID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.Submit(context.Background(), &types.OrderBatch{Orders: sampleOrders()})
	assert.ErrorIs(t, err, types.ErrExternalSubmission)
}

func TestClientReadyAndOperators(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/batches/abc/ready":
			json.NewEncoder(w).Encode(map[string]bool{"ready": true})
		case "/v1/operators":
			json.NewEncoder(w).Encode(map[string]int{"count": 7})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)

	ready, err := c.IsBatchReady(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, ready)

	count, err := c.ActiveOperators(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestMemorySubmitAndComplete(t *testing.T) {
	m := NewMemory(3)
	ctx := context.Background()

	id, err := m.Submit(ctx, &types.OrderBatch{Orders: sampleOrders(), SubmittedAt: time.Now()})
	require.NoError(t, err)

	ready, err := m.IsBatchReady(ctx, id)
	require.NoError(t, err)
	assert.False(t, ready)

	assert.True(t, m.Complete(id, "result-hash"))
	assert.False(t, m.Complete(id, "result-hash"), "second completion is a no-op")

	ready, err = m.IsBatchReady(ctx, id)
	require.NoError(t, err)
	assert.True(t, ready)

	info, err := m.BatchInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "result-hash", info.ResultHash)
}

func TestMemoryOperatorCount(t *testing.T) {
	m := NewMemory(3)

	count, err := m.ActiveOperators(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	m.SetOperators(0)
	_, err = m.ActiveOperators(context.Background())
	assert.Error(t, err, "zero operators models an unreachable network")
}

func TestBatchTimedOut(t *testing.T) {
	now := time.Now()
	b := types.OrderBatch{BatchID: "abc", SubmittedAt: now}

	assert.False(t, b.TimedOut(now.Add(types.BatchTimeout)))
	assert.True(t, b.TimedOut(now.Add(types.BatchTimeout+time.Second)))

	b.Processed = true
	assert.False(t, b.TimedOut(now.Add(time.Hour)), "processed batches never time out")
}

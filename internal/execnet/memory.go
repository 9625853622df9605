/*

This file contains an in-memory Submitter used by tests and by local runs
without a live execution network. It can be told to fail submissions to
exercise the degraded path.

*/

package execnet

import (
	"context"
	"errors"
	"sync"

	"github.com/meridian-dex/mevshield/internal/types"
)

// Memory is an in-process execution network. Safe for concurrent use.
type Memory struct {
	mu        sync.Mutex
	batches   map[string]*types.OrderBatch
	operators int

	// FailSubmissions makes Submit return ErrExternalSubmission.
	FailSubmissions bool
}

// NewMemory returns an in-memory network with the given operator count.
func NewMemory(operators int) *Memory {
	return &Memory{
		batches:   make(map[string]*types.OrderBatch),
		operators: operators,
	}
}

// Submit stores the batch under its content-derived id.
func (m *Memory) Submit(_ context.Context, batch *types.OrderBatch) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSubmissions {
		return "", errors.Join(types.ErrExternalSubmission, errors.New("submission disabled"))
	}
	id := BatchID(batch.Orders, batch.SubmittedAt)
	stored := *batch
	stored.BatchID = id
	m.batches[id] = &stored
	return id, nil
}

// Complete marks a stored batch processed with the given result hash,
// standing in for the network's own processing.
func (m *Memory) Complete(batchID, resultHash string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[batchID]
	if !ok || b.Processed {
		return false
	}
	b.Processed = true
	b.ResultHash = resultHash
	return true
}

// IsBatchReady reports whether the batch has been processed.
func (m *Memory) IsBatchReady(_ context.Context, batchID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[batchID]
	if !ok {
		return false, errors.New("unknown batch")
	}
	return b.Processed, nil
}

// BatchInfo returns a copy of the stored batch.
func (m *Memory) BatchInfo(_ context.Context, batchID string) (*types.OrderBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[batchID]
	if !ok {
		return nil, errors.New("unknown batch")
	}
	cp := *b
	cp.Orders = append([]types.EncryptedOrder(nil), b.Orders...)
	return &cp, nil
}

// ActiveOperators returns the configured operator count.
func (m *Memory) ActiveOperators(context.Context) (int, error) {
	if m.operators <= 0 {
		return 0, errors.New("network unreachable")
	}
	return m.operators, nil
}

// SetOperators adjusts the operator count (0 models an unreachable network).
func (m *Memory) SetOperators(n int) {
	m.mu.Lock()
	m.operators = n
	m.mu.Unlock()
}

var _ Submitter = (*Memory)(nil)

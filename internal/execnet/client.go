/*

This file contains the client for the secure off-chain execution network.
The network accepts batches of encrypted orders and later reports a result
hash; from the engine's point of view it is fire-and-forget with out-of-band
resolution. Submission failure is survivable: callers fall back to a locally
synthesized batch id and keep going.

*/

package execnet

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/zeebo/blake3"

	"github.com/meridian-dex/mevshield/internal/logger"
	"github.com/meridian-dex/mevshield/internal/types"
)

var execnetLogger = logger.GetForComponent("execnet_client")

// Submitter is the outbound surface the engine depends on. The HTTP client
// below talks to a real network; tests use the in-memory stub.
type Submitter interface {
	Submit(ctx context.Context, batch *types.OrderBatch) (string, error)
	IsBatchReady(ctx context.Context, batchID string) (bool, error)
	BatchInfo(ctx context.Context, batchID string) (*types.OrderBatch, error)
	ActiveOperators(ctx context.Context) (int, error)
}

// BatchID derives the content-addressed identifier for a batch: a blake3
// digest over the orders in submission order.
func BatchID(orders []types.EncryptedOrder, submittedAt time.Time) string {
	h := blake3.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(submittedAt.UnixNano()))
	h.Write(buf[:])
	for _, o := range orders {
		h.Write([]byte(o.PoolID))
		h.Write([]byte{0})
		h.Write([]byte(o.Trader))
		h.Write([]byte{0})
		h.Write([]byte(o.AmountHandle.Ref))
		h.Write([]byte(o.MinOutHandle.Ref))
		binary.BigEndian.PutUint64(buf[:], uint64(o.Deadline.Unix()))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// LocalBatchID namespaces a content-derived id into the reserved local
// fallback namespace.
func LocalBatchID(orders []types.EncryptedOrder, submittedAt time.Time) string {
	return types.LocalBatchPrefix + BatchID(orders, submittedAt)
}

// Client is the HTTP implementation of Submitter.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds an execution-network client against the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type submitResponse struct {
	BatchID string `json:"batch_id"`
}

type readyResponse struct {
	Ready bool `json:"ready"`
}

type operatorsResponse struct {
	Count int `json:"count"`
}

// Submit posts the batch to the network and returns the network-assigned
// batch id. Errors are joined with ErrExternalSubmission so callers can
// route into the local-fallback path.
func (c *Client) Submit(ctx context.Context, batch *types.OrderBatch) (string, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return "", errors.Join(types.ErrExternalSubmission, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/batches", bytes.NewReader(body))
	if err != nil {
		return "", errors.Join(types.ErrExternalSubmission, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Join(types.ErrExternalSubmission, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", errors.Join(types.ErrExternalSubmission, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Join(types.ErrExternalSubmission, err)
	}
	if out.BatchID == "" {
		return "", errors.Join(types.ErrExternalSubmission, errors.New("empty batch id in response"))
	}

	execnetLogger.Info().
		Str("batchID", out.BatchID).
		Int("orders", len(batch.Orders)).
		Msg("Batch submitted to execution network")

	return out.BatchID, nil
}

// IsBatchReady polls the network for batch completion.
func (c *Client) IsBatchReady(ctx context.Context, batchID string) (bool, error) {
	var out readyResponse
	if err := c.getJSON(ctx, "/v1/batches/"+batchID+"/ready", &out); err != nil {
		return false, err
	}
	return out.Ready, nil
}

// BatchInfo fetches the network's view of a batch.
func (c *Client) BatchInfo(ctx context.Context, batchID string) (*types.OrderBatch, error) {
	var out types.OrderBatch
	if err := c.getJSON(ctx, "/v1/batches/"+batchID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ActiveOperators reports how many network operators are currently live.
func (c *Client) ActiveOperators(ctx context.Context) (int, error) {
	var out operatorsResponse
	if err := c.getJSON(ctx, "/v1/operators", &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

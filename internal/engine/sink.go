/*

This file contains the default event sink, which writes fee-change and
detection events to the structured log. Deployments that want durable events
hand the engine the Postgres-backed sink instead.

*/

package engine

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meridian-dex/mevshield/internal/logger"
	"github.com/meridian-dex/mevshield/internal/types"
)

func newEventID() string {
	return uuid.New().String()
}

// LogSink emits events to the structured log only.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink returns a log-only event sink.
func NewLogSink() *LogSink {
	return &LogSink{logger: logger.GetForComponent("event_sink")}
}

// FeeChanged logs a significant fee move.
func (s *LogSink) FeeChanged(ev types.FeeChangeEvent) {
	s.logger.Info().
		Str("eventID", ev.EventID).
		Str("poolID", string(ev.PoolID)).
		Int64("oldFee", ev.OldFee).
		Int64("newFee", ev.NewFee).
		Int64("riskScore", ev.RiskScore).
		Str("reason", string(ev.Reason)).
		Msg("Pool fee changed")
}

// Detected logs a guard detection.
func (s *LogSink) Detected(ev types.DetectionEvent) {
	s.logger.Warn().
		Str("eventID", ev.EventID).
		Str("poolID", string(ev.PoolID)).
		Str("kind", string(ev.Kind)).
		Str("sender", ev.Sender).
		Int64("riskScore", ev.RiskScore).
		Str("detail", ev.Detail).
		Msg("MEV detection")
}

var _ types.EventSink = (*LogSink)(nil)

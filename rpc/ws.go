package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"bazaar/core/events"
	"bazaar/core/types"
)

const wsWriteTimeout = 10 * time.Second

type eventEnvelope struct {
	StreamID   string            `json:"streamId"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	EmittedAt  int64             `json:"emittedAt"`
}

// handleEventsWS streams engine lifecycle events to external indexers. Each
// connection gets its own subscription; a slow consumer only loses its own
// backlog.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s == nil || s.hub == nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	streamID := uuid.NewString()
	s.logger.Info("event stream opened", slog.String("stream", streamID))
	if err := s.streamEvents(r.Context(), conn, streamID); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
	s.logger.Info("event stream closed", slog.String("stream", streamID))
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, streamID string) error {
	updates, cancel := s.hub.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeEvent(ctx, conn, streamID, evt); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, streamID string, evt events.Event) error {
	envelope := eventEnvelope{
		StreamID:  streamID,
		Type:      evt.EventType(),
		EmittedAt: time.Now().Unix(),
	}
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		if inner := carrier.Event(); inner != nil {
			envelope.Attributes = inner.Attributes
		}
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	writeCtx, cancelWrite := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancelWrite()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

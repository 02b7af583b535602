package routes

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"vaultchain/core/types"
)

const (
	wsWriteTimeout     = 10 * time.Second
	wsSubscriberBuffer = 256
)

type eventPayload struct {
	Type       string            `json:"type"`
	Height     uint64            `json:"height"`
	Timestamp  uint64            `json:"timestamp"`
	Attributes map[string]string `json:"attributes"`
}

// events streams committed chain events over a websocket. The optional
// types query value is a comma separated list of event type prefixes.
func (h *handler) events(w http.ResponseWriter, r *http.Request) {
	filters := splitFilters(r.URL.Query().Get("types"))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	// Clients only listen; CloseRead handles pings and surfaces disconnects.
	ctx := conn.CloseRead(r.Context())
	if err := h.streamEvents(ctx, conn, filters); err != nil {
		if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
			h.logger.Warn("event stream failed", slog.Any("error", err))
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (h *handler) streamEvents(ctx context.Context, conn *websocket.Conn, filters []string) error {
	updates, cancel := h.node.Subscribe(wsSubscriberBuffer)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				return nil
			}
			if !matchesFilter(evt.Type, filters) {
				continue
			}
			if err := writeEvent(ctx, conn, evt); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, evt *types.Event) error {
	data, err := json.Marshal(eventPayload{
		Type:       evt.Type,
		Height:     evt.Height,
		Timestamp:  evt.Timestamp,
		Attributes: evt.Attributes,
	})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func splitFilters(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func matchesFilter(eventType string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, prefix := range filters {
		if strings.HasPrefix(eventType, prefix) {
			return true
		}
	}
	return false
}

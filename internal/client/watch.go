package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"

	"github.com/clinicdesk/clinicdesk/internal/platform/websocket"
)

// Event is a change notification as the server sends it.
type Event = websocket.Event

// Watch connects to /api/ws and subscribes to topics (collection names).
// The returned channel is closed when ctx ends or the connection drops;
// callers that need a gap-free view refetch after reconnecting.
func (c *Client) Watch(ctx context.Context, topics ...string) (<-chan Event, error) {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = c.baseURL.Path + "/api/ws"

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	dialer := gorillawebsocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}
	sub := websocket.ClientMessage{Action: "subscribe", Topics: topics}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	events := make(chan Event, 64)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		_ = conn.WriteControl(gorillawebsocket.CloseMessage,
			gorillawebsocket.FormatCloseMessage(gorillawebsocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()
	go func() {
		defer close(events)
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					c.logger.Warn().Err(err).Msg("watch connection closed")
				}
				return
			}
			var ev Event
			if err := json.Unmarshal(data, &ev); err != nil {
				c.logger.Warn().Err(err).Msg("undecodable event")
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

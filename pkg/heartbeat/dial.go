package heartbeat

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// Dial opens a realtime connection suitable for an Emitter. The returned
// connection is also a full *websocket.Conn for callers that want to read
// broadcasts from it.
func Dial(ctx context.Context, url string, header http.Header) (*websocket.Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial realtime endpoint (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial realtime endpoint: %w", err)
	}
	return conn, nil
}

package logstream

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// A logsNotification carries every log line of one transaction.
	maxNotificationBytes = 16 << 20
	subscribeTimeout     = 5 * time.Second
	handshakeTimeout     = 10 * time.Second
)

// logsSubscription is one websocket carrying logsSubscribe notifications.
type logsSubscription struct {
	conn    *websocket.Conn
	release func() bool
}

// subscribeLogs dials endpoint and sends the logsSubscribe request for
// programID. Cancelling ctx closes the socket, which unblocks next.
func subscribeLogs(ctx context.Context, endpoint, programID, commitment string) (*logsSubscription, error) {
	dialer := websocket.Dialer{
		Proxy:             http.ProxyFromEnvironment,
		HandshakeTimeout:  handshakeTimeout,
		EnableCompression: true,
	}
	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", endpoint, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	conn.SetReadLimit(maxNotificationBytes)

	sub := &logsSubscription{
		conn:    conn,
		release: context.AfterFunc(ctx, func() { _ = conn.Close() }),
	}
	req := subscribeRequest(subscribeRequestID, programID, commitment)
	if err := conn.SetWriteDeadline(time.Now().Add(subscribeTimeout)); err == nil {
		err = conn.WriteJSON(req)
	}
	if err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("send logsSubscribe: %w", err)
	}
	return sub, nil
}

// next blocks for the following text frame.
func (s *logsSubscription) next() ([]byte, error) {
	_, payload, err := s.conn.ReadMessage()
	return payload, err
}

func (s *logsSubscription) Close() error {
	s.release()
	return s.conn.Close()
}

func nextBackoff(current, floor, ceiling time.Duration) time.Duration {
	if floor <= 0 {
		floor = time.Second
	}
	if current < floor {
		current = floor
	}
	next := current * 2
	if next > ceiling {
		return ceiling
	}
	return next
}

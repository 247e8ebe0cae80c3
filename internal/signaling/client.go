package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// DialFunc opens the TCP connection under the websocket.
type DialFunc func(network, addr string) (net.Conn, error)

// Client performs one offer/answer exchange with a receiver.
type Client struct {
	url    string
	stream string
	dial   DialFunc
}

// NewClient creates a signaling client for url (ws://host:port/signal).
// A nil dial uses the default dialer.
func NewClient(url, stream string, dial DialFunc) *Client {
	return &Client{url: url, stream: stream, dial: dial}
}

// Exchange sends offer and waits for the receiver's answer.
func (c *Client) Exchange(ctx context.Context, offer json.RawMessage) (json.RawMessage, error) {
	dialer := *websocket.DefaultDialer
	dialer.NetDial = c.dial
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("signaling dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := conn.WriteJSON(Message{Type: TypeOffer, Stream: c.stream, Payload: offer}); err != nil {
		return nil, fmt.Errorf("signaling send offer: %w", err)
	}

	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("signaling read answer: %w", err)
	}
	switch msg.Type {
	case TypeAnswer:
		return msg.Payload, nil
	case TypeError:
		return nil, fmt.Errorf("signaling: receiver refused offer: %s", msg.Msg)
	default:
		return nil, fmt.Errorf("signaling: unexpected message %q", msg.Type)
	}
}

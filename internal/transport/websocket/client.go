// Package websocket connects the frame to its host over a websocket,
// carrying the JSON message envelopes defined in the protocol package.
package websocket

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coder/websocket"

	"github.com/louisbranch/boardframe/internal/protocol"
)

// Client is one live host connection.
type Client struct {
	conn *websocket.Conn
}

// Dial connects to the host. The session token is presented as a bearer
// credential.
func Dial(ctx context.Context, url, token string) (*Client, error) {
	opts := &websocket.DialOptions{}
	if token != "" {
		opts.HTTPHeader = http.Header{"Authorization": {"Bearer " + token}}
	}
	conn, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("dial host: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Send encodes and writes one outbound message.
func (c *Client) Send(ctx context.Context, msg protocol.Outbound) error {
	data, err := protocol.EncodeOutbound(msg)
	if err != nil {
		return err
	}
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Receive blocks until the next inbound message arrives.
func (c *Client) Receive(ctx context.Context) (protocol.Inbound, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	return protocol.DecodeInbound(data)
}

// Close performs a normal closure handshake.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "session ended")
}

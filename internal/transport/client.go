// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport: client is closed")

// =============================================================================
// WEBSOCKET CLIENT
// =============================================================================

// Client is the WebSocket connection to the chat backend. Writes are
// serialized through a mutex; reads happen on a single goroutine owned
// by ReadLoop.
type Client struct {
	url    string
	conn   *websocket.Conn
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Dial connects to the chat endpoint.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	logger.Info("connected to chat backend", "url", url)
	return &Client{url: url, conn: conn, logger: logger}, nil
}

// Send writes one envelope to the connection.
func (c *Client) Send(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("write %s: %w", env.Event, err)
	}
	return nil
}

// ReadLoop reads envelopes until the connection drops or ctx is
// canceled, handing each to handle. Malformed frames are logged and
// skipped. The caller runs it on its own goroutine.
func (c *Client) ReadLoop(ctx context.Context, handle func(Envelope)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				// Decode failure on an otherwise live connection.
				c.logger.Warn("skipping malformed frame", "error", err)
				continue
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("connection closed by server")
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		handle(env)
	}
}

// Close shuts the connection down cleanly.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := c.conn.Close()
	c.logger.Info("disconnected from chat backend", "url", c.url)
	return err
}

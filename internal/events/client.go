package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	writeWait   = 10 * time.Second
	pingPeriod  = 30 * time.Second
	maxSyncSize = 256 * 1024
	sendBuffer  = 64
)

// Client is one websocket connection of a session. Editor tabs both send
// region syncs and receive events; watch-only connections, such as a job
// status page, only receive.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan *Message
	watchOnly bool
	SessionID string
	ClientID  string
}

func NewClient(hub *Hub, conn *websocket.Conn, sessionID, clientID string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan *Message, sendBuffer),
		SessionID: sessionID,
		ClientID:  clientID,
	}
}

// Serve pumps the connection until it closes or ctx is done, then leaves the hub.
func (c *Client) Serve(ctx context.Context) {
	defer c.conn.Close(websocket.StatusNormalClosure, "")

	if c.watchOnly {
		// CloseRead handles control frames and fails the connection if the
		// peer sends data; its context ends when the connection does.
		c.writeEvents(c.conn.CloseRead(ctx))
		c.hub.Unregister(c)
		return
	}

	c.conn.SetReadLimit(maxSyncSize)
	ctx, cancel := context.WithCancel(ctx)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		c.readSyncs(ctx)
		cancel()
	}()

	c.writeEvents(ctx)

	// The reader may still be replying through Send; it has to stop before
	// the hub closes the send channel.
	cancel()
	<-readDone
	c.hub.Unregister(c)
}

// readSyncs forwards region syncs from an editor tab to the hub.
func (c *Client) readSyncs(ctx context.Context) {
	for {
		var msg Message
		if err := wsjson.Read(ctx, c.conn, &msg); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				slog.Debug("read error", "error", err, "client", c.ClientID)
			}
			return
		}
		msg.ClientID = c.ClientID
		msg.SessionID = c.SessionID
		c.hub.handleMessage(c, &msg)
	}
}

// writeEvents delivers queued events and keeps the connection alive with pings.
func (c *Client) writeEvents(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := wsjson.Write(writeCtx, c.conn, msg)
			cancel()
			if err != nil {
				slog.Debug("write error", "error", err, "client", c.ClientID, "type", msg.Type)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// Send queues msg without blocking. A tab that falls behind misses events;
// job state can always be re-read over HTTP.
func (c *Client) Send(msg *Message) {
	select {
	case c.send <- msg:
	default:
		slog.Warn("client send buffer full, dropping message", "client", c.ClientID, "type", msg.Type)
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/holdem-engine/internal/game"
	"github.com/lox/holdem-engine/internal/store"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	sendBuffer = 256
)

var ErrConnectionClosed = websocket.ErrCloseSent

// Connection is one player's socket, bound to a single game for its lifetime.
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	gameID    string
	playerID  string
	server    *Server
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func newConnection(conn *websocket.Conn, s *Server, gameID, playerID string) *Connection {
	ctx, cancel := context.WithCancel(s.ctx)
	return &Connection{
		conn:     conn,
		send:     make(chan *Message, sendBuffer),
		gameID:   gameID,
		playerID: playerID,
		server:   s,
		logger:   s.logger.With("game", gameID, "player", playerID),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Done is closed once the connection has shut down.
func (c *Connection) Done() <-chan struct{} { return c.ctx.Done() }

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues msg for the client. A client that cannot keep up is
// disconnected rather than allowed to block the table.
func (c *Connection) SendMessage(msg *Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.send <- msg:
		return nil
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		go func() { _ = c.Close() }()
		return ErrConnectionClosed
	}
}

func (c *Connection) sendData(msgType MessageType, data any) {
	msg, err := NewMessage(msgType, data)
	if err != nil {
		c.logger.Error("Failed to encode message", "type", msgType, "error", err)
		return
	}
	_ = c.SendMessage(msg)
}

func (c *Connection) sendError(code, message string) {
	c.sendData(MessageTypeError, ErrorData{Code: code, Message: message})
}

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type)
	svc := c.server.svc

	var err error
	switch msg.Type {
	case MessageTypeSit:
		var data SitData
		if !c.decode(msg, &data) {
			return
		}
		seat := -1
		if data.Seat != nil {
			seat = *data.Seat
		}
		name := data.Name
		if name == "" {
			name = c.playerID
		}
		_, err = svc.Sit(c.ctx, c.gameID, c.playerID, name, seat, data.BuyIn)

	case MessageTypeLeave:
		_, err = svc.Leave(c.ctx, c.gameID, c.playerID)

	case MessageTypeStart:
		_, err = svc.StartHand(c.ctx, c.gameID)

	case MessageTypeAction:
		var data ActionData
		if !c.decode(msg, &data) {
			return
		}
		kind, perr := game.ParseActionKind(data.Action)
		if perr != nil {
			c.sendError(string(game.CodeInvalidAction), perr.Error())
			return
		}
		_, err = svc.SubmitAction(c.ctx, c.gameID, c.playerID, data.TurnID, game.Action{Kind: kind, Amount: data.Amount})

	case MessageTypeSitOut:
		_, err = svc.SitOut(c.ctx, c.gameID, c.playerID)

	case MessageTypeSitIn:
		_, err = svc.SitIn(c.ctx, c.gameID, c.playerID)

	case MessageTypeRunItTwice:
		err = c.server.voteRunItTwice(c.ctx, c.gameID, c.playerID)

	default:
		c.sendError("unknown_message", "Unknown message type: "+msg.Type.String())
		return
	}

	if err != nil {
		c.reportError(err)
	}
}

func (c *Connection) decode(msg *Message, into any) bool {
	if err := json.Unmarshal(msg.Data, into); err != nil {
		c.sendError("invalid_message", "Failed to parse "+msg.Type.String()+" data")
		return false
	}
	return true
}

func (c *Connection) reportError(err error) {
	if code := game.CodeOf(err); code != "" {
		var ge *game.Error
		errors.As(err, &ge)
		c.sendError(string(code), ge.Message)
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		c.sendError("not_found", err.Error())
		return
	}
	c.logger.Error("Request failed", "error", err)
	c.sendError("internal_error", "Request failed")
}

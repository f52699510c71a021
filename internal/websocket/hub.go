package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/voicebook/assistant/domain"
	"github.com/voicebook/assistant/domain/entities"
	"github.com/voicebook/assistant/domain/repositories"
	"github.com/voicebook/assistant/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Controller receives the conversation requests clients send over the socket
type Controller interface {
	Toggle(ctx context.Context) (*usecase.Flight, error)
	Stop() error
	ProcessText(ctx context.Context, transcript string) (entities.ConversationOutcome, error)
}

// Hub is the Presentation of the assistant. It broadcasts every UI update
// to the connected clients and replays the latest state to new ones.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	stop     chan struct{}
	stopOnce sync.Once

	// mu guards clients and the replay snapshot together so a new client
	// never sees a snapshot older than a broadcast it already received
	mu       sync.Mutex
	status   map[entities.StatusSlot]string
	capture  bool
	busy     *BusyIndicatorMessage
	bookings []entities.Booking

	controllerMu sync.RWMutex
	controller   Controller

	validator *MessageValidator
	logger    *zap.Logger
}

var _ repositories.Presenter = (*Hub)(nil)

// NewHub creates a new WebSocket hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		status:     make(map[entities.StatusSlot]string),
		validator:  NewMessageValidator(),
		logger:     logger,
	}
}

// SetController wires the conversation service once it exists. The service
// itself needs the hub as its presenter, so this cannot be a constructor
// argument.
func (h *Hub) SetController(controller Controller) {
	h.controllerMu.Lock()
	defer h.controllerMu.Unlock()
	h.controller = controller
}

func (h *Hub) getController() Controller {
	h.controllerMu.RLock()
	defer h.controllerMu.RUnlock()
	return h.controller
}

// Run starts the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.replayLocked(client)
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("Client registered",
				zap.String("clientID", client.id),
				zap.Int("clients", count))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.id))

		case <-h.stop:
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Hub stopped")
			return
		}
	}
}

// Stop disconnects every client and ends Run
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Notify implements repositories.Presenter
func (h *Hub) Notify(message string, severity entities.Severity) {
	h.logger.Debug("Notification",
		zap.String("message", message),
		zap.String("severity", string(severity)))
	h.broadcast(CreateNotificationMessage(message, severity), nil)
}

// SetStatusText implements repositories.Presenter
func (h *Hub) SetStatusText(slot entities.StatusSlot, text string) {
	h.broadcast(CreateStatusTextMessage(slot, text), func() {
		h.status[slot] = text
	})
}

// SetCaptureIndicator implements repositories.Presenter
func (h *Hub) SetCaptureIndicator(active bool) {
	h.broadcast(CreateCaptureIndicatorMessage(active), func() {
		h.capture = active
	})
}

// ShowBusyIndicator implements repositories.Presenter
func (h *Hub) ShowBusyIndicator(message string) {
	msg := CreateBusyIndicatorMessage(true, message)
	h.broadcast(msg, func() {
		h.busy = msg
	})
}

// HideBusyIndicator implements repositories.Presenter
func (h *Hub) HideBusyIndicator() {
	h.broadcast(CreateBusyIndicatorMessage(false, ""), func() {
		h.busy = nil
	})
}

// RenderBookings implements repositories.Presenter
func (h *Hub) RenderBookings(bookings []entities.Booking) {
	snapshot := make([]entities.Booking, len(bookings))
	copy(snapshot, bookings)
	h.broadcast(CreateBookingsMessage(snapshot), func() {
		h.bookings = snapshot
	})
}

// broadcast queues msg for every client without blocking. Clients whose
// buffer is full are dropped.
func (h *Hub) broadcast(msg interface{}, update func()) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if update != nil {
		update()
	}

	for id, client := range h.clients {
		select {
		case client.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
		default:
			h.logger.Warn("Client send buffer full, disconnecting", zap.String("clientID", id))
			delete(h.clients, id)
			close(client.send)
		}
	}
}

// replayLocked queues the current presentation state for a new client
func (h *Hub) replayLocked(client *Client) {
	messages := []interface{}{
		CreateBookingsMessage(h.bookings),
		CreateCaptureIndicatorMessage(h.capture),
	}
	for _, slot := range []entities.StatusSlot{entities.StatusSlotRecognized, entities.StatusSlotBackend} {
		if text, ok := h.status[slot]; ok {
			messages = append(messages, CreateStatusTextMessage(slot, text))
		}
	}
	if h.busy != nil {
		messages = append(messages, h.busy)
	}

	for _, msg := range messages {
		payload, err := json.Marshal(msg)
		if err != nil {
			h.logger.Error("Failed to marshal replay message", zap.Error(err))
			continue
		}
		client.send <- WriteData{Type: websocket.TextMessage, Payload: payload}
	}
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	id     string
	logger *zap.Logger
}

// HandleWebSocket handles websocket requests from the peer.
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	id := uuid.NewString()
	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan WriteData, sendBufferSize),
		id:     id,
		logger: logger.With(zap.String("clientID", id)),
	}

	select {
	case hub.register <- client:
	case <-hub.stop:
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stop:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		default:
			c.logger.Warn("Received unsupported message type", zap.Int("type", messageType))
			c.sendMessage(CreateErrorMessage(ErrorCodeInvalidMessage, "Only JSON text messages are supported", ""))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage dispatches one client request
func (c *Client) processMessage(message []byte) {
	parsed, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid message", zap.Error(err))
		c.sendMessage(CreateErrorMessage(ErrorCodeInvalidMessage, "Invalid message", err.Error()))
		return
	}

	if ping, ok := parsed.(*PingMessage); ok {
		c.sendMessage(CreatePongMessage(ping.Data))
		return
	}

	controller := c.hub.getController()
	if controller == nil {
		c.sendMessage(CreateErrorMessage(ErrorCodeUnavailable, "Conversation service is not ready", ""))
		return
	}

	switch msg := parsed.(type) {
	case *ControlMessage:
		switch msg.Type {
		case MessageTypeVoiceToggle:
			_, err = controller.Toggle(context.Background())
		case MessageTypeVoiceStop:
			err = controller.Stop()
		}
		c.reportError(err)

	case *TextConversationMessage:
		// the exchange and playback take seconds; keep reading meanwhile
		go func(transcript string) {
			_, err := controller.ProcessText(context.Background(), transcript)
			c.reportError(err)
		}(msg.Transcript)
	}
}

// reportError tells the requesting client why its request did not run. The
// shared notifications already went to everyone through the presenter.
func (c *Client) reportError(err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrConversationInFlight):
		c.sendMessage(CreateErrorMessage(ErrorCodeBusy, "Already processing a conversation, please wait", ""))
	case errors.Is(err, domain.ErrNotListening):
		c.sendMessage(CreateErrorMessage(ErrorCodeNotListening, "No recording in progress", ""))
	default:
		c.sendMessage(CreateErrorMessage(ErrorCodeConversationFailed, "Conversation failed", err.Error()))
	}
}

// sendMessage queues a message for this client only
func (c *Client) sendMessage(msg interface{}) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()

	// the hub closes send when it drops the client
	if _, ok := c.hub.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Client send buffer full, dropping message")
	}
}

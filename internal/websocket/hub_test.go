package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/voicebook/assistant/domain"
	"github.com/voicebook/assistant/domain/entities"
	"github.com/voicebook/assistant/usecase"
)

type fakeController struct {
	mu          sync.Mutex
	toggles     int
	stops       int
	transcripts []string
	toggleErr   error
	calls       chan string
}

func newFakeController() *fakeController {
	return &fakeController{calls: make(chan string, 10)}
}

func (f *fakeController) Toggle(ctx context.Context) (*usecase.Flight, error) {
	f.mu.Lock()
	f.toggles++
	err := f.toggleErr
	f.mu.Unlock()
	f.calls <- "toggle"
	return nil, err
}

func (f *fakeController) Stop() error {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	f.calls <- "stop"
	return domain.ErrNotListening
}

func (f *fakeController) ProcessText(ctx context.Context, transcript string) (entities.ConversationOutcome, error) {
	f.mu.Lock()
	f.transcripts = append(f.transcripts, transcript)
	f.mu.Unlock()
	f.calls <- "text"
	return entities.ConversationOutcome{Kind: entities.OutcomeCompleted}, nil
}

func setupTestServer(t *testing.T) (*Hub, string) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	hub := NewHub(logger)
	go hub.Run()

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocket(hub, c, logger)
	})
	server := httptest.NewServer(e)

	t.Cleanup(func() {
		hub.Stop()
		server.Close()
	})

	return hub, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Invalid JSON %s: %v", data, err)
	}
	return msg
}

// readUntil skips messages until one of the given type arrives
func readUntil(t *testing.T, conn *websocket.Conn, msgType MessageType) map[string]interface{} {
	t.Helper()
	for i := 0; i < 20; i++ {
		msg := readMessage(t, conn)
		if msg["type"] == string(msgType) {
			return msg
		}
	}
	t.Fatalf("No %s message received", msgType)
	return nil
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("Failed to write message: %v", err)
	}
}

func waitCall(t *testing.T, controller *fakeController, want string) {
	t.Helper()
	select {
	case got := <-controller.calls:
		if got != want {
			t.Fatalf("Expected %s call, got %s", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for %s call", want)
	}
}

func TestHub_ReplaysStateToNewClient(t *testing.T) {
	hub, url := setupTestServer(t)

	hub.RenderBookings([]entities.Booking{{ID: "b1", CustomerName: "Ana", PartySize: 2}})
	hub.SetStatusText(entities.StatusSlotBackend, "Assistant service healthy")
	hub.SetCaptureIndicator(true)
	hub.ShowBusyIndicator("Having a conversation with the assistant...")

	conn := dial(t, url)

	bookings := readMessage(t, conn)
	if bookings["type"] != string(MessageTypeBookings) {
		t.Fatalf("Expected bookings first, got %v", bookings["type"])
	}
	if list, _ := bookings["bookings"].([]interface{}); len(list) != 1 {
		t.Errorf("Expected 1 booking, got %v", bookings["bookings"])
	}

	capture := readMessage(t, conn)
	if capture["type"] != string(MessageTypeCaptureIndicator) || capture["active"] != true {
		t.Errorf("Expected active capture indicator, got %v", capture)
	}

	status := readMessage(t, conn)
	if status["slot"] != "backend" || status["text"] != "Assistant service healthy" {
		t.Errorf("Unexpected status replay: %v", status)
	}

	busy := readMessage(t, conn)
	if busy["type"] != string(MessageTypeBusyIndicator) || busy["visible"] != true {
		t.Errorf("Expected visible busy indicator, got %v", busy)
	}
}

func TestHub_BroadcastsToAllClients(t *testing.T) {
	hub, url := setupTestServer(t)

	first := dial(t, url)
	second := dial(t, url)
	readUntil(t, first, MessageTypeCaptureIndicator)
	readUntil(t, second, MessageTypeCaptureIndicator)

	if hub.ClientCount() != 2 {
		t.Fatalf("Expected 2 clients, got %d", hub.ClientCount())
	}

	hub.Notify("Booking created for Ana", entities.SeveritySuccess)

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readUntil(t, conn, MessageTypeNotification)
		if msg["message"] != "Booking created for Ana" || msg["severity"] != "success" {
			t.Errorf("Unexpected notification: %v", msg)
		}
	}

	hub.HideBusyIndicator()
	msg := readUntil(t, first, MessageTypeBusyIndicator)
	if msg["visible"] != false {
		t.Errorf("Expected hidden busy indicator, got %v", msg)
	}
}

func TestHub_PingPong(t *testing.T) {
	_, url := setupTestServer(t)
	conn := dial(t, url)

	send(t, conn, `{"type": "ping", "data": "are you there"}`)

	msg := readUntil(t, conn, MessageTypePong)
	if msg["data"] != "are you there" {
		t.Errorf("Expected echoed ping data, got %v", msg["data"])
	}
}

func TestHub_ControllerDispatch(t *testing.T) {
	hub, url := setupTestServer(t)
	controller := newFakeController()
	hub.SetController(controller)

	conn := dial(t, url)

	send(t, conn, `{"type": "voice_toggle"}`)
	waitCall(t, controller, "toggle")

	send(t, conn, `{"type": "text_conversation", "transcript": "table for four"}`)
	waitCall(t, controller, "text")

	send(t, conn, `{"type": "voice_stop"}`)
	waitCall(t, controller, "stop")

	msg := readUntil(t, conn, MessageTypeError)
	if msg["error_code"] != ErrorCodeNotListening {
		t.Errorf("Expected not_listening error, got %v", msg)
	}

	controller.mu.Lock()
	defer controller.mu.Unlock()
	if len(controller.transcripts) != 1 || controller.transcripts[0] != "table for four" {
		t.Errorf("Unexpected transcripts: %v", controller.transcripts)
	}
}

func TestHub_BusyToggleReportsError(t *testing.T) {
	hub, url := setupTestServer(t)
	controller := newFakeController()
	controller.toggleErr = domain.ErrConversationInFlight
	hub.SetController(controller)

	conn := dial(t, url)
	send(t, conn, `{"type": "voice_toggle"}`)
	waitCall(t, controller, "toggle")

	msg := readUntil(t, conn, MessageTypeError)
	if msg["error_code"] != ErrorCodeBusy {
		t.Errorf("Expected busy error, got %v", msg)
	}
}

func TestHub_RejectsInvalidMessages(t *testing.T) {
	_, url := setupTestServer(t)
	conn := dial(t, url)

	send(t, conn, `{"type": "audio_chunk"}`)
	msg := readUntil(t, conn, MessageTypeError)
	if msg["error_code"] != ErrorCodeInvalidMessage {
		t.Errorf("Expected invalid_message error, got %v", msg)
	}
}

func TestHub_WithoutController(t *testing.T) {
	_, url := setupTestServer(t)
	conn := dial(t, url)

	send(t, conn, `{"type": "voice_toggle"}`)
	msg := readUntil(t, conn, MessageTypeError)
	if msg["error_code"] != ErrorCodeUnavailable {
		t.Errorf("Expected unavailable error, got %v", msg)
	}
}

func TestHub_StopDisconnectsClients(t *testing.T) {
	hub, url := setupTestServer(t)
	conn := dial(t, url)
	readUntil(t, conn, MessageTypeCaptureIndicator)

	hub.Stop()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	if hub.ClientCount() != 0 {
		t.Errorf("Expected no clients after Stop, got %d", hub.ClientCount())
	}
}

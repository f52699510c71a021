package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type event struct {
	Type      string          `json:"type"`
	Message   string          `json:"message"`
	Severity  string          `json:"severity"`
	Slot      string          `json:"slot"`
	Text      string          `json:"text"`
	Active    bool            `json:"active"`
	Visible   bool            `json:"visible"`
	Code      string          `json:"error_code"`
	Details   string          `json:"details"`
	Data      string          `json:"data"`
	Bookings  []bookingRecord `json:"bookings"`
	Timestamp string          `json:"timestamp"`
}

type bookingRecord struct {
	ID           string `json:"id"`
	CustomerName string `json:"customer_name"`
	PartySize    int    `json:"party_size"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	CreatedVia   string `json:"created_via"`
}

const usage = `Commands:
  <enter> or t   toggle recording
  s              stop recording
  p              ping
  q              quit
  anything else  send as a typed request`

func main() {
	host := flag.String("addr", "localhost:8080", "assistant address")
	flag.Parse()

	wsURL := url.URL{Scheme: "ws", Host: *host, Path: "/ws"}
	fmt.Printf("Connecting to: %s\n", wsURL.String())

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		if resp != nil {
			log.Fatalf("WebSocket connection failed with status %d: %v", resp.StatusCode, err)
		}
		log.Fatalf("WebSocket connection failed: %v", err)
	}
	defer conn.Close()

	fmt.Println("✓ Connected")
	fmt.Println(usage)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("Connection closed: %v", err)
				}
				return
			}
			render(message)
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-done:
			return
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "q" {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				select {
				case <-done:
				case <-time.After(time.Second):
				}
				return
			}
			if err := conn.WriteJSON(command(line)); err != nil {
				log.Fatalf("Failed to send command: %v", err)
			}
		}
	}
}

func command(line string) map[string]interface{} {
	line = strings.TrimSpace(line)
	switch line {
	case "", "t":
		return map[string]interface{}{"type": "voice_toggle"}
	case "s":
		return map[string]interface{}{"type": "voice_stop"}
	case "p":
		return map[string]interface{}{"type": "ping", "data": time.Now().Format(time.RFC3339)}
	}
	return map[string]interface{}{"type": "text_conversation", "transcript": line}
}

func render(message []byte) {
	var ev event
	if err := json.Unmarshal(message, &ev); err != nil {
		fmt.Printf("? %s\n", message)
		return
	}

	switch ev.Type {
	case "notification":
		fmt.Printf("[%s] %s\n", strings.ToUpper(ev.Severity), ev.Message)
	case "status_text":
		fmt.Printf("(%s) %s\n", ev.Slot, ev.Text)
	case "capture_indicator":
		if ev.Active {
			fmt.Println("● recording")
		} else {
			fmt.Println("○ microphone idle")
		}
	case "busy_indicator":
		if ev.Visible {
			fmt.Printf("… %s\n", ev.Message)
		}
	case "bookings":
		fmt.Printf("Bookings (%d):\n", len(ev.Bookings))
		for _, b := range ev.Bookings {
			fmt.Printf("  - %s, party of %d, %s %s [%s]\n", b.CustomerName, b.PartySize, b.Date, b.StartTime, b.CreatedVia)
		}
	case "pong":
		fmt.Printf("pong %s\n", ev.Data)
	case "error":
		fmt.Printf("! %s %s %s\n", ev.Code, ev.Message, ev.Details)
	default:
		fmt.Printf("%s: %s\n", ev.Type, message)
	}
}

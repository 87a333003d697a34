package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"mutegate/pkg/logger"

	"github.com/gorilla/websocket"
)

// Gateway opcodes used by the presence session.
const (
	opDispatch  = 0
	opHeartbeat = 1
	opIdentify  = 2
	opHello     = 10
	opAck       = 11
)

// intentGuilds | intentGuildVoiceStates — the two intents the original bot
// logs in with.
const identifyIntents = 1<<0 | 1<<7

// activityStreaming is Discord's activity type for a streaming presence.
const activityStreaming = 1

type gatewayPayload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  *int            `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

// Gateway keeps the bot's websocket session alive so the bot appears
// online with a streaming activity advertising the configured URL.
type Gateway struct {
	client       *Client
	activityName string
	advertiseURL string
	log          *logger.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	seq  *int
	done chan struct{}
}

// NewGateway creates a presence session over the given REST client.
func NewGateway(client *Client, activityName, advertiseURL string, log *logger.Logger) *Gateway {
	return &Gateway{
		client:       client,
		activityName: activityName,
		advertiseURL: advertiseURL,
		log:          log,
		done:         make(chan struct{}),
	}
}

// Start dials the gateway, identifies with the streaming presence and
// spawns the heartbeat and read loops. Errors here leave the gateway
// disconnected; the caller treats that as non-fatal.
func (g *Gateway) Start(ctx context.Context) error {
	gatewayURL, err := g.client.GatewayURL(ctx)
	if err != nil {
		return fmt.Errorf("resolve gateway url: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, gatewayURL+"?v=10&encoding=json", nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}

	var hello gatewayPayload
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return fmt.Errorf("read hello: %w", err)
	}
	if hello.Op != opHello {
		conn.Close()
		return fmt.Errorf("expected hello opcode, got %d", hello.Op)
	}

	var helloData struct {
		HeartbeatInterval int `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(hello.D, &helloData); err != nil {
		conn.Close()
		return fmt.Errorf("decode hello: %w", err)
	}

	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()

	if err := g.identify(); err != nil {
		g.Close()
		return err
	}

	interval := time.Duration(helloData.HeartbeatInterval) * time.Millisecond
	go g.heartbeatLoop(interval)
	go g.readLoop()

	g.log.InfoWith("gateway session started", "heartbeat_interval", interval.String())
	return nil
}

func (g *Gateway) identify() error {
	identify := map[string]any{
		"op": opIdentify,
		"d": map[string]any{
			"token":   g.client.token,
			"intents": identifyIntents,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "mutegate",
				"device":  "mutegate",
			},
			"presence": map[string]any{
				"status": "online",
				"afk":    false,
				"activities": []map[string]any{
					{
						"name": g.activityName,
						"type": activityStreaming,
						"url":  g.advertiseURL,
					},
				},
			},
		},
	}

	return g.writeJSON(identify)
}

func (g *Gateway) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
			if err := g.sendHeartbeat(); err != nil {
				g.log.WarnWith("gateway heartbeat failed", "error", err)
				return
			}
		}
	}
}

func (g *Gateway) sendHeartbeat() error {
	g.mu.Lock()
	seq := g.seq
	g.mu.Unlock()

	return g.writeJSON(map[string]any{"op": opHeartbeat, "d": seq})
}

func (g *Gateway) readLoop() {
	for {
		g.mu.Lock()
		conn := g.conn
		g.mu.Unlock()
		if conn == nil {
			return
		}

		var payload gatewayPayload
		if err := conn.ReadJSON(&payload); err != nil {
			select {
			case <-g.done:
			default:
				g.log.WarnWith("gateway connection lost", "error", err)
			}
			return
		}

		if payload.S != nil {
			g.mu.Lock()
			g.seq = payload.S
			g.mu.Unlock()
		}

		switch payload.Op {
		case opDispatch:
			if payload.T == "READY" {
				var ready struct {
					User struct {
						Username string `json:"username"`
					} `json:"user"`
				}
				_ = json.Unmarshal(payload.D, &ready)
				g.log.InfoWith("logged in", "user", ready.User.Username)
			}
		case opHeartbeat:
			// Gateway asked for an immediate beat.
			if err := g.sendHeartbeat(); err != nil {
				g.log.WarnWith("gateway heartbeat failed", "error", err)
				return
			}
		case opAck:
			// Heartbeat acknowledged; nothing to do.
		}
	}
}

func (g *Gateway) writeJSON(v any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return fmt.Errorf("gateway not connected")
	}
	return g.conn.WriteJSON(v)
}

// Close tears down the session.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	select {
	case <-g.done:
	default:
		close(g.done)
	}

	if g.conn != nil {
		_ = g.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		g.conn.Close()
		g.conn = nil
	}
}

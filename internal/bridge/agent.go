package bridge

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"techhome/internal/logging"
)

// Config describes the connection from a local backend to the public relay.
type Config struct {
	PublicWS   string // ws://relay-host:port/agent
	LocalURL   string // http://localhost:5069
	AgentID    string
	RetryDelay time.Duration
}

type requestMsg struct {
	Type    string            `json:"type"`
	ReqID   string            `json:"reqId"`
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers"`
	Body    interface{}       `json:"body"`
}

type responseMsg struct {
	Type   string      `json:"type"`
	ReqID  string      `json:"reqId"`
	Status int         `json:"status"`
	Body   interface{} `json:"body"`
}

// Start connects to the relay and replays forwarded requests against the
// local HTTP server. It reconnects forever; call it from its own goroutine.
func Start(cfg Config) {
	logger := logging.Component("bridge")

	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	for {
		run(cfg)
		logger.Warn().Msg("relay connection lost, reconnecting")
		time.Sleep(cfg.RetryDelay)
	}
}

func run(cfg Config) {
	logger := logging.Component("bridge")

	ws, _, err := websocket.DefaultDialer.Dial(cfg.PublicWS, nil)
	if err != nil {
		logger.Error().Err(err).Str("url", cfg.PublicWS).Msg("relay dial failed")
		return
	}
	defer ws.Close()

	if err := ws.WriteJSON(map[string]interface{}{
		"type": "register",
		"id":   cfg.AgentID,
	}); err != nil {
		logger.Error().Err(err).Msg("agent registration failed")
		return
	}
	logger.Info().Str("agent_id", cfg.AgentID).Msg("registered with relay")

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var req requestMsg
		if err := json.Unmarshal(msg, &req); err != nil || req.Type != "request" {
			continue
		}

		body, status := doLocalRequest(cfg.LocalURL, req)

		if err := ws.WriteJSON(responseMsg{
			Type:   "response",
			ReqID:  req.ReqID,
			Status: status,
			Body:   body,
		}); err != nil {
			return
		}
	}
}

func doLocalRequest(base string, req requestMsg) (interface{}, int) {
	bodyBytes, _ := json.Marshal(req.Body)

	httpReq, err := http.NewRequest(req.Method, base+req.Path, bytes.NewReader(bodyBytes))
	if err != nil {
		return "invalid forwarded request", 500
	}
	httpReq.Header.Set("Content-Type", "application/json")
	// Auth travels with the forwarded request, the relay itself is untrusted.
	if auth, ok := req.Headers["Authorization"]; ok {
		httpReq.Header.Set("Authorization", auth)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "local request failed", 500
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	var parsed interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return string(raw), resp.StatusCode
	}
	return parsed, resp.StatusCode
}

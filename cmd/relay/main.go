// Public relay for remote access. Home backends connect out over a websocket
// and register under an agent ID; clients address a backend with the
// X-Server-ID header and the relay forwards the request over the socket.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

type agent struct {
	id string
	ws *websocket.Conn
	mu sync.Mutex
}

var (
	agents   = map[string]*agent{}
	agentsMu sync.Mutex
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
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

var pending = struct {
	m  map[string]chan responseMsg
	mu sync.Mutex
}{m: map[string]chan responseMsg{}}

func main() {
	addr := os.Getenv("RELAY_ADDR")
	if addr == "" {
		addr = ":8090"
	}

	r := gin.Default()
	r.GET("/agent", handleAgentWS)
	r.NoRoute(handleClientRequest)

	logger.Info().Str("addr", addr).Msg("relay listening")
	if err := r.Run(addr); err != nil {
		logger.Fatal().Err(err).Msg("relay stopped")
	}
}

func handleAgentWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	var agentID string

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if agentID != "" {
				agentsMu.Lock()
				delete(agents, agentID)
				agentsMu.Unlock()
				logger.Info().Str("agent_id", agentID).Msg("agent disconnected")
			}
			return
		}

		var data map[string]interface{}
		if err := json.Unmarshal(msg, &data); err != nil {
			continue
		}

		switch data["type"] {
		case "register":
			id, ok := data["id"].(string)
			if !ok || id == "" {
				continue
			}
			agentID = id

			agentsMu.Lock()
			agents[agentID] = &agent{id: agentID, ws: ws}
			agentsMu.Unlock()
			logger.Info().Str("agent_id", agentID).Msg("agent registered")

		case "response":
			reqID, ok := data["reqId"].(string)
			if !ok {
				continue
			}
			status, _ := data["status"].(float64)

			pending.mu.Lock()
			ch, ok := pending.m[reqID]
			if ok {
				ch <- responseMsg{
					Type:   "response",
					ReqID:  reqID,
					Status: int(status),
					Body:   data["body"],
				}
				delete(pending.m, reqID)
			}
			pending.mu.Unlock()
		}
	}
}

func handleClientRequest(c *gin.Context) {
	agentID := c.GetHeader("X-Server-ID")
	if agentID == "" {
		c.JSON(400, gin.H{"error": "Missing X-Server-ID"})
		return
	}

	agentsMu.Lock()
	a, ok := agents[agentID]
	agentsMu.Unlock()
	if !ok {
		c.JSON(502, gin.H{"error": "Agent offline"})
		return
	}

	var body interface{}
	c.ShouldBindJSON(&body) // a missing body is fine

	headers := make(map[string]string)
	for key, values := range c.Request.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	reqID := uuid.NewString()
	msg := requestMsg{
		Type:    "request",
		ReqID:   reqID,
		Method:  c.Request.Method,
		Path:    c.Request.URL.Path,
		Headers: headers,
		Body:    body,
	}
	data, _ := json.Marshal(msg)

	// Register before writing so a fast agent response cannot race the wait.
	respChan := make(chan responseMsg, 1)
	pending.mu.Lock()
	pending.m[reqID] = respChan
	pending.mu.Unlock()

	a.mu.Lock()
	err := a.ws.WriteMessage(websocket.TextMessage, data)
	a.mu.Unlock()
	if err != nil {
		pending.mu.Lock()
		delete(pending.m, reqID)
		pending.mu.Unlock()
		c.JSON(502, gin.H{"error": "Agent unreachable"})
		return
	}

	select {
	case resp := <-respChan:
		c.JSON(resp.Status, resp.Body)

	case <-time.After(10 * time.Second):
		pending.mu.Lock()
		delete(pending.m, reqID)
		pending.mu.Unlock()
		c.JSON(504, gin.H{"error": "Timeout"})
	}
}

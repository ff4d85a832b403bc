package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Verb is a Home Assistant service call selecting the target state.
type Verb string

const (
	VerbTurnOn  Verb = "turn_on"
	VerbTurnOff Verb = "turn_off"
)

// VerbForState maps a desired on/off state to the matching service verb.
func VerbForState(isOn bool) Verb {
	if isOn {
		return VerbTurnOn
	}
	return VerbTurnOff
}

// Client issues commands to a Home Assistant instance over its REST API,
// authenticated with a long-lived bearer token. Calls use a short timeout so
// a dead hub cannot stall automation workers.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a hub client. A zero timeout falls back to 2 seconds.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// SendCommand calls the light turn_on/turn_off service for an entity.
// A non-2xx response is reported as an error carrying the status and body.
func (c *Client) SendCommand(ctx context.Context, entityID string, verb Verb) error {
	payload, _ := json.Marshal(map[string]string{"entity_id": entityID})

	url := fmt.Sprintf("%s/api/services/light/%s", c.baseURL, verb)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("hub: %s %s: %w", verb, entityID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("hub: %s %s: status %d: %s", verb, entityID, resp.StatusCode, body)
	}
	return nil
}

// States fetches the raw state list of every entity known to the hub.
func (c *Client) States(ctx context.Context) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/states", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hub: states: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("hub: states: status %d: %s", resp.StatusCode, body)
	}
	return io.ReadAll(resp.Body)
}

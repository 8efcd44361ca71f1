package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mcoot/playerhub/internal/api/apierr"
	"github.com/mcoot/playerhub/internal/api/response"
	"github.com/mcoot/playerhub/internal/model"
)

// Event is one server-sent event
type Event struct {
	Name string
	Data string
}

// StreamEconomy subscribes to the player's economy event stream and calls fn for each
// economy update until ctx is cancelled or the server closes the stream
func (c *Client) StreamEconomy(ctx context.Context, sessionToken string, fn func(model.EconomyUpdate)) error {
	return c.stream(ctx, apiPrefix+"/economy/events", sessionToken, func(ev Event) error {
		if ev.Name != "economy" {
			return nil
		}
		var payload response.EconomyEvent
		if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
			return &model.TransportFailure{Message: "malformed economy event", Err: err}
		}
		fn(model.EconomyUpdate{
			Reason:    model.EconomyUpdateReason(payload.Reason),
			Snapshot:  payload.Economy.ToModel(),
			Timestamp: payload.Timestamp,
		})
		return nil
	})
}

func (c *Client) stream(ctx context.Context, path, sessionToken string, fn func(Event) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+sessionToken)

	resp, err := c.streamHTTP.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return &model.TransportFailure{Message: "GET " + path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var errResp apierr.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error.Code != "" {
			return newError(resp.StatusCode, errResp.Error)
		}
		return &model.TransportFailure{Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	err = readEvents(resp.Body, fn)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// readEvents parses an event stream, skipping comments
func readEvents(r io.Reader, fn func(Event) error) error {
	scanner := bufio.NewScanner(r)
	var current Event
	var data []string

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if current.Name != "" || len(data) > 0 {
				current.Data = strings.Join(data, "\n")
				if err := fn(current); err != nil {
					return err
				}
			}
			current = Event{}
			data = nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			current.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return &model.TransportFailure{Message: "event stream interrupted", Err: err}
	}
	return nil
}

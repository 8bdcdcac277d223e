package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxStreamLine bounds a single SSE line.
const maxStreamLine = 1 << 20

// Watch opens the notification stream for userID and calls fn for every
// event until ctx is canceled, the server closes the stream, or fn returns
// an error. Keepalive comments are skipped. Cancellation is not an error.
func (c *HTTPClient) Watch(ctx context.Context, userID string, fn func(StreamEvent) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/notifications/stream?userId="+url.QueryEscape(userID), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("opening stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return decodeAPIError(resp.StatusCode, body)
	}

	err = readStream(resp, fn)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// readStream parses SSE blocks from resp and hands each event to fn.
func readStream(resp *http.Response, fn func(StreamEvent) error) error {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)

	var (
		current StreamEvent
		data    []string
	)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, ":"):
			// Comment, e.g. keepalive.
		case strings.HasPrefix(line, "event:"):
			current.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case line == "":
			if current.Event == "" && len(data) == 0 {
				continue
			}
			if current.Event == "" {
				current.Event = "message"
			}
			current.Data = []byte(strings.Join(data, "\n"))
			if err := fn(current); err != nil {
				return err
			}
			current, data = StreamEvent{}, nil
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("reading stream: %w", err)
	}
	return nil
}

// Package netx contains small HTTP helpers shared by the client gateway.
package netx

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// StatusError reports a non-2xx response from a plain HTTP transfer.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transfer failed: %s; body: %s", e.Status, e.Body)
}

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 512

// Download streams the body of a GET request to w and returns the number of
// bytes written. Non-2xx responses come back as *StatusError.
func Download(ctx context.Context, c *http.Client, url string, w io.Writer) (int64, error) {
	if c == nil {
		c = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return 0, &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: string(b)}
	}
	return io.Copy(w, resp.Body)
}

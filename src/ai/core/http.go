package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stake-plus/netstate-gov/src/logging"
	"github.com/stake-plus/netstate-gov/src/webclient"
)

const (
	postAttempts   = 3
	postRetryDelay = 2 * time.Second
	maxReplyBytes  = 1 << 20
)

// StatusError is a non-200 answer from a provider API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		// some providers report quota exhaustion with a 4xx other than 429
		return se.Code == http.StatusTooManyRequests || se.Code >= http.StatusInternalServerError || logging.IsRateLimit(err)
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// PostJSON sends body to url and decodes the JSON reply into out, retrying
// throttling, server errors and transport failures.
func PostJSON(ctx context.Context, hc *http.Client, url string, headers map[string]string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var reply []byte
	err = webclient.DoWithRetry(ctx, postAttempts, postRetryDelay, retryable, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := hc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return &StatusError{Code: resp.StatusCode, Body: string(b)}
		}
		reply = b
		return nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(reply, out)
}

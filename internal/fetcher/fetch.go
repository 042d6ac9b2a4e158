package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrNoChannels is the caller-level error for a playlist that parsed
// without producing a single valid item.
var ErrNoChannels = errors.New("no channels found in playlist")

// retryInitialInterval seeds the exponential backoff between fetch
// attempts. Shortened in tests.
var retryInitialInterval = 500 * time.Millisecond

const maxFetchRetries = 3

// FetchM3U downloads raw playlist text. Transport errors and 5xx
// responses are retried with exponential backoff; other non-2xx
// responses fail immediately.
func FetchM3U(ctx context.Context, rawURL, userAgent string, timeout time.Duration) (string, error) {
	client := &http.Client{Timeout: timeout}

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		if userAgent != "" {
			req.Header.Set("User-Agent", userAgent)
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("HTTP %d", resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, maxFetchRetries), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return "", fmt.Errorf("fetch playlist: %w", err)
	}
	return string(body), nil
}

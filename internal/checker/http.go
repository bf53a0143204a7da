package checker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

const userAgent = "appwatch-cli"

// getWithRetry performs a GET with exponential backoff on transient
// failures (connection errors, 5xx responses). Client-side status errors
// such as 403 or 404 are returned as a normal response; retrying a rate
// limit or a missing resource only burns quota.
func getWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error)) (*http.Response, error) {
	var resp *http.Response

	op := func() error {
		req, err := build()
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", userAgent)

		r, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			log.Debugf("checker: transient request failure for %s: %v", req.URL, err)
			return err
		}
		if r.StatusCode >= 500 {
			r.Body.Close()
			log.Debugf("checker: server error %d from %s, retrying", r.StatusCode, req.URL)
			return fmt.Errorf("server returned status %d", r.StatusCode)
		}
		resp = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}

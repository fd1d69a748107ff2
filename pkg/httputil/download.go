package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wasmerio/wapm-cli-sub000/pkg/buildinfo"
)

// Download streams the body of a GET to url into w. A positive timeout
// bounds the whole transfer, including reading the body. At most limit
// bytes are copied when limit > 0; a larger body is an error.
//
// Returns the number of bytes written.
func Download(ctx context.Context, client *http.Client, url string, w io.Writer, timeout time.Duration, limit int64) (int64, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	resp, err := client.Do(req)
	if err != nil {
		return 0, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if err := CheckStatus(resp.StatusCode); err != nil {
		return 0, err
	}

	var body io.Reader = resp.Body
	if limit > 0 {
		body = io.LimitReader(resp.Body, limit+1)
	}

	n, err := io.Copy(w, body)
	if err != nil {
		return n, classifyTransportError(ctx, err)
	}
	if limit > 0 && n > limit {
		return n, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, limit)
	}
	return n, nil
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
}

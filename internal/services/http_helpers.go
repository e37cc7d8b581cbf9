package services

import (
	"errors"
	"fmt"
	"net/http"

	"video_uniquifier_bot/internal/utils/retry"
)

type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.status)
}

// classifyHTTPError retries transport failures, 429 and 5xx responses.
func classifyHTTPError(err error) retry.Action {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		if statusErr.status == http.StatusTooManyRequests || statusErr.status >= http.StatusInternalServerError {
			return retry.Retry
		}
		return retry.Stop
	}
	var tooLarge *fileTooLargeError
	if errors.As(err, &tooLarge) {
		return retry.Stop
	}
	return retry.Retry
}

type fileTooLargeError struct {
	limit int64
}

func (e *fileTooLargeError) Error() string {
	return fmt.Sprintf("file exceeds %d bytes", e.limit)
}

package gmail

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// ErrReauthRequired means the stored grant is no longer usable and the
// user must sign in again.
var ErrReauthRequired = errors.New("gmail: re-authentication required")

// APIError is a non-2xx answer from the Gmail API.
type APIError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gmail %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("gmail %s: status %d: %s", e.Op, e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// Is makes a 401 match ErrReauthRequired.
func (e *APIError) Is(target error) bool {
	return target == ErrReauthRequired && e.Status == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{Op: op, Status: gerr.Code, Message: gerr.Message, Err: err}
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return fmt.Errorf("gmail %s: %w: %w", op, ErrReauthRequired, err)
	}
	return fmt.Errorf("gmail %s: %w", op, err)
}

package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"inboxai/internal/assist"
	"inboxai/internal/auth"
	"inboxai/internal/gmail"
	"inboxai/internal/mailbox"
)

// ErrNotSignedIn is returned when a request carries no user.
var ErrNotSignedIn = errors.New("not signed in")

// NeedsReauth reports whether the user has to sign in again.
func NeedsReauth(err error) bool {
	return errors.Is(err, gmail.ErrReauthRequired) ||
		errors.Is(err, auth.ErrNoToken) ||
		errors.Is(err, ErrNotSignedIn)
}

// StatusFor maps a handler error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case NeedsReauth(err):
		return fiber.StatusUnauthorized
	case errors.Is(err, mailbox.ErrNoNextPage),
		errors.Is(err, mailbox.ErrNoPrevPage),
		errors.Is(err, mailbox.ErrNotActive),
		errors.Is(err, mailbox.ErrSuperseded):
		return fiber.StatusConflict
	case errors.Is(err, mailbox.ErrUnknownEmail),
		errors.Is(err, mailbox.ErrNoDraft):
		return fiber.StatusNotFound
	case errors.Is(err, mailbox.ErrDraftIncomplete),
		errors.Is(err, assist.ErrEmptyInput):
		return fiber.StatusBadRequest
	case errors.Is(err, assist.ErrUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, assist.ErrModel):
		return fiber.StatusBadGateway
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	var ae *gmail.APIError
	if errors.As(err, &ae) && ae.Status >= 400 && ae.Status < 600 {
		return ae.Status
	}
	return fiber.StatusInternalServerError
}

// ErrorBody is the JSON error payload for status.
func ErrorBody(err error, status int) fiber.Map {
	body := fiber.Map{"error": err.Error()}
	if status == fiber.StatusUnauthorized {
		body["reauth"] = true
	}
	return body
}

// WriteError sends err as a JSON error response.
func WriteError(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	return c.Status(status).JSON(ErrorBody(err, status))
}

func badRequest(msg string) error {
	return fiber.NewError(fiber.StatusBadRequest, msg)
}

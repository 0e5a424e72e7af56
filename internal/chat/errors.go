// ABOUTME: Error taxonomy for the messaging core
// ABOUTME: Validation failures are sentinel errors; storage failures are wrapped store errors

package chat

import "errors"

// ErrInvalidParticipants is returned when a sender addresses themselves or an
// identifier does not resolve to a registered user.
var ErrInvalidParticipants = errors.New("invalid participants")

// ErrInvalidMessage is returned when a message body is empty or whitespace-only.
var ErrInvalidMessage = errors.New("invalid message")

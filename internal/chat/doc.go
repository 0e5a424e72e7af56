// Package chat implements the messaging core: conversation resolution,
// durable message recording, and best-effort live delivery.
//
// # Send path
//
// One send flows Resolver -> Store -> Dispatcher:
//
//  1. Resolve the single conversation for the participant pair, creating it
//     on first contact. Concurrent first contacts are settled by the store's
//     uniqueness constraint on the canonical pair.
//  2. Append the message durably (transactional with the conversation's
//     last-activity bump).
//  3. Hand the persisted message to the Dispatcher, which pushes it to any
//     live connections the recipient holds. This step is fire-and-forget;
//     the sender learns only whether the message was durably recorded.
//
// # Errors
//
// ErrInvalidParticipants and ErrInvalidMessage are local validation failures
// with no partial state. Storage failures abort the send before any dispatch.
// Delivery failures never propagate past the Dispatcher.
package chat

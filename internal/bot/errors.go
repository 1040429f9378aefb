package bot

import "errors"

var (
	// ErrUnauthorized is reported when a non-administrator calls a role-mutating command.
	ErrUnauthorized = errors.New("caller is not a chat administrator")

	// ErrNoReplyTarget is reported when a command that acts on another user
	// is not sent as a reply.
	ErrNoReplyTarget = errors.New("command must reply to a message")
)

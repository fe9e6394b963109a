package sip

import "errors"

// Sentinel errors for message framing. The connection layer decides how to
// recover; the codec only reports the fact.
var (
	// ErrMissingDelimiter reports a variable length field that ran off the end
	// of the buffer without a terminating delimiter.
	ErrMissingDelimiter = errors.New("field does not contain a valid delimiter")

	// ErrTruncatedMessage reports a buffer too short for the fixed width slots
	// the command requires.
	ErrTruncatedMessage = errors.New("message truncated")

	// ErrUnknownCommand reports a command code this gateway does not speak.
	ErrUnknownCommand = errors.New("unknown command code")

	// ErrChecksumMismatch reports a frame whose trailing checksum does not
	// match its content.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

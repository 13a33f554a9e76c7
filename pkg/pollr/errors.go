package pollr

import "github.com/pkg/errors"

var (
	// ErrMalformedToken is returned when a payload can't be split into length prefixed fields.
	ErrMalformedToken = errors.New("Malformed token")

	// ErrStructuralMismatch is returned when the field list doesn't match the layout of its type.
	ErrStructuralMismatch = errors.New("Structural mismatch")

	// ErrUnknownTokenType is returned when field 0 is not a known token type.
	ErrUnknownTokenType = errors.New("Unknown token type")

	// ErrInvalidPollReference is returned when a vote references a poll that is not open.
	ErrInvalidPollReference = errors.New("Invalid poll reference")

	// ErrDuplicateVote is returned when a voter already has a vote on a poll.
	ErrDuplicateVote = errors.New("Duplicate vote")

	// ErrUnknownService is returned when a question names a different lookup service.
	ErrUnknownService = errors.New("Unknown service")

	// ErrInvalidQuery is returned when a question has no query.
	ErrInvalidQuery = errors.New("Invalid query")
)

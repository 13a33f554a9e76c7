// Package pollr implements the Pollr token protocol: the field codec used inside PushDrop
// locking scripts, the typed open/vote/close tokens, lookup questions and vote tallying.
package pollr

const (
	// TopicName is the overlay topic that admits Pollr outputs.
	TopicName = "tm_pollr"

	// ServiceName is the lookup service that answers Pollr questions.
	ServiceName = "ls_pollr"

	// ProtocolSecurityLevel and ProtocolName identify the key derivation protocol ([2, "pollr"])
	// that wallets use when locking Pollr tokens.
	ProtocolSecurityLevel = 2
	ProtocolName          = "pollr"

	// KeyID is the key id wallets derive the locking key with.
	KeyID = "1"

	// MetadataFieldCount is the number of leading fields shared by open and close tokens.
	MetadataFieldCount = 7
)

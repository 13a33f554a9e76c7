package pollr

import (
	"strconv"

	"github.com/pkg/errors"
)

// TokenType is the tag held in field 0 of every Pollr token.
type TokenType uint8

const (
	TypeOpen TokenType = iota + 1
	TypeVote
	TypeClose
)

const (
	tagOpen  = "open"
	tagVote  = "vote"
	tagClose = "close"
)

// ParseTokenType returns the token type for a field 0 tag.
func ParseTokenType(tag string) (TokenType, error) {
	switch tag {
	case tagOpen:
		return TypeOpen, nil
	case tagVote:
		return TypeVote, nil
	case tagClose:
		return TypeClose, nil
	}

	return 0, errors.Wrapf(ErrUnknownTokenType, "%q", tag)
}

func (t TokenType) String() string {
	switch t {
	case TypeOpen:
		return tagOpen
	case TypeVote:
		return tagVote
	case TypeClose:
		return tagClose
	}
	return "unknown"
}

// OptionsType describes how poll options are rendered.
type OptionsType string

const (
	OptionsText  OptionsType = "text"
	OptionsMedia OptionsType = "media"

	// OptionsImage is the value older clients write for media polls.
	OptionsImage OptionsType = "image"
)

// IsMedia returns true when options reference media rather than plain text.
func (o OptionsType) IsMedia() bool {
	return o == OptionsMedia || o == OptionsImage
}

// Token is one of *OpenToken, *VoteToken or *CloseToken.
type Token interface {
	Type() TokenType

	// Fields returns the ordered field list, with the type tag at index 0.
	Fields() [][]byte
}

// OpenToken creates a poll.
type OpenToken struct {
	CreatorKey  string      `json:"creator_key"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	OptionsType OptionsType `json:"options_type"`
	CreatedAt   uint64      `json:"created_at"` // Unix seconds
	Options     []string    `json:"options"`
}

// VoteToken is one voter's choice in an open poll.
type VoteToken struct {
	VoterKey     string `json:"voter_key"`
	PollTxid     string `json:"poll_txid"`
	ChosenOption string `json:"chosen_option"`
}

// OptionCount is the number of votes for one option.
type OptionCount struct {
	Option string `json:"option"`
	Count  uint64 `json:"count"`
}

// CloseToken finalizes a poll with its tally.
type CloseToken struct {
	CreatorKey  string        `json:"creator_key"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	OptionsType OptionsType   `json:"options_type"`
	CreatedAt   uint64        `json:"created_at"`
	Results     []OptionCount `json:"results"`
}

func (t *OpenToken) Type() TokenType  { return TypeOpen }
func (t *VoteToken) Type() TokenType  { return TypeVote }
func (t *CloseToken) Type() TokenType { return TypeClose }

func (t *OpenToken) Fields() [][]byte {
	result := metadataFields(tagOpen, t.CreatorKey, t.Name, t.Description, len(t.Options),
		t.OptionsType, t.CreatedAt)
	for _, option := range t.Options {
		result = append(result, []byte(option))
	}
	return result
}

func (t *VoteToken) Fields() [][]byte {
	return [][]byte{
		[]byte(tagVote),
		[]byte(t.VoterKey),
		[]byte(t.PollTxid),
		[]byte(t.ChosenOption),
	}
}

func (t *CloseToken) Fields() [][]byte {
	result := metadataFields(tagClose, t.CreatorKey, t.Name, t.Description, len(t.Results),
		t.OptionsType, t.CreatedAt)
	for _, r := range t.Results {
		result = append(result, []byte(r.Option), []byte(strconv.FormatUint(r.Count, 10)))
	}
	return result
}

// Options returns the option text of the close results in order.
func (t *CloseToken) Options() []string {
	result := make([]string, len(t.Results))
	for i, r := range t.Results {
		result[i] = r.Option
	}
	return result
}

// Matches returns true if the close token carries the metadata and option list of the open token.
func (t *CloseToken) Matches(open *OpenToken) bool {
	if t.CreatorKey != open.CreatorKey || t.Name != open.Name ||
		t.Description != open.Description || t.OptionsType != open.OptionsType ||
		t.CreatedAt != open.CreatedAt || len(t.Results) != len(open.Options) {
		return false
	}

	for i, r := range t.Results {
		if r.Option != open.Options[i] {
			return false
		}
	}
	return true
}

// HasOption returns true if option exactly matches one of the poll's options.
func (t *OpenToken) HasOption(option string) bool {
	for _, o := range t.Options {
		if o == option {
			return true
		}
	}
	return false
}

func metadataFields(tag, creator, name, description string, count int, optionsType OptionsType,
	createdAt uint64) [][]byte {

	result := make([][]byte, 0, MetadataFieldCount+count)
	return append(result,
		[]byte(tag),
		[]byte(creator),
		[]byte(name),
		[]byte(description),
		[]byte(strconv.Itoa(count)),
		[]byte(optionsType),
		[]byte(strconv.FormatUint(createdAt, 10)),
	)
}

// Serialize encodes the token's fields into a payload.
func Serialize(t Token) []byte {
	return EncodeFields(t.Fields())
}

// Deserialize decodes a payload and checks that its fields match the layout of its type.
func Deserialize(b []byte) (Token, error) {
	fields, err := DecodeFields(b)
	if err != nil {
		return nil, err
	}

	return FromFields(fields)
}

// FromFields builds a typed token from an already decoded field list.
func FromFields(fields [][]byte) (Token, error) {
	if len(fields) == 0 {
		return nil, errors.Wrap(ErrStructuralMismatch, "no fields")
	}

	tokenType, err := ParseTokenType(string(fields[0]))
	if err != nil {
		return nil, err
	}

	var result Token
	switch tokenType {
	case TypeOpen:
		result, err = openFromFields(fields)
	case TypeVote:
		result, err = voteFromFields(fields)
	case TypeClose:
		result, err = closeFromFields(fields)
	default:
		return nil, errors.Wrapf(ErrUnknownTokenType, "%d", tokenType)
	}
	if err != nil {
		return nil, err
	}

	return result, nil
}

func openFromFields(fields [][]byte) (*OpenToken, error) {
	count, createdAt, err := parseMetadata(fields)
	if err != nil {
		return nil, err
	}

	if uint64(len(fields)) != MetadataFieldCount+count {
		return nil, errors.Wrapf(ErrStructuralMismatch, "open token has %d fields, declares %d options",
			len(fields), count)
	}

	result := &OpenToken{
		CreatorKey:  string(fields[1]),
		Name:        string(fields[2]),
		Description: string(fields[3]),
		OptionsType: OptionsType(fields[5]),
		CreatedAt:   createdAt,
		Options:     make([]string, 0, count),
	}
	for _, option := range fields[MetadataFieldCount:] {
		result.Options = append(result.Options, string(option))
	}

	return result, nil
}

func voteFromFields(fields [][]byte) (*VoteToken, error) {
	if len(fields) != 4 {
		return nil, errors.Wrapf(ErrStructuralMismatch, "vote token has %d fields", len(fields))
	}

	return &VoteToken{
		VoterKey:     string(fields[1]),
		PollTxid:     string(fields[2]),
		ChosenOption: string(fields[3]),
	}, nil
}

func closeFromFields(fields [][]byte) (*CloseToken, error) {
	count, createdAt, err := parseMetadata(fields)
	if err != nil {
		return nil, err
	}

	if uint64(len(fields)) != MetadataFieldCount+2*count {
		return nil, errors.Wrapf(ErrStructuralMismatch, "close token has %d fields, declares %d options",
			len(fields), count)
	}

	result := &CloseToken{
		CreatorKey:  string(fields[1]),
		Name:        string(fields[2]),
		Description: string(fields[3]),
		OptionsType: OptionsType(fields[5]),
		CreatedAt:   createdAt,
		Results:     make([]OptionCount, 0, count),
	}
	for i := MetadataFieldCount; i < len(fields); i += 2 {
		votes, err := strconv.ParseUint(string(fields[i+1]), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrStructuralMismatch, "count for option %q : %s",
				string(fields[i]), err)
		}
		result.Results = append(result.Results, OptionCount{
			Option: string(fields[i]),
			Count:  votes,
		})
	}

	return result, nil
}

// parseMetadata checks the shared open/close prefix and returns the declared option count and the
// creation time.
func parseMetadata(fields [][]byte) (uint64, uint64, error) {
	if len(fields) < MetadataFieldCount {
		return 0, 0, errors.Wrapf(ErrStructuralMismatch, "%d metadata fields", len(fields))
	}

	// 32 bits keeps 7 + 2*count from overflowing.
	count, err := strconv.ParseUint(string(fields[4]), 10, 32)
	if err != nil {
		return 0, 0, errors.Wrapf(ErrStructuralMismatch, "option count : %s", err)
	}

	createdAt, err := strconv.ParseUint(string(fields[6]), 10, 64)
	if err != nil {
		return 0, 0, errors.Wrapf(ErrStructuralMismatch, "created at : %s", err)
	}

	return count, createdAt, nil
}

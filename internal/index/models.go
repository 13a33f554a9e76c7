package index

import (
	"github.com/tokenized/pollr/pkg/pollr"
)

// OpenRecord is an admitted open poll token.
type OpenRecord struct {
	Outpoint pollr.Outpoint   `json:"outpoint"`
	Token    *pollr.OpenToken `json:"token"`
	Sequence uint64           `json:"sequence"`
}

// VoteRecord is an admitted vote token.
type VoteRecord struct {
	Outpoint pollr.Outpoint   `json:"outpoint"`
	Token    *pollr.VoteToken `json:"token"`
	Sequence uint64           `json:"sequence"`
}

// CloseRecord is an admitted close token. It is pending until its transaction spends the output
// of an open poll that the token matches, and only then closes that poll.
type CloseRecord struct {
	Outpoint pollr.Outpoint `json:"outpoint"`

	// PollTxid and PollOutpoint identify the poll the token closed. Both are empty while the
	// record is pending.
	PollTxid     string          `json:"poll_txid,omitempty"`
	PollOutpoint *pollr.Outpoint `json:"poll_outpoint,omitempty"`

	Token    *pollr.CloseToken `json:"token"`
	Sequence uint64            `json:"sequence"`
}

// Pending returns true until the close is bound to the poll it closes.
func (r *CloseRecord) Pending() bool {
	return r.PollTxid == ""
}

func (r *OpenRecord) copy() *OpenRecord {
	token := *r.Token
	token.Options = append([]string(nil), r.Token.Options...)

	result := *r
	result.Token = &token
	return &result
}

func (r *VoteRecord) copy() *VoteRecord {
	token := *r.Token

	result := *r
	result.Token = &token
	return &result
}

func (r *CloseRecord) copy() *CloseRecord {
	token := *r.Token
	token.Results = append([]pollr.OptionCount(nil), r.Token.Results...)

	result := *r
	result.Token = &token
	if r.PollOutpoint != nil {
		poll := *r.PollOutpoint
		result.PollOutpoint = &poll
	}
	return &result
}

// keySets groups record keys, such as the votes of each poll.
type keySets map[string]map[string]bool

func (k keySets) add(group, key string) {
	set, exists := k[group]
	if !exists {
		set = make(map[string]bool)
		k[group] = set
	}
	set[key] = true
}

func (k keySets) remove(group, key string) {
	set, exists := k[group]
	if !exists {
		return
	}
	delete(set, key)
	if len(set) == 0 {
		delete(k, group)
	}
}

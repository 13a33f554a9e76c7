package cmd

import (
	"encoding/hex"
	"testing"

	"github.com/tokenized/pollr/pkg/pollr"

	"github.com/google/go-cmp/cmp"
)

func payloadHex(token pollr.Token) string {
	return hex.EncodeToString(pollr.Serialize(token))
}

func TestCloseOffline(t *testing.T) {
	open := &pollr.OpenToken{
		CreatorKey:  "creator",
		Name:        "Pets",
		OptionsType: pollr.OptionsText,
		CreatedAt:   1704067200,
		Options:     []string{"Cat", "Dog"},
	}

	args := []string{
		payloadHex(open),
		payloadHex(&pollr.VoteToken{VoterKey: "a", PollTxid: "poll", ChosenOption: "Dog"}),
		payloadHex(&pollr.VoteToken{VoterKey: "b", PollTxid: "poll", ChosenOption: "Dog"}),
		payloadHex(&pollr.VoteToken{VoterKey: "c", PollTxid: "poll", ChosenOption: "Fish"}),
	}

	closeToken, err := closeOffline(args)
	if err != nil {
		t.Fatalf("Failed to close : %s", err)
	}

	want := []pollr.OptionCount{{Option: "Cat", Count: 0}, {Option: "Dog", Count: 2}}
	if diff := cmp.Diff(want, closeToken.Results); diff != "" {
		t.Fatalf("Wrong results (-want +got):\n%s", diff)
	}
	if !closeToken.Matches(open) {
		t.Fatalf("Close token doesn't match poll")
	}

	if _, err := closeOffline(args[1:]); err == nil {
		t.Fatalf("Closed a vote payload")
	}
	if _, err := closeOffline([]string{args[0], args[0]}); err == nil {
		t.Fatalf("Counted an open payload as a vote")
	}
	if _, err := closeOffline([]string{"zz"}); err == nil {
		t.Fatalf("Parsed bad hex")
	}
}

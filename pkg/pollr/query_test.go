package pollr

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOutpointString(t *testing.T) {
	outpoint := Outpoint{Txid: "ab01", OutputIndex: 3}
	if got := outpoint.String(); got != "ab01_3" {
		t.Fatalf("Wrong outpoint string : got %s, wanted %s", got, "ab01_3")
	}
}

func TestQuestionJSON(t *testing.T) {
	tests := []struct {
		question *Question
		json     string
	}{
		{VoteQuestion("ab01", "02cd"),
			`{"service":"ls_pollr","query":{"type":"vote","txid":"ab01","voterId":"02cd"}}`},
		{PollQuestion("ab01", StatusClosed),
			`{"service":"ls_pollr","query":{"type":"poll","txid":"ab01","status":"closed"}}`},
		{AllVotesForQuestion("ab01"),
			`{"service":"ls_pollr","query":{"type":"allvotesfor","txid":"ab01"}}`},
		{AllPollsQuestion(StatusOpen),
			`{"service":"ls_pollr","query":{"type":"allpolls","status":"open"}}`},
	}

	for _, tt := range tests {
		b, err := json.Marshal(tt.question)
		if err != nil {
			t.Fatalf("Failed to marshal question : %s", err)
		}
		if string(b) != tt.json {
			t.Errorf("Wrong question json :\ngot  %s\nwant %s", b, tt.json)
		}

		decoded := &Question{}
		if err := json.Unmarshal([]byte(tt.json), decoded); err != nil {
			t.Fatalf("Failed to unmarshal question : %s", err)
		}
		if diff := cmp.Diff(tt.question, decoded); diff != "" {
			t.Errorf("Wrong decoded question (-want +got):\n%s", diff)
		}
	}
}

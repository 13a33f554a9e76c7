package pollr

import "fmt"

// QueryType selects the shape of a lookup question.
type QueryType string

const (
	// QueryVote finds the vote of one voter on a poll.
	QueryVote QueryType = "vote"

	// QueryPoll finds a poll by txid and status.
	QueryPoll QueryType = "poll"

	// QueryAllVotesFor finds every vote on a poll.
	QueryAllVotesFor QueryType = "allvotesfor"

	// QueryAllPolls finds every poll with a status.
	QueryAllPolls QueryType = "allpolls"
)

// PollStatus is the lifecycle state of a poll.
type PollStatus string

const (
	StatusOpen   PollStatus = "open"
	StatusClosed PollStatus = "closed"
)

// Query is the service specific part of a lookup question.
type Query struct {
	Type    QueryType  `json:"type"`
	Txid    string     `json:"txid,omitempty"`
	VoterID string     `json:"voterId,omitempty"`
	Status  PollStatus `json:"status,omitempty"`
}

// Question is a lookup request addressed to a lookup service.
type Question struct {
	Service string `json:"service"`
	Query   *Query `json:"query"`
}

// Outpoint references a transaction output.
type Outpoint struct {
	Txid        string `json:"txid"`
	OutputIndex uint32 `json:"outputIndex"`
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s_%d", o.Txid, o.OutputIndex)
}

// VoteQuestion asks for the vote of voterKey on the poll.
func VoteQuestion(pollTxid, voterKey string) *Question {
	return &Question{
		Service: ServiceName,
		Query: &Query{
			Type:    QueryVote,
			Txid:    pollTxid,
			VoterID: voterKey,
		},
	}
}

// PollQuestion asks for the poll with the status.
func PollQuestion(pollTxid string, status PollStatus) *Question {
	return &Question{
		Service: ServiceName,
		Query: &Query{
			Type:   QueryPoll,
			Txid:   pollTxid,
			Status: status,
		},
	}
}

// AllVotesForQuestion asks for every vote on the poll.
func AllVotesForQuestion(pollTxid string) *Question {
	return &Question{
		Service: ServiceName,
		Query: &Query{
			Type: QueryAllVotesFor,
			Txid: pollTxid,
		},
	}
}

// AllPollsQuestion asks for every poll with the status.
func AllPollsQuestion(status PollStatus) *Question {
	return &Question{
		Service: ServiceName,
		Query: &Query{
			Type:   QueryAllPolls,
			Status: status,
		},
	}
}

package pollr

// Tally is the per option vote count of a poll.
type Tally struct {
	// Counts holds one entry per poll option, in the poll's option order.
	Counts []OptionCount

	// Discarded holds the votes that chose an option the poll doesn't have.
	Discarded []*VoteToken
}

// Total returns the number of counted votes.
func (t Tally) Total() uint64 {
	result := uint64(0)
	for _, c := range t.Counts {
		result += c.Count
	}
	return result
}

// TallyVotes counts votes against the options of the poll. The option list is fixed up front so
// the tally never contains options the poll didn't declare. A vote for any other option is returned
// in Discarded rather than counted.
//
// If the poll repeats an option, votes for it are counted against its first occurrence.
func TallyVotes(open *OpenToken, votes []*VoteToken) Tally {
	result := Tally{
		Counts: make([]OptionCount, len(open.Options)),
	}

	index := make(map[string]int, len(open.Options))
	for i, option := range open.Options {
		result.Counts[i].Option = option
		if _, exists := index[option]; !exists {
			index[option] = i
		}
	}

	for _, vote := range votes {
		i, exists := index[vote.ChosenOption]
		if !exists {
			result.Discarded = append(result.Discarded, vote)
			continue
		}
		result.Counts[i].Count++
	}

	return result
}

// NewCloseToken builds the token that closes the poll: the open token's metadata followed by the
// tally.
func NewCloseToken(open *OpenToken, tally Tally) *CloseToken {
	results := make([]OptionCount, len(tally.Counts))
	copy(results, tally.Counts)

	return &CloseToken{
		CreatorKey:  open.CreatorKey,
		Name:        open.Name,
		Description: open.Description,
		OptionsType: open.OptionsType,
		CreatedAt:   open.CreatedAt,
		Results:     results,
	}
}

// ClosePoll tallies the votes and returns the close token for the poll.
func ClosePoll(open *OpenToken, votes []*VoteToken) (*CloseToken, Tally) {
	tally := TallyVotes(open, votes)
	return NewCloseToken(open, tally), tally
}

// Package metrics holds the prometheus counters for admission, the vote uniqueness backstop and
// tallies. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pollr"

// Rejection reasons.
const (
	ReasonNotPushDrop     = "not_pushdrop"
	ReasonMalformed       = "malformed"
	ReasonUnknownType     = "unknown_type"
	ReasonInvalidPoll     = "invalid_poll"
	ReasonDuplicateVote   = "duplicate_vote"
	ReasonResolverFailure = "resolver_failure"
)

type Metrics struct {
	outputsAdmitted *prometheus.CounterVec
	outputsRejected *prometheus.CounterVec
	duplicateVotes  prometheus.Counter
	discardedVotes  prometheus.Counter
	submissions     *prometheus.CounterVec
	indexSize       *prometheus.GaugeVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		outputsAdmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outputs_admitted_total",
			Help:      "number of outputs admitted, by token type",
		}, []string{"type"}),
		outputsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outputs_rejected_total",
			Help:      "number of outputs rejected by admission, by reason",
		}, []string{"reason"}),
		duplicateVotes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_votes_blocked_total",
			Help:      "number of votes refused by the index because the voter already voted",
		}),
		discardedVotes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tally_discarded_votes_total",
			Help:      "number of votes ignored by a tally because the option isn't in the poll",
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "number of transactions submitted, by topic",
		}, []string{"topic"}),
		indexSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_records",
			Help:      "number of records in the poll index, by collection",
		}, []string{"collection"}),
	}

	collectors := []prometheus.Collector{
		m.outputsAdmitted,
		m.outputsRejected,
		m.duplicateVotes,
		m.discardedVotes,
		m.submissions,
		m.indexSize,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "register")
		}
	}

	return m, nil
}

// OutputAdmitted counts an admitted output of the token type.
func (m *Metrics) OutputAdmitted(tokenType string) {
	if m == nil {
		return
	}
	m.outputsAdmitted.WithLabelValues(tokenType).Inc()
}

// OutputRejected counts an output rejected for reason.
func (m *Metrics) OutputRejected(reason string) {
	if m == nil {
		return
	}
	m.outputsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) DuplicateVoteBlocked() {
	if m == nil {
		return
	}
	m.duplicateVotes.Inc()
}

func (m *Metrics) VotesDiscarded(count int) {
	if m == nil {
		return
	}
	m.discardedVotes.Add(float64(count))
}

func (m *Metrics) Submitted(topic string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(topic).Inc()
}

// IndexSize sets the record counts of the poll index.
func (m *Metrics) IndexSize(open, closed, votes int) {
	if m == nil {
		return
	}
	m.indexSize.WithLabelValues("open").Set(float64(open))
	m.indexSize.WithLabelValues("closed").Set(float64(closed))
	m.indexSize.WithLabelValues("votes").Set(float64(votes))
}

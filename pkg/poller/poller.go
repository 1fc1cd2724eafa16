// Package poller submits a job asynchronously and polls the job cache
// until every targeted minion has returned or the timeout expires.
package poller

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/nicklasfrahm/pepper/pkg/lowstate"
	"github.com/nicklasfrahm/pepper/pkg/saltapi"
)

// FailedKey is the key of the final emission listing the minions that
// did not return.
const FailedKey = "Failed"

// JobAPI is the part of salt-api the poller needs. It is implemented
// by *saltapi.Client.
type JobAPI interface {
	// Low submits low states.
	Low(ctx context.Context, lows []lowstate.LowState) (*saltapi.Response, error)
	// LookupJID returns the minion returns of a job.
	LookupJID(ctx context.Context, jid string) (map[string]interface{}, error)
}

// EmitFunc receives the returns of the minions that responded since the
// previous lookup, keyed by minion id.
type EmitFunc func(returns map[string]interface{}) error

// Poller waits for the returns of an asynchronous job.
type Poller struct {
	*Options

	api     JobAPI
	results map[string]interface{}
}

// New creates a new poller.
func New(api JobAPI, options ...Option) (*Poller, error) {
	opts, err := GetDefaultOptions().Apply(options...)
	if err != nil {
		return nil, err
	}

	return &Poller{
		Options: opts,
		api:     api,
	}, nil
}

// Poll submits the low states with the first one switched to the
// local_async client and emits the returns as they arrive. Every minion
// is emitted once. If minions are missing when the loop ends, a final
// {"Failed": [...]} item is emitted. The returned exit signal is 1 if
// minions are missing and FailIfIncomplete is set, otherwise 0.
func (p *Poller) Poll(ctx context.Context, lows []lowstate.LowState, emit EmitFunc) (int, error) {
	if len(lows) == 0 {
		return 0, errors.Wrap(lowstate.ErrMissingArgument, "no low state to submit")
	}

	submission := make([]lowstate.LowState, len(lows))
	copy(submission, lows)
	submission[0].Client = lowstate.ClientLocalAsync

	response, err := p.api.Low(ctx, submission)
	if err != nil {
		return 0, err
	}

	job, err := saltapi.ParseAsyncJob(response)
	if err != nil {
		return 0, err
	}

	logger := p.Logger.With().Str("jid", job.JID).Logger()
	logger.Info().Int("minions", len(job.Minions)).Msg("Submitted job")

	p.results = make(map[string]interface{})

	expected := make(map[string]bool, len(job.Minions))
	for _, minion := range job.Minions {
		expected[minion] = true
	}
	if len(expected) == 0 {
		logger.Warn().Msg("No minions matched the target")
		return 0, nil
	}

	start := p.Clock.Now()
	for {
		elapsed := p.Clock.Now().Sub(start)
		if elapsed > p.Timeout {
			logger.Warn().Dur("elapsed", elapsed).Msg("Timed out waiting for returns")
			break
		}

		// A stalled lookup must not outlast the overall timeout.
		lookupCtx, cancel := context.WithTimeout(ctx, p.Timeout-elapsed)
		returns, err := p.api.LookupJID(lookupCtx, job.JID)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			logger.Warn().Err(err).Msg("Failed to look up job")
		}

		arrived := make(map[string]interface{})
		for minion, ret := range unwrapData(returns, expected) {
			if _, seen := p.results[minion]; seen {
				continue
			}
			p.results[minion] = ret
			arrived[minion] = ret
		}

		if len(arrived) > 0 {
			logger.Debug().Int("returned", len(arrived)).Msg("Received returns")
			if err := emit(arrived); err != nil {
				return 0, err
			}
		}

		if p.complete(expected) {
			logger.Info().Msg("All minions returned")
			break
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-p.Clock.After(p.Interval):
		}
	}

	missing := p.missing(expected)
	if len(missing) == 0 {
		return 0, nil
	}

	if err := emit(map[string]interface{}{FailedKey: missing}); err != nil {
		return 0, err
	}

	if p.FailIfIncomplete {
		return 1, nil
	}
	return 0, nil
}

// Results returns the returns collected by the last poll, keyed by
// minion id.
func (p *Poller) Results() map[string]interface{} {
	results := make(map[string]interface{}, len(p.results))
	for minion, ret := range p.results {
		results[minion] = ret
	}
	return results
}

func (p *Poller) complete(expected map[string]bool) bool {
	for minion := range expected {
		if _, ok := p.results[minion]; !ok {
			return false
		}
	}
	return true
}

// missing returns the sorted ids of the expected minions without a
// return.
func (p *Poller) missing(expected map[string]bool) []string {
	var missing []string
	for minion := range expected {
		if _, ok := p.results[minion]; !ok {
			missing = append(missing, minion)
		}
	}
	sort.Strings(missing)
	return missing
}

// unwrapData removes the "data" envelope that some salt versions put
// around the minion returns.
func unwrapData(returns map[string]interface{}, expected map[string]bool) map[string]interface{} {
	data, ok := returns["data"].(map[string]interface{})
	if !ok || expected["data"] {
		return returns
	}
	return data
}

package ops

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/nicklasfrahm/pepper/pkg/lowstate"
	"github.com/nicklasfrahm/pepper/pkg/poller"
	"github.com/nicklasfrahm/pepper/pkg/retcode"
)

// Run sends a command to salt-api, prints the results and returns the
// exit code derived from them. Usage errors are reported before any
// request is sent. An interrupt ends the operation with exit code 0.
func Run(ctx context.Context, options ...Option) (int, error) {
	// Fetch the options for this operation.
	opts, err := GetDefaultOptions().Apply(options...)
	if err != nil {
		return 0, err
	}

	policy, err := retcode.FromFlags(opts.Retcode.FailAny, opts.Retcode.FailAnyNone,
		opts.Retcode.FailAll, opts.Retcode.FailAllNone)
	if err != nil {
		return 0, err
	}

	lows, built, err := opts.lowStates()
	if err != nil {
		return 0, err
	}

	profile, err := opts.resolveProfile()
	if err != nil {
		return 0, err
	}

	printer, err := NewPrinter(opts.Output, opts.Stdout, opts.OutputFile)
	if err != nil {
		return 0, err
	}
	defer printer.Close()

	client, _, err := opts.authenticate(ctx, profile, opts.MakeToken)
	if err != nil {
		return 0, interrupted(opts, err)
	}

	if built && (opts.LegacyKwargs || isLegacyServer(client.SaltVersion())) {
		opts.Logger.Debug().Str("salt_version", client.SaltVersion()).Msg("Splitting keyword arguments")
		for i := range lows {
			lows[i] = lowstate.SplitKeywordArgs(lows[i])
		}
	}

	var exitCode int
	if opts.FailIfIncomplete && lows[0].Client.IsLocal() {
		exitCode, err = opts.poll(ctx, client, lows, printer, policy)
	} else {
		exitCode, err = opts.submit(ctx, client, lows, printer, policy)
	}
	if err != nil {
		return 0, interrupted(opts, err)
	}

	if err := printer.Close(); err != nil {
		return 0, err
	}

	return exitCode, nil
}

// lowStates returns the low states to submit and whether they were
// built from a command rather than taken from a raw payload.
func (o *Options) lowStates() ([]lowstate.LowState, bool, error) {
	switch {
	case o.JSON != "":
		lows, err := lowstate.ParsePayload([]byte(o.JSON))
		return lows, false, err
	case o.JSONFile != "":
		lows, err := lowstate.LoadPayloadFile(o.JSONFile)
		return lows, false, err
	}

	low, err := lowstate.Build(o.Command)
	if err != nil {
		return nil, false, err
	}

	return []lowstate.LowState{low}, true, nil
}

// submit runs the low states synchronously.
func (o *Options) submit(ctx context.Context, client poller.JobAPI, lows []lowstate.LowState, printer *Printer, policy retcode.Policy) (int, error) {
	response, err := client.Low(ctx, lows)
	if err != nil {
		return 0, err
	}

	if err := printer.Print(response); err != nil {
		return 0, err
	}

	return o.evaluate(policy, response.Return), nil
}

// poll runs the low states asynchronously and prints the returns as
// they arrive.
func (o *Options) poll(ctx context.Context, client poller.JobAPI, lows []lowstate.LowState, printer *Printer, policy retcode.Policy) (int, error) {
	p, err := poller.New(client,
		poller.WithLogger(o.Logger),
		poller.WithTimeout(o.Timeout),
		poller.WithInterval(o.PollInterval),
		poller.WithFailIfIncomplete(o.FailIfIncomplete),
	)
	if err != nil {
		return 0, err
	}

	signal, err := p.Poll(ctx, lows, func(returns map[string]interface{}) error {
		return printer.Print(returns)
	})
	if err != nil {
		return 0, err
	}

	// Retcodes are only meaningful for complete results.
	if signal != 0 {
		return signal, nil
	}

	return o.evaluate(policy, p.Results()), nil
}

func (o *Options) evaluate(policy retcode.Policy, result interface{}) int {
	code := retcode.Evaluate(policy, result)
	if code != 0 {
		o.Logger.Debug().Stringer("policy", policy).Int("retcode", code).Msg("Command failed")
	}
	return code
}

// interrupted swallows the error caused by an interrupt.
func interrupted(opts *Options, err error) error {
	if errors.Is(err, context.Canceled) {
		opts.Logger.Warn().Msg("Interrupted")
		return nil
	}
	return err
}

// Package retcode derives an exit code from the `retcode` fields that
// salt embeds in job results.
package retcode

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/cockroachdb/errors"
)

// Unevaluated is returned by the *_none policies if the result did not
// contain a single retcode.
const Unevaluated = -1

// ErrConflictingOptions is returned if more than one policy is selected.
var ErrConflictingOptions = errors.New("conflicting retcode options")

// Policy selects how the collected retcodes map to an exit code.
type Policy int

const (
	// None ignores retcodes.
	None Policy = iota
	// FailAny fails with the first non-zero retcode.
	FailAny
	// FailAnyNone is FailAny, but fails if no retcode was found.
	FailAnyNone
	// FailAll fails only if every retcode is non-zero.
	FailAll
	// FailAllNone is FailAll, but fails if no retcode was found.
	FailAllNone
)

func (p Policy) String() string {
	switch p {
	case FailAny:
		return "fail-any"
	case FailAnyNone:
		return "fail-any-none"
	case FailAll:
		return "fail-all"
	case FailAllNone:
		return "fail-all-none"
	default:
		return "none"
	}
}

// FromFlags returns the policy selected by the command line flags.
func FromFlags(failAny, failAnyNone, failAll, failAllNone bool) (Policy, error) {
	selected := None
	count := 0

	for _, flag := range []struct {
		set    bool
		policy Policy
	}{
		{failAny, FailAny},
		{failAnyNone, FailAnyNone},
		{failAll, FailAll},
		{failAllNone, FailAllNone},
	} {
		if flag.set {
			selected = flag.policy
			count++
		}
	}

	if count > 1 {
		return None, errors.WithHint(ErrConflictingOptions,
			"only one of --fail-any, --fail-any-none, --fail-all and --fail-all-none may be used")
	}

	return selected, nil
}

// Collect returns every numeric value stored under a `retcode` key, in
// depth-first order. Map keys are visited in sorted order.
func Collect(tree interface{}) []int {
	var codes []int
	collect(tree, &codes)
	return codes
}

func collect(node interface{}, codes *[]int) {
	switch value := node.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(value))
		for key := range value {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			if key == "retcode" {
				if code, ok := toInt(value[key]); ok {
					*codes = append(*codes, code)
				}
			}
			collect(value[key], codes)
		}
	case []interface{}:
		for _, item := range value {
			collect(item, codes)
		}
	}
}

func toInt(value interface{}) (int, bool) {
	switch number := value.(type) {
	case int:
		return number, true
	case int64:
		return int(number), true
	case float64:
		if math.IsNaN(number) || math.IsInf(number, 0) {
			return 0, false
		}
		return awayFromZero(number), true
	case json.Number:
		if i, err := number.Int64(); err == nil {
			return int(i), true
		}
		if f, err := number.Float64(); err == nil && !math.IsInf(f, 0) {
			return awayFromZero(f), true
		}
	}
	return 0, false
}

// awayFromZero keeps fractional retcodes such as 0.5 non-zero.
func awayFromZero(f float64) int {
	if f > 0 {
		return int(math.Ceil(f))
	}
	return int(math.Floor(f))
}

// Evaluate returns the exit code for the result tree under the policy.
func Evaluate(policy Policy, tree interface{}) int {
	if policy == None {
		return 0
	}

	codes := Collect(tree)

	if len(codes) == 0 {
		if policy == FailAnyNone || policy == FailAllNone {
			return Unevaluated
		}
		return 0
	}

	firstFailure := 0
	failures := 0
	for _, code := range codes {
		if code != 0 {
			if firstFailure == 0 {
				firstFailure = code
			}
			failures++
		}
	}

	switch policy {
	case FailAny, FailAnyNone:
		return firstFailure
	case FailAll, FailAllNone:
		if failures == len(codes) {
			return firstFailure
		}
	}

	return 0
}

package retcode_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicklasfrahm/pepper/pkg/retcode"
)

func decode(t *testing.T, data string) interface{} {
	t.Helper()

	var tree interface{}
	require.NoError(t, json.Unmarshal([]byte(data), &tree))
	return tree
}

// A state run as returned by salt-api when a command fails.
const failedStateRun = `{
  "return": [{
    "saltdev": {
      "cmd_|-fail_|-false_|-run": {
        "name": "false",
        "changes": {"pid": 9117, "retcode": 127, "stderr": "not found", "stdout": ""},
        "result": false,
        "__run_num__": 0
      },
      "retcode": 127
    }
  }]
}`

func TestFromFlags(t *testing.T) {
	tests := []struct {
		name    string
		flags   [4]bool
		want    retcode.Policy
		wantErr bool
	}{
		{name: "none", want: retcode.None},
		{name: "fail any", flags: [4]bool{true, false, false, false}, want: retcode.FailAny},
		{name: "fail any none", flags: [4]bool{false, true, false, false}, want: retcode.FailAnyNone},
		{name: "fail all", flags: [4]bool{false, false, true, false}, want: retcode.FailAll},
		{name: "fail all none", flags: [4]bool{false, false, false, true}, want: retcode.FailAllNone},
		{name: "fail any and fail all", flags: [4]bool{true, false, true, false}, wantErr: true},
		{name: "all of them", flags: [4]bool{true, true, true, true}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy, err := retcode.FromFlags(tt.flags[0], tt.flags[1], tt.flags[2], tt.flags[3])
			if tt.wantErr {
				assert.True(t, errors.Is(err, retcode.ErrConflictingOptions))
				assert.NotEmpty(t, errors.GetAllHints(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, policy)
		})
	}
}

func TestCollect(t *testing.T) {
	tests := []struct {
		name string
		tree string
		want []int
	}{
		{name: "empty", tree: `{}`, want: nil},
		{name: "scalar", tree: `3`, want: nil},
		{name: "flat", tree: `{"retcode": 2}`, want: []int{2}},
		{name: "sorted keys", tree: `{"n2": {"retcode": 5}, "n1": {"retcode": 0}}`, want: []int{0, 5}},
		{name: "lists", tree: `[{"retcode": 1}, [{"retcode": 2}], {"a": [{"retcode": 3}]}]`, want: []int{1, 2, 3}},
		{name: "nested under retcode key", tree: `{"retcode": 4, "x": {"retcode": 6}}`, want: []int{4, 6}},
		{name: "non numeric ignored", tree: `{"a": {"retcode": null}, "b": {"retcode": "1"}, "c": {"retcode": 7}}`, want: []int{7}},
		{name: "state run", tree: failedStateRun, want: []int{127, 127}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retcode.Collect(decode(t, tt.tree)))
		})
	}
}

func TestCollectJSONNumber(t *testing.T) {
	decoder := json.NewDecoder(strings.NewReader(`{"n1": {"retcode": 3}, "n2": {"retcode": 1.0}}`))
	decoder.UseNumber()

	var tree interface{}
	require.NoError(t, decoder.Decode(&tree))

	assert.Equal(t, []int{3, 1}, retcode.Collect(tree))
}

func TestCollectFractional(t *testing.T) {
	assert.Equal(t, []int{1, -1, 2}, retcode.Collect(decode(t, `[{"retcode": 0.5}, {"retcode": -0.25}, {"retcode": 1.5}]`)))

	decoder := json.NewDecoder(strings.NewReader(`{"retcode": 0.5}`))
	decoder.UseNumber()

	var tree interface{}
	require.NoError(t, decoder.Decode(&tree))

	assert.Equal(t, []int{1}, retcode.Collect(tree))
	assert.Equal(t, 1, retcode.Evaluate(retcode.FailAny, tree))
}

func TestEvaluate(t *testing.T) {
	mixed := `{"n1": {"retcode": 0}, "n2": {"retcode": 5}}`
	failing := `{"n1": {"retcode": 3}, "n2": {"retcode": 5}}`
	passing := `{"n1": {"retcode": 0}, "n2": {"retcode": 0}}`
	empty := `{"n1": {"ret": true}, "n2": [1, 2, 3]}`

	tests := []struct {
		name   string
		policy retcode.Policy
		tree   string
		want   int
	}{
		{name: "none ignores failures", policy: retcode.None, tree: failing, want: 0},

		{name: "fail any mixed", policy: retcode.FailAny, tree: mixed, want: 5},
		{name: "fail any first failure", policy: retcode.FailAny, tree: failing, want: 3},
		{name: "fail any passing", policy: retcode.FailAny, tree: passing, want: 0},
		{name: "fail any empty", policy: retcode.FailAny, tree: empty, want: 0},
		{name: "fail any fractional", policy: retcode.FailAny, tree: `{"n1": {"retcode": 0.5}}`, want: 1},

		{name: "fail any none mixed", policy: retcode.FailAnyNone, tree: mixed, want: 5},
		{name: "fail any none passing", policy: retcode.FailAnyNone, tree: passing, want: 0},
		{name: "fail any none empty", policy: retcode.FailAnyNone, tree: empty, want: retcode.Unevaluated},

		{name: "fail all mixed", policy: retcode.FailAll, tree: mixed, want: 0},
		{name: "fail all failing", policy: retcode.FailAll, tree: failing, want: 3},
		{name: "fail all empty", policy: retcode.FailAll, tree: empty, want: 0},
		{name: "fail all state run", policy: retcode.FailAll, tree: failedStateRun, want: 127},

		{name: "fail all none mixed", policy: retcode.FailAllNone, tree: mixed, want: 0},
		{name: "fail all none failing", policy: retcode.FailAllNone, tree: failing, want: 3},
		{name: "fail all none empty", policy: retcode.FailAllNone, tree: empty, want: retcode.Unevaluated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := decode(t, tt.tree)

			got := retcode.Evaluate(tt.policy, tree)
			assert.Equal(t, tt.want, got)

			// Evaluation does not depend on previous runs.
			assert.Equal(t, got, retcode.Evaluate(tt.policy, tree))
		})
	}
}

func TestPolicyString(t *testing.T) {
	assert.Equal(t, "none", retcode.None.String())
	assert.Equal(t, "fail-all-none", retcode.FailAllNone.String())
}

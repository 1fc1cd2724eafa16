package lowstate

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrMissingArgument is returned when the command line lacks a target
// or a function for the selected client.
var ErrMissingArgument = errors.New("missing argument")

// Command describes a command as it was entered on the command line.
type Command struct {
	Client     Client
	Target     string
	TargetType string
	Function   string
	Args       []string
	Kwargs     map[string]interface{}
	Batch      string
	Saltenv    string
	Timeout    int
}

// Build translates a command into a single low state. Positional
// arguments are passed through verbatim, see SplitKeywordArgs for
// servers that cannot parse key=value arguments themselves.
func Build(cmd Command) (LowState, error) {
	client := cmd.Client
	if client == "" {
		client = ClientLocal
	}

	// A batch size always selects the batch client.
	if cmd.Batch != "" {
		client = ClientLocalBatch
	}

	low := LowState{
		Client:  client,
		Timeout: cmd.Timeout,
		Batch:   cmd.Batch,
	}

	switch client {
	case ClientLocal, ClientLocalAsync, ClientLocalBatch, ClientSSH:
		if cmd.Target == "" || cmd.Function == "" {
			return LowState{}, errors.WithHint(
				errors.Wrapf(ErrMissingArgument, "client %s requires a target and a function", client),
				"usage: pepper [flags] <target> <function> [arguments...]",
			)
		}

		low.Target = cmd.Target
		low.TargetType = cmd.TargetType
		if low.TargetType == "" {
			low.TargetType = "glob"
		}
		if cmd.Saltenv != "" {
			low.Kwarg = map[string]interface{}{"saltenv": cmd.Saltenv}
		}
	case ClientRunner, ClientWheel:
		if cmd.Function == "" {
			return LowState{}, errors.WithHint(
				errors.Wrapf(ErrMissingArgument, "client %s requires a function", client),
				"usage: pepper --client "+string(client)+" [flags] <function> [arguments...]",
			)
		}

		low.Saltenv = cmd.Saltenv
	default:
		return LowState{}, errors.Wrapf(ErrUnknownClient, "%q", client)
	}

	low.Function = cmd.Function
	for _, arg := range cmd.Args {
		low.Arg = append(low.Arg, arg)
	}
	for key, value := range cmd.Kwargs {
		if low.Kwarg == nil {
			low.Kwarg = make(map[string]interface{})
		}
		low.Kwarg[key] = value
	}

	return low, nil
}

// FromArgs splits positional command line arguments into target,
// function and function arguments depending on the client.
func FromArgs(client Client, args []string) Command {
	cmd := Command{Client: client}

	if client.RequiresTarget() && len(args) > 0 {
		cmd.Target, args = args[0], args[1:]
	}
	if len(args) > 0 {
		cmd.Function, args = args[0], args[1:]
	}
	cmd.Args = args

	return cmd
}

// SplitKeywordArgs rewrites key=value arguments into keyword arguments.
// Salt releases before 3000 pass such arguments to runner and wheel
// functions as plain strings. Values are decoded as JSON if possible
// and kept as raw strings otherwise. Other clients are left untouched.
func SplitKeywordArgs(low LowState) LowState {
	if low.Client != ClientRunner && low.Client != ClientWheel {
		return low
	}

	kwarg := make(map[string]interface{}, len(low.Kwarg))
	for key, value := range low.Kwarg {
		kwarg[key] = value
	}

	var args []interface{}
	for _, arg := range low.Arg {
		token, ok := arg.(string)
		if !ok {
			args = append(args, arg)
			continue
		}

		key, raw, found := strings.Cut(token, "=")
		if !found {
			args = append(args, arg)
			continue
		}

		var value interface{}
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}

		kwarg[key] = value
	}

	low.Arg = args
	if len(kwarg) > 0 {
		low.Kwarg = kwarg
	}

	return low
}

// Command ampcli issues a single AMP call against a running server and
// prints the decoded response, for scripting and ad-hoc debugging.
// Grounded on example/echoclient's transport.Dial path, generalized to
// a one-shot request instead of a polling loop.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goamp/amp/amp"
	"github.com/goamp/amp/transport"
)

func main() {
	fs := flag.NewFlagSet("ampcli", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "ampcli — issue one AMP call and print the response\n\n"+
			"Usage:\n  ampcli [flags] <addr> <command> [key=value ...]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nampcli has no prior knowledge of the command's schema, so -response\n"+
			"must name every key the reply is expected to carry (comma-separated);\n"+
			"without it, ampcli still places the call but prints an empty reply.\n")
	}

	timeout := fs.Duration("timeout", 5*time.Second, "call timeout")
	responseKeys := fs.String("response", "", "comma-separated response field names to decode as strings")
	_ = fs.Parse(os.Args[1:])

	if fs.NArg() < 2 {
		fs.Usage()
		os.Exit(1)
	}

	addr := fs.Arg(0)
	command := fs.Arg(1)
	args, err := parseArgs(fs.Args()[2:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "ampcli:", err)
		os.Exit(1)
	}

	if err := call(addr, command, args, splitNonEmpty(*responseKeys), *timeout); err != nil {
		fmt.Fprintln(os.Stderr, "ampcli:", err)
		os.Exit(1)
	}
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// parseArgs turns "key=value" tokens into a codec-tagged argument map.
// Values that parse as integers become *big.Int, "true"/"false" become
// bool, everything else is passed through as a string.
func parseArgs(tokens []string) (map[string]any, error) {
	out := make(map[string]any, len(tokens))
	for _, tok := range tokens {
		key, val, ok := strings.Cut(tok, "=")
		if !ok {
			return nil, fmt.Errorf("argument %q is not key=value", tok)
		}
		out[key] = inferValue(val)
	}
	return out, nil
}

func inferValue(s string) any {
	if s == "true" || s == "false" {
		return s == "true"
	}
	if n, ok := new(big.Int).SetString(s, 10); ok {
		return n
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return s
	}
	return s
}

// dynamicCommand builds a Command from inferred argument codecs and the
// caller-supplied response field names, since ampcli has no prior schema
// for the command it's calling. Response fields are always decoded as
// strings; command handlers that answer with other codecs need a typed
// caller instead of ampcli.
func dynamicCommand(name string, args map[string]any, responseKeys []string) amp.Command {
	argDescs := make([]amp.ArgDesc, 0, len(args))
	for k, v := range args {
		argDescs = append(argDescs, amp.ArgDesc{Key: k, Codec: codecFor(v)})
	}
	respDescs := make([]amp.ArgDesc, 0, len(responseKeys))
	for _, k := range responseKeys {
		respDescs = append(respDescs, amp.ArgDesc{Key: k, Codec: amp.String})
	}
	return amp.Command{Name: name, Args: argDescs, Response: respDescs}
}

func codecFor(v any) amp.Codec {
	switch v.(type) {
	case *big.Int:
		return amp.Integer
	case bool:
		return amp.Boolean
	default:
		return amp.String
	}
}

func call(addr, command string, args map[string]any, responseKeys []string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	eng, err := transport.Dial(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	got, err := eng.CallRemote(ctx, dynamicCommand(command, args, responseKeys), args)
	if err != nil {
		var declared *amp.DeclaredRemoteError
		var unhandled *amp.UnhandledCommandError
		switch {
		case errors.As(err, &declared):
			return fmt.Errorf("remote error [%s]: %s", declared.Code, declared.Description)
		case errors.As(err, &unhandled):
			return fmt.Errorf("unhandled command: %s", unhandled.Description)
		default:
			return err
		}
	}

	b, err := json.MarshalIndent(got, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

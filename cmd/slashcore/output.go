package main

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/slashcore/internal/dispatcher/handler"
)

// printResult renders a dispatch result for a terminal.
func printResult(w io.Writer, r handler.Result) {
	switch r.Status {
	case handler.StatusOK:
		printValue(w, r.Value)
	case handler.StatusNotCommand:
		fmt.Fprintln(w, "not a command; commands start with the configured prefix")
	default:
		if r.Message != "" {
			fmt.Fprintln(w, r.Message)
		}
	}
}

func printValue(w io.Writer, v any) {
	switch val := v.(type) {
	case nil:
	case string:
		if strings.HasSuffix(val, "\n") {
			fmt.Fprint(w, val)
		} else {
			fmt.Fprintln(w, val)
		}
	case fmt.Stringer:
		fmt.Fprintln(w, val.String())
	case map[string]any, []any:
		out, err := yaml.Marshal(val)
		if err != nil {
			fmt.Fprintf(w, "%v\n", val)
			return
		}
		fmt.Fprint(w, string(out))
	default:
		fmt.Fprintf(w, "%v\n", val)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/urfave/cli/v3"

	"github.com/dshills/slashcore/internal/app"
	"github.com/dshills/slashcore/internal/dispatcher"
	"github.com/dshills/slashcore/internal/dispatcher/execctx"
)

const historyFileName = "repl_history"

func runREPL(ctx context.Context, cmd *cli.Command) error {
	return withApp(cmd, func(a *app.Application) error {
		r := newREPL(a.Dispatcher(), cmd.Root().Writer, identity(cmd))
		defer r.close()
		return r.run(ctx)
	})
}

// repl reads command lines with history and tab completion.
type repl struct {
	line        *liner.State
	d           *dispatcher.Dispatcher
	out         io.Writer
	opts        []execctx.Option
	historyFile string
}

func newREPL(d *dispatcher.Dispatcher, out io.Writer, opts []execctx.Option) *repl {
	r := &repl{
		line: liner.NewLiner(),
		d:    d,
		out:  out,
		opts: opts,
	}
	r.line.SetCtrlCAborts(true)
	r.line.SetCompleter(r.complete)

	if dir, err := os.UserConfigDir(); err == nil {
		r.historyFile = filepath.Join(dir, "slashcore", historyFileName)
		if f, err := os.Open(r.historyFile); err == nil {
			_, _ = r.line.ReadHistory(f)
			f.Close()
		}
	}
	return r
}

// complete offers command names for the token being typed.
func (r *repl) complete(line string) []string {
	prefix := r.d.Config().Prefix
	if !strings.HasPrefix(line, prefix) || strings.ContainsAny(line, " \t") {
		return nil
	}
	var out []string
	for _, name := range r.d.Registry().Complete(strings.TrimPrefix(line, prefix)) {
		out = append(out, prefix+name)
	}
	return out
}

func (r *repl) run(ctx context.Context) error {
	prefix := r.d.Config().Prefix
	fmt.Fprintf(r.out, "slashcore %s. Type %shelp for commands, exit to quit.\n", version, prefix)

	for {
		if ctx.Err() != nil {
			return nil
		}
		input, err := r.line.Prompt("slashcore> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		switch input {
		case "":
			continue
		case "exit", "quit", prefix + "exit", prefix + "quit":
			return nil
		}
		r.line.AppendHistory(input)

		result, err := r.d.Dispatch(ctx, input, r.opts...)
		printResult(r.out, result)
		if err != nil && !result.IsError() {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
	}
}

func (r *repl) close() {
	if r.historyFile != "" {
		if err := os.MkdirAll(filepath.Dir(r.historyFile), 0o700); err == nil {
			if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
				_, _ = r.line.WriteHistory(f)
				f.Close()
			}
		}
	}
	r.line.Close()
}

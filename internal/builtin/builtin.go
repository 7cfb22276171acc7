// Package builtin provides the commands every slashcore host starts with:
// help, commands, history, stats and plugins.
package builtin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dshills/slashcore/internal/dispatcher"
	"github.com/dshills/slashcore/internal/dispatcher/command"
	"github.com/dshills/slashcore/internal/dispatcher/execctx"
	"github.com/dshills/slashcore/internal/dispatcher/handler"
)

// Category groups the built-in commands.
const Category = "system"

// Defaults for the history and stats listings.
const (
	DefaultHistoryLimit = 10
	DefaultTopLimit     = 5
)

// ErrUnknownTopic is returned by help for a name that is neither a command
// nor a category.
var ErrUnknownTopic = errors.New("builtin: unknown help topic")

// Register adds the built-in commands to d. The handlers read engine state
// through d.View and never mutate it.
func Register(d *dispatcher.Dispatcher) error {
	b := &builtins{v: d.View()}
	descs := []command.Descriptor{
		{
			Name:        "help",
			Handler:     handler.Func(b.help),
			Description: "Show commands, or details for one command or category",
			Aliases:     []string{"h", "?"},
			Parameters:  []command.Parameter{{Name: "topic", Type: "string", Description: "command or category"}},
			Examples:    []string{"help", "help history", "help system"},
		},
		{
			Name:        "commands",
			Handler:     handler.Func(b.commands),
			Description: "List commands, optionally filtered by keyword",
			Aliases:     []string{"cmds"},
			Parameters:  []command.Parameter{{Name: "keyword", Type: "string"}},
		},
		{
			Name:        "history",
			Handler:     handler.Func(b.history),
			Description: "Show recent invocations, newest first",
			Aliases:     []string{"hist"},
			Parameters:  []command.Parameter{{Name: "n", Type: "int", Default: DefaultHistoryLimit}},
		},
		{
			Name:        "stats",
			Handler:     handler.Func(b.stats),
			Description: "Show execution statistics",
			Parameters:  []command.Parameter{{Name: "n", Type: "int", Default: DefaultTopLimit}},
		},
		{
			Name:        "plugins",
			Handler:     handler.Func(b.plugins),
			Description: "List loaded plugins",
		},
	}

	var errs []error
	for _, desc := range descs {
		desc.Category = Category
		if _, err := d.Register(desc); err != nil {
			errs = append(errs, fmt.Errorf("registering %s: %w", desc.Name, err))
		}
	}
	return errors.Join(errs...)
}

type builtins struct {
	v dispatcher.View
}

func (b *builtins) prefix() string {
	return b.v.Prefix()
}

func (b *builtins) help(_ context.Context, args []string, _ *execctx.ExecutionContext, _ execctx.Host) (any, error) {
	if len(args) == 0 {
		return b.overview(), nil
	}

	topic := args[0]
	if cmd, ok := b.v.Lookup(strings.TrimPrefix(topic, b.prefix())); ok {
		return b.detail(cmd), nil
	}
	for _, category := range b.v.Categories() {
		if strings.EqualFold(category, topic) {
			return b.category(category), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
}

func (b *builtins) overview() string {
	var sb strings.Builder
	sb.WriteString("Available Commands\n")
	sb.WriteString("==================\n")
	for _, category := range b.v.Categories() {
		cmds := b.v.Category(category)
		if len(cmds) == 0 {
			continue
		}
		sb.WriteString("\n" + category + "\n")
		sb.WriteString(strings.Repeat("-", len(category)) + "\n")
		b.writeList(&sb, cmds)
	}
	fmt.Fprintf(&sb, "\nUse %shelp <command> for details.\n", b.prefix())
	return sb.String()
}

func (b *builtins) category(category string) string {
	var sb strings.Builder
	title := category + " Commands"
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("=", len(title)) + "\n")
	b.writeList(&sb, b.v.Category(category))
	return sb.String()
}

func (b *builtins) writeList(sb *strings.Builder, cmds []command.Info) {
	tw := tabwriter.NewWriter(sb, 0, 4, 2, ' ', 0)
	for _, cmd := range cmds {
		name := "  " + b.prefix() + cmd.Name
		if len(cmd.Aliases) > 0 {
			name += " (" + strings.Join(cmd.Aliases, ", ") + ")"
		}
		desc := cmd.Description
		if cmd.Deprecated {
			desc += " [deprecated]"
		}
		fmt.Fprintf(tw, "%s\t%s\n", name, desc)
	}
	tw.Flush()
}

func (b *builtins) detail(cmd command.Info) string {
	var sb strings.Builder
	sb.WriteString(cmd.Usage(b.prefix()) + "\n")
	if cmd.Description != "" {
		sb.WriteString("  " + cmd.Description + "\n")
	}
	if cmd.Deprecated {
		sb.WriteString("  Deprecated: this command may be removed in a future release.\n")
	}
	sb.WriteString("\n")

	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "  Category:\t%s\n", cmd.Category)
	if len(cmd.Aliases) > 0 {
		fmt.Fprintf(tw, "  Aliases:\t%s\n", strings.Join(cmd.Aliases, ", "))
	}
	if len(cmd.Permissions) > 0 {
		fmt.Fprintf(tw, "  Requires:\t%s\n", strings.Join(cmd.Permissions, ", "))
	}
	if cmd.Plugin != "" {
		fmt.Fprintf(tw, "  Plugin:\t%s\n", cmd.Plugin)
	}
	if cmd.Version != "" {
		fmt.Fprintf(tw, "  Version:\t%s\n", cmd.Version)
	}
	tw.Flush()

	if len(cmd.Parameters) > 0 {
		sb.WriteString("\nParameters:\n")
		tw = tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
		for _, p := range cmd.Parameters {
			req := "optional"
			if p.Required {
				req = "required"
			}
			line := fmt.Sprintf("  %s\t%s\t%s", p.Name, p.Type, req)
			if p.Description != "" {
				line += "\t" + p.Description
			}
			if p.Default != nil {
				line += fmt.Sprintf(" (default %v)", p.Default)
			}
			fmt.Fprintln(tw, line)
		}
		tw.Flush()
	}

	if len(cmd.Examples) > 0 {
		sb.WriteString("\nExamples:\n")
		for _, ex := range cmd.Examples {
			sb.WriteString("  " + b.prefix() + strings.TrimPrefix(ex, b.prefix()) + "\n")
		}
	}
	return sb.String()
}

func (b *builtins) commands(_ context.Context, args []string, _ *execctx.ExecutionContext, _ execctx.Host) (any, error) {
	var cmds []command.Info
	if len(args) == 0 {
		cmds = b.v.Commands()
	} else {
		keyword := strings.Join(args, " ")
		cmds = b.v.Search(keyword)
		if len(cmds) == 0 {
			return fmt.Sprintf("No commands match %q.\n", keyword), nil
		}
	}

	var sb strings.Builder
	b.writeList(&sb, cmds)
	return sb.String(), nil
}

func parseLimit(args []string, fallback int) (int, error) {
	if len(args) == 0 {
		return fallback, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("expected a positive number, got %q", args[0])
	}
	return n, nil
}

func (b *builtins) history(_ context.Context, args []string, _ *execctx.ExecutionContext, _ execctx.Host) (any, error) {
	n, err := parseLimit(args, DefaultHistoryLimit)
	if err != nil {
		return nil, err
	}
	entries := b.v.History(n)
	if len(entries) == 0 {
		return "No commands executed yet.\n", nil
	}

	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	for i, e := range entries {
		status := "ok"
		if !e.Success {
			status = "error: " + e.Error
		}
		line := strings.TrimSpace(b.prefix() + e.Command + " " + strings.Join(e.Args, " "))
		fmt.Fprintf(tw, "%3d.\t%s\t%s\t%s\t%s\n", i+1, e.ExecutedAt.Format("15:04:05"), line, e.ExecutionTime.Round(time.Microsecond), status)
	}
	tw.Flush()
	return sb.String(), nil
}

func (b *builtins) stats(_ context.Context, args []string, _ *execctx.ExecutionContext, _ execctx.Host) (any, error) {
	n, err := parseLimit(args, DefaultTopLimit)
	if err != nil {
		return nil, err
	}
	snap := b.v.Statistics()

	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Executed:\t%d\n", snap.TotalExecuted)
	fmt.Fprintf(tw, "Succeeded:\t%d\n", snap.SuccessCount)
	fmt.Fprintf(tw, "Failed:\t%d\n", snap.ErrorCount)
	fmt.Fprintf(tw, "Average:\t%s\n", snap.AverageExecutionTime.Round(time.Microsecond))
	tw.Flush()

	if used := b.v.MostUsed(n); len(used) > 0 {
		sb.WriteString("\nMost used:\n")
		tw = tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
		for _, u := range used {
			fmt.Fprintf(tw, "  %s%s\t%d\n", b.prefix(), u.Name, u.Count)
		}
		tw.Flush()
	}
	if slow := b.v.Slowest(n); len(slow) > 0 {
		sb.WriteString("\nSlowest:\n")
		tw = tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
		for _, s := range slow {
			fmt.Fprintf(tw, "  %s%s\t%s\t(max %s)\n", b.prefix(), s.Name, s.AverageExecutionTime.Round(time.Microsecond), s.MaxExecutionTime.Round(time.Microsecond))
		}
		tw.Flush()
	}
	return sb.String(), nil
}

func (b *builtins) plugins(_ context.Context, _ []string, _ *execctx.ExecutionContext, _ execctx.Host) (any, error) {
	infos := b.v.Plugins()
	if len(infos) == 0 {
		return "No plugins loaded.\n", nil
	}

	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	for _, p := range infos {
		version := p.Version
		if version == "" {
			version = "-"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", p.Name, version, strings.Join(p.Commands, ", "), p.Description)
	}
	tw.Flush()
	return sb.String(), nil
}

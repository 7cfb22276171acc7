// Package main is the entry point for the slashcore command host.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/dshills/slashcore/internal/app"
	"github.com/dshills/slashcore/internal/config"
	"github.com/dshills/slashcore/internal/dispatcher/execctx"
	"github.com/dshills/slashcore/internal/plugin/lua"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:      "slashcore",
		Usage:     "Run slash commands from the built-in set and Lua plugins",
		Version:   version + " (" + commit + ")",
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "configuration file (.toml, .yaml, .yml or .json)",
				Sources: cli.EnvVars(config.EnvPrefix + "CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override the configured log level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "no-plugins",
				Usage: "skip plugin discovery",
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "user to run commands as",
			},
			&cli.StringFlag{
				Name:  "session",
				Usage: "session to run commands in",
			},
			&cli.StringSliceFlag{
				Name:    "permission",
				Aliases: []string{"p"},
				Usage:   "grant a permission to every invocation (repeatable)",
			},
		},
		Action: runREPL,
		Commands: []*cli.Command{
			{
				Name:   "repl",
				Usage:  "start an interactive session (default)",
				Action: runREPL,
			},
			{
				Name:            "exec",
				Usage:           "run one command and print its result",
				ArgsUsage:       "<command> [args...]",
				HideHelpCommand: true,
				SkipFlagParsing: true,
				Action:          runExec,
			},
			{
				Name:  "export",
				Usage: "print a snapshot of commands, statistics and plugins",
				Flags: []cli.Flag{formatFlag("json")},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withApp(cmd, func(a *app.Application) error {
						snap := a.Dispatcher().Snapshot()
						switch cmd.String("format") {
						case "json":
							return snap.WriteJSON(cmd.Root().Writer)
						case "yaml":
							return snap.WriteYAML(cmd.Root().Writer)
						default:
							return fmt.Errorf("unknown format %q", cmd.String("format"))
						}
					})
				},
			},
			{
				Name:  "commands",
				Usage: "list registered commands",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withApp(cmd, func(a *app.Application) error {
						reg := a.Dispatcher().Registry()
						prefix := a.Dispatcher().Config().Prefix
						for _, c := range reg.Visible() {
							fmt.Fprintf(cmd.Root().Writer, "%s%s\t%s\n", prefix, c.Name, c.Description)
						}
						return nil
					})
				},
			},
			{
				Name:  "config",
				Usage: "print the effective configuration",
				Flags: []cli.Flag{formatFlag("toml")},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return config.Encode(cmd.Root().Writer, cmd.String("format"), cfg)
				},
			},
			{
				Name:      "check-plugin",
				Usage:     "open a plugin directory and report what it provides",
				ArgsUsage: "<dir>",
				Action:    runCheckPlugin,
			},
		},
	}
}

func formatFlag(def string) cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "output format",
		Value:   def,
	}
}

func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.NewLoader().Load(cmd.String("config"))
	if err != nil {
		return config.Config{}, err
	}
	if level := cmd.String("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	return cfg, nil
}

func withApp(cmd *cli.Command, fn func(*app.Application) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := app.New(app.Options{Config: &cfg, SkipPlugins: cmd.Bool("no-plugins")})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func identity(cmd *cli.Command) []execctx.Option {
	return []execctx.Option{
		execctx.WithUser(cmd.String("user")),
		execctx.WithSession(cmd.String("session")),
		execctx.WithPermissions(cmd.StringSlice("permission")...),
	}
}

func runExec(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return cli.Exit("exec requires a command", 2)
	}
	return withApp(cmd, func(a *app.Application) error {
		input := strings.Join(args, " ")
		prefix := a.Dispatcher().Config().Prefix
		if !strings.HasPrefix(input, prefix) {
			input = prefix + input
		}
		result, err := a.Dispatcher().Dispatch(ctx, input, identity(cmd)...)
		printResult(cmd.Root().Writer, result)
		if err != nil {
			return err
		}
		if !result.IsOK() {
			return cli.Exit("", 1)
		}
		return nil
	})
}

func runCheckPlugin(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		return cli.Exit("check-plugin requires a directory", 2)
	}
	p, err := lua.OpenDir(dir)
	if err != nil {
		return err
	}
	defer p.Closer.Close()

	w := cmd.Root().Writer
	fmt.Fprintf(w, "%s %s\n", p.Name, p.Version)
	for _, desc := range p.Commands {
		fmt.Fprintf(w, "  command    %s\n", desc.Name)
	}
	for _, mw := range p.Middleware {
		fmt.Fprintf(w, "  middleware %s (priority %d)\n", mw.Name, mw.Priority)
	}
	keys := make([]string, 0, len(p.Hooks))
	for key := range p.Hooks {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(w, "  hook       %s x%d\n", key, len(p.Hooks[key]))
	}
	return nil
}

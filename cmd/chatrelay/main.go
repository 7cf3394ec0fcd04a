// Command chatrelay talks to a hosted completion service from the terminal
// and can expose the same relay over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"chatrelay/pkg/ai"
	_ "chatrelay/pkg/ai/providers"
	"chatrelay/pkg/config"
	"chatrelay/pkg/logging"
	"chatrelay/pkg/relay"
	"chatrelay/pkg/speech"
	"chatrelay/pkg/version"
)

const usage = `Usage: chatrelay [flags] <command> [args]

Commands:
  chat                    interactive chat (default)
  ask [-no-stream] TEXT   ask a single question
  serve [-addr ADDR]      run the HTTP API
  transcribe FILE         convert an audio file to text
  speak [-o PATH] TEXT    convert text to an mp3 file
  providers               list available providers
  version                 print version information

Flags:
`

// errUsage marks command-line mistakes; they exit with status 2.
var errUsage = errors.New("usage error")

// streams are the process handles a command reads from and writes to.
type streams struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
}

type globalFlags struct {
	configPath string
	provider   string
	logLevel   string
	dryRun     bool
}

// app is everything a command needs once configuration is loaded.
type app struct {
	cfg    config.Config
	relay  *relay.Relay
	speech *speech.Service
	io     streams
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], streams{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		getenv: os.Getenv,
	}))
}

func run(ctx context.Context, args []string, s streams) int {
	fs := flag.NewFlagSet("chatrelay", flag.ContinueOnError)
	fs.SetOutput(s.stderr)
	fs.Usage = func() {
		fmt.Fprint(s.stderr, usage)
		fs.PrintDefaults()
	}

	var g globalFlags
	fs.StringVar(&g.configPath, "config", "", "path to config file (default ~/.chatrelay/config.json)")
	fs.StringVar(&g.provider, "provider", "", "provider to use: openai, google or echo")
	fs.StringVar(&g.logLevel, "log-level", "", "log level: trace, debug, info, warn or error")
	fs.BoolVar(&g.dryRun, "dry-run", false, "answer offline with the echo provider")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	name, rest := "chat", []string(nil)
	if fs.NArg() > 0 {
		name, rest = fs.Arg(0), fs.Args()[1:]
	}

	switch name {
	case "version":
		fmt.Fprint(s.stdout, version.Info())
		return 0
	case "help":
		fs.Usage()
		return 0
	case "providers":
		// Listing needs no credentials, so the config is not validated.
		cfg, err := loadConfig(g, s)
		if err == nil {
			err = runProviders(cfg, s, rest)
		}
		return exitCode(s, err)
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(s.stderr, "Error: unknown command %q\n\n", name)
		fs.Usage()
		return 2
	}

	a, err := load(g, s)
	if err != nil {
		return exitCode(s, err)
	}

	return exitCode(s, cmd(ctx, a, rest))
}

func exitCode(s streams, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(s.stderr, "Error: %v\n", err)
	if errors.Is(err, errUsage) {
		return 2
	}
	return 1
}

// loadConfig reads .env, the config file, the environment and the global
// flags, in that order of precedence from lowest to highest.
func loadConfig(g globalFlags, s streams) (config.Config, error) {
	if err := config.LoadEnvFiles(".env"); err != nil {
		return config.Config{}, err
	}

	path := g.configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	cfg.ApplyEnv(s.getenv)

	if g.provider != "" {
		cfg.LLMProvider = strings.ToLower(strings.TrimSpace(g.provider))
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.dryRun {
		cfg.DryRun = true
	}
	return cfg, nil
}

// load validates the configuration and builds the relay and speech service
// for the selected provider.
func load(g globalFlags, s streams) (*app, error) {
	cfg, err := loadConfig(g, s)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if _, err := logging.Init(cfg); err != nil {
		fmt.Fprintf(s.stderr, "Warning: file logging disabled: %v\n", err)
	}

	provider, err := ai.GetProviderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}

	reporter := speech.ReporterFunc(func(msg string) {
		fmt.Fprintln(s.stderr, msg)
	})

	transcriber, synthesizer := ai.AudioCapabilities(provider)
	return &app{
		cfg:    cfg,
		relay:  relay.New(provider, relay.OptionsFromConfig(cfg)),
		speech: speech.New(transcriber, synthesizer, cfg.Speech.OutputPath, reporter),
		io:     s,
	}, nil
}

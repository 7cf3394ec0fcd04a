package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	tea "charm.land/bubbletea/v2"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"chatrelay/pkg/ai"
	"chatrelay/pkg/config"
	"chatrelay/pkg/relay"
	"chatrelay/pkg/server"
	"chatrelay/pkg/ui"
)

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"chat":       runChat,
	"ask":        runAsk,
	"serve":      runServe,
	"transcribe": runTranscribe,
	"speak":      runSpeak,
}

func newFlagSet(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.io.stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

// activeProvider is the provider actually answering, which is echo in dry-run mode.
func activeProvider(cfg config.Config) string {
	if cfg.DryRun {
		return string(ai.ProviderEcho)
	}
	return cfg.LLMProvider
}

func (a *app) title() string {
	return activeProvider(a.cfg) + " · " + a.relay.Options().Model
}

// runChat opens the full-screen chat on a terminal and falls back to one
// question per input line when stdin or stdout is redirected.
func runChat(ctx context.Context, a *app, args []string) error {
	if err := parseFlags(newFlagSet(a, "chat"), args); err != nil {
		return err
	}

	if isTerminal(a.io.stdin) && isTerminal(a.io.stdout) {
		p := tea.NewProgram(ui.NewModel(a.relay, a.title()),
			tea.WithContext(ctx),
			tea.WithInput(a.io.stdin),
			tea.WithOutput(a.io.stdout),
		)
		_, err := p.Run()
		return err
	}
	return chatLines(ctx, a.relay, a.io.stdin, a.io.stdout)
}

// chatLines treats every non-blank input line as the next user turn and
// streams each reply on its own line. The whole exchange stays in history.
func chatLines(ctx context.Context, r *relay.Relay, in io.Reader, out io.Writer) error {
	var conv []ai.Message
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		conv = append(conv, ai.Message{Role: ai.RoleUser, Content: line})

		var reply strings.Builder
		for frag := range r.Stream(ctx, conv) {
			fmt.Fprint(out, frag)
			reply.WriteString(frag)
		}
		fmt.Fprintln(out)

		conv = append(conv, ai.Message{Role: ai.RoleAssistant, Content: reply.String()})
	}
	return scanner.Err()
}

func runAsk(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "ask")
	noStream := fs.Bool("no-stream", false, "wait for the full reply")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return fmt.Errorf("%w: ask needs a question", errUsage)
	}
	conv := []ai.Message{{Role: ai.RoleUser, Content: question}}

	var reply string
	if *noStream {
		reply = a.relay.Complete(ctx, conv)
		fmt.Fprintln(a.io.stdout, reply)
	} else {
		for frag := range a.relay.Stream(ctx, conv) {
			fmt.Fprint(a.io.stdout, frag)
			reply = frag
		}
		fmt.Fprintln(a.io.stdout)
	}

	// The apology is always the last fragment, so checking it is enough.
	if relay.IsApology(reply) {
		return fmt.Errorf("request failed")
	}
	return nil
}

func runServe(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "serve")
	addr := fs.String("addr", a.cfg.Server.Addr, "listen address")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(a.relay, a.speech, ai.ListProviders(), a.cfg.Server)
	fmt.Fprintf(a.io.stderr, "Serving %s on %s\n", a.title(), *addr)
	return srv.ListenAndServe(ctx, *addr)
}

func runTranscribe(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "transcribe")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: transcribe needs exactly one audio file", errUsage)
	}

	text, ok := a.speech.SpeechToText(ctx, fs.Arg(0))
	if !ok {
		return fmt.Errorf("transcription failed")
	}
	fmt.Fprintln(a.io.stdout, text)
	return nil
}

func runSpeak(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "speak")
	out := fs.String("o", a.speech.OutputPath(), "output mp3 path")
	html := fs.Bool("html", false, "print an autoplaying <audio> element instead of the path")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		return fmt.Errorf("%w: speak needs some text", errUsage)
	}

	if !a.speech.SynthesizeTo(ctx, text, *out) {
		return fmt.Errorf("speech synthesis failed")
	}

	if *html {
		element, ok := a.speech.AutoplayHTML(*out)
		if !ok {
			return fmt.Errorf("audio playback failed")
		}
		fmt.Fprintln(a.io.stdout, element)
		return nil
	}

	info, err := os.Stat(*out)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.io.stdout, "Saved %s (%s)\n", *out, humanize.Bytes(uint64(info.Size())))
	return nil
}

func runProviders(cfg config.Config, s streams, args []string) error {
	fs := flag.NewFlagSet("providers", flag.ContinueOnError)
	fs.SetOutput(s.stderr)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	active := activeProvider(cfg)
	tw := tabwriter.NewWriter(s.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tTYPE\tNAME\tKEY\tAUDIO\tDESCRIPTION")
	for _, info := range ai.ListProviders() {
		marker := ""
		if string(info.Type) == active {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			marker, info.Type, info.Name, yesNo(info.RequiresKey), yesNo(info.Audio), info.Description)
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

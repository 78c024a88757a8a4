package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v3"

	"github.com/rickchristie/regent"
	"github.com/rickchristie/regent/config"
	"github.com/rickchristie/regent/llm"
	_ "github.com/rickchristie/regent/llm/providers"
	"github.com/rickchristie/regent/toolbox"
	"github.com/rickchristie/regent/tracelog"
)

const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
	colorBold  = "\033[1m"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "regent",
		Usage: "run a ReAct agent against an LLM",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "model identifier, e.g. gpt-4o-mini"},
			&cli.StringFlag{Name: "instructions", Aliases: []string{"i"}, Usage: "agent instructions"},
			&cli.IntFlag{Name: "max-iterations", Usage: "model calls allowed per question"},
			&cli.BoolFlag{Name: "lenient", Usage: "turn LLM errors into answers instead of failing"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "transcript", Usage: "write the session as YAML to this file on exit"},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "answer one question",
				ArgsUsage: "<question>",
				Action:    runQuestion,
			},
			{
				Name:   "chat",
				Usage:  "interactive conversation sharing one session",
				Action: runChat,
			},
			{
				Name:      "diff",
				Usage:     "compare the conversations in two transcripts",
				ArgsUsage: "<want.yaml> <got.yaml>",
				Action:    diffTranscripts,
			},
			{
				Name:   "adapters",
				Usage:  "list adapters and whether they are enabled",
				Action: listAdapters,
			},
		},
	}
}

// loadConfig reads config and applies flags that were set explicitly.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	applyFlags(&cfg, cmd)
	return cfg, cfg.Validate()
}

func applyFlags(cfg *config.Config, cmd *cli.Command) {
	if cmd.IsSet("model") {
		cfg.Model = cmd.String("model")
	}
	if cmd.IsSet("instructions") {
		cfg.Instructions = cmd.String("instructions")
	}
	if cmd.IsSet("max-iterations") {
		cfg.MaxIterations = int(cmd.Int("max-iterations"))
	}
	if cmd.IsSet("lenient") {
		cfg.StrictMode = !cmd.Bool("lenient")
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
}

type session struct {
	agent *regent.Agent
	model *llm.LLM
}

func (s *session) close(transcript string) error {
	var errs []error
	if transcript != "" {
		errs = append(errs, writeTranscript(transcript, s.agent.Session()))
	}
	errs = append(errs, s.model.Close())
	return errors.Join(errs...)
}

func newSession(cmd *cli.Command, extra ...regent.Option) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger(os.Stderr)

	model, err := llm.New(cfg.Model, cfg.LLMOptions(logger)...)
	if err != nil {
		return nil, err
	}

	clock := regent.NewDefaultTimeProvider()
	opts := append(cfg.AgentOptions(logger),
		regent.WithTimeProvider(clock),
		regent.WithMethodTools(&builtins{clock: clock}, builtinDeclarations...),
		regent.WithTools(toolbox.Typed("convert_units", convertDescription, convertSchema, convertUnits)),
		regent.WithSubscriber(tracelog.NewLogger(logger, tracelog.DefaultMaxWidth)),
	)
	opts = append(opts, extra...)
	agent, err := regent.NewAgent(cfg.Instructions, model, opts...)
	if err != nil {
		_ = model.Close()
		return nil, err
	}
	return &session{agent: agent, model: model}, nil
}

func runQuestion(ctx context.Context, cmd *cli.Command) error {
	question := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if question == "" {
		return errors.New("a question is required")
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	answer, runErr := s.agent.Run(ctx, question)
	closeErr := s.close(cmd.String("transcript"))
	if runErr != nil {
		return runErr
	}
	fmt.Fprintln(cmd.Root().Writer, answer)
	return closeErr
}

func runChat(ctx context.Context, cmd *cli.Command) error {
	feed := regent.NewFeed()
	defer feed.Close()

	s, err := newSession(cmd, regent.WithSubscriber(feed))
	if err != nil {
		return err
	}

	rl, err := readline.New(colorCyan + "you> " + colorReset)
	if err != nil {
		_ = s.close("")
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	out := cmd.Root().Writer
	go showToolCalls(rl.Stderr(), feed)
	fmt.Fprintf(out, "%sChatting with %s. Type 'exit' to quit.%s\n", colorBold, s.model.Model(), colorReset)

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Fprintf(out, "%sGoodbye!%s\n", colorGreen, colorReset)
				break
			}
			_ = s.close(cmd.String("transcript"))
			return fmt.Errorf("failed to read input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		answer, err := s.agent.Run(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "%serror:%s %v\n", colorRed, colorReset, err)
			continue
		}
		fmt.Fprintf(out, "%sagent>%s %s\n", colorGreen, colorReset, answer)
	}
	return s.close(cmd.String("transcript"))
}

// showToolCalls prints tool executions while the agent works.
func showToolCalls(w io.Writer, feed *regent.Feed) {
	for span := range feed.Spans() {
		if span.Type != regent.SpanToolExecution {
			continue
		}
		fmt.Fprintf(w, "%s  %s(%s) -> %s%s\n", colorCyan,
			span.Metadata[regent.MetaTool],
			tracelog.Truncate(span.Input, 60),
			tracelog.Truncate(span.Output, 80),
			colorReset)
	}
}

func listAdapters(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	enabled := cfg.Enablement()
	keys := cfg.Keys()
	out := cmd.Root().Writer
	for _, id := range llm.AvailableAdapters {
		state := "disabled"
		if enabled.Enabled(id) {
			state = "enabled"
		}
		key := "no key"
		if keys[id] != "" {
			key = "key set"
		}
		fmt.Fprintf(out, "%-12s %-9s %s\n", id, state, key)
	}
	return nil
}

func diffTranscripts(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return errors.New("diff needs two transcript files")
	}
	want, err := readTranscript(cmd.Args().Get(0))
	if err != nil {
		return err
	}
	got, err := readTranscript(cmd.Args().Get(1))
	if err != nil {
		return err
	}

	diff, err := tracelog.Diff(want, got)
	if err != nil {
		return err
	}
	if diff == "" {
		fmt.Fprintf(cmd.Root().Writer, "%stranscripts match%s\n", colorGreen, colorReset)
		return nil
	}
	fmt.Fprint(cmd.Root().Writer, diff)
	return cli.Exit("", 1)
}

func readTranscript(path string) (tracelog.Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return tracelog.Transcript{}, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()
	return tracelog.ReadTranscript(f)
}

func writeTranscript(path string, session *regent.Session) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create transcript: %w", err)
	}
	if err := tracelog.WriteTranscript(f, session); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

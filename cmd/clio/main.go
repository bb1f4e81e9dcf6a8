// Command clio is a terminal-resident coding agent: it relays natural
// language requests to a chat-completion provider, lets the model drive
// local tools, and streams the result back.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/clio-agent/clio/internal/agent"
	"github.com/clio-agent/clio/internal/executor"
	"github.com/clio-agent/clio/internal/logging"
	"github.com/clio-agent/clio/internal/memory"
	"github.com/clio-agent/clio/internal/prompts"
	"github.com/clio-agent/clio/internal/provider"
	"github.com/clio-agent/clio/internal/results"
	"github.com/clio-agent/clio/internal/sandbox"
	"github.com/clio-agent/clio/internal/session"
	"github.com/clio-agent/clio/internal/tools"
)

func main() {
	_ = godotenv.Load()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "clio: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	workDir := flag.String("workdir", "", "Project directory (default: current directory or CLIO_WORKDIR)")
	providerName := flag.String("provider", "", "Provider: openai, anthropic, gemini, deepseek, groq, ollama, lmstudio (default: CLIO_PROVIDER or openai)")
	model := flag.String("model", "", "Model name (default: provider default)")
	sessionID := flag.String("session", "", "Resume an existing session by id")
	listSessions := flag.Bool("sessions", false, "List stored sessions and exit")
	deleteSession := flag.String("delete-session", "", "Delete a session by id and exit")
	sandboxOn := flag.Bool("sandbox", envBool("CLIO_SANDBOX"), "Confine file and git operations to the project directory")
	debug := flag.Bool("debug", envBool("CLIO_DEBUG"), "Debug logging")
	flag.Parse()

	wd, err := resolveWorkDir(*workDir)
	if err != nil {
		return err
	}
	configDir := filepath.Join(wd, ".clio")
	store := session.NewStore(configDir)

	if *listSessions {
		return printSessions(store)
	}
	if *deleteSession != "" {
		if err := store.Delete(*deleteSession); err != nil {
			return err
		}
		fmt.Printf("deleted session %s\n", *deleteSession)
		return nil
	}

	logsDir := filepath.Join(configDir, "logs")
	log, err := logging.New(logging.Config{Dir: logsDir, Debug: *debug})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	ctx := context.Background()
	setup, err := provider.New(ctx, *providerName, *model)
	if err != nil {
		return err
	}

	sess, err := openSession(store, *sessionID, wd, setup, *sandboxOn)
	if err != nil {
		var owned *session.AlreadyOwnedError
		if errors.As(err, &owned) {
			return fmt.Errorf("%w\nanother clio process owns this session; close it or pick a different -session", err)
		}
		return err
	}
	defer sess.Close()

	log = log.With().Str("session", sess.ID()).Logger()
	log.Info().
		Str("provider", setup.Client.Name()).
		Str("model", setup.Model).
		Str("workdir", wd).
		Bool("sandbox", *sandboxOn).
		Msg("session ready")

	longMem, err := memory.OpenLongTerm(ctx, filepath.Join(configDir, "memory.db"))
	if err != nil {
		log.Warn().Err(err).Msg("long-term memory unavailable, falling back to short-term only")
		longMem = nil
	}
	if longMem != nil {
		defer longMem.Close()
	}

	stdin := newStdinChannel()
	resultStore := results.NewStore(sess.Dir())

	deps := tools.Deps{
		WorkDir:     wd,
		Results:     resultStore,
		ShortMemory: memory.NewShortTerm(),
		Collab:      stdin,
	}
	if longMem != nil {
		deps.LongMemory = longMem
	}
	registry := tools.NewRegistry(deps)

	exec := executor.New(
		registry,
		sandbox.Config{Enabled: *sandboxOn, Root: wd},
		resultStore,
		sess.ID(),
		logging.NewToolLog(logsDir),
		log,
	)

	stats := logging.NewProcessStats(logsDir, sess.ID(), log)
	renderer := newRenderer(os.Stdout)

	orch := &agent.Orchestrator{
		Client:     setup.Client,
		Model:      setup.Model,
		Tools:      registry,
		Runner:     exec,
		Compressor: &agent.Summarizer{Client: setup.Client, Model: setup.Model, Ratio: sess.TokenRatio()},
		Caps:       agent.CapabilityFor(setup.Client.Name(), setup.Model, setup.BaseURL),
		Retry:      agent.DefaultRetryPolicy(),
		Sink:       renderer,
		Stats:      stats,
		Log:        log,
	}

	stats.Capture("session_start")
	return repl(ctx, orch, sess, stdin, log)
}

// repl reads user input lines and runs one turn per line. Ctrl-C cancels the
// in-flight turn; a second Ctrl-C at the prompt exits.
func repl(ctx context.Context, orch *agent.Orchestrator, sess *session.Session, stdin *stdinChannel, log zerolog.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	fmt.Printf("clio %s | %s | /exit to quit\n", sess.ID(), sess.Model())

	for {
		fmt.Print("you> ")
		line, err := stdin.ReadLine()
		if err != nil {
			return nil // EOF ends the session
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/exit" || line == "/quit" {
			return nil
		}

		turnCtx, cancel := context.WithCancel(ctx)
		go func() {
			select {
			case <-sigCh:
				fmt.Println("\n[cancelling turn]")
				cancel()
			case <-turnCtx.Done():
			}
		}()

		outcome, err := orch.RunTurn(turnCtx, sess, line)
		cancel()

		switch outcome {
		case agent.OutcomeFatal:
			log.Error().Err(err).Msg("turn failed")
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		case agent.OutcomeCancelled:
			fmt.Println("[turn cancelled]")
		case agent.OutcomeIterationLimit:
			fmt.Println("[stopped: iteration limit reached]")
		}
		fmt.Println()
	}
}

func openSession(store *session.Store, id, workDir string, setup *provider.Setup, sandboxed bool) (*session.Session, error) {
	if id != "" {
		return store.Load(id)
	}
	sess, err := store.Create(workDir, setup.Client.Name(), setup.Model)
	if err != nil {
		return nil, err
	}
	sess.Append(agent.Message{Role: agent.RoleSystem, Content: prompts.System(workDir, sandboxed)})
	return sess, nil
}

func printSessions(store *session.Store) error {
	metas, err := store.List()
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Println("no sessions")
		return nil
	}
	for _, m := range metas {
		fmt.Printf("%s  %s/%s  %d messages  updated %s\n",
			m.SessionID, m.Provider, m.Model, m.MessageCount, m.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func resolveWorkDir(flagValue string) (string, error) {
	wd := flagValue
	if wd == "" {
		wd = os.Getenv("CLIO_WORKDIR")
	}
	if wd == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to determine working directory: %w", err)
		}
		wd = cwd
	}
	abs, err := filepath.Abs(wd)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("working directory %s is not a directory", abs)
	}
	return abs, nil
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

// stdinChannel serializes access to stdin between the REPL prompt and the
// ask_user tool; only one of them reads at a time by construction.
type stdinChannel struct {
	scanner *bufio.Scanner
}

func newStdinChannel() *stdinChannel {
	return &stdinChannel{scanner: bufio.NewScanner(os.Stdin)}
}

func (c *stdinChannel) ReadLine() (string, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("stdin closed")
	}
	return c.scanner.Text(), nil
}

// Ask implements collab.Channel.
func (c *stdinChannel) Ask(ctx context.Context, prompt string) (string, error) {
	fmt.Printf("\nclio asks: %s\nanswer> ", prompt)

	type lineResult struct {
		text string
		err  error
	}
	ch := make(chan lineResult, 1)
	go func() {
		text, err := c.ReadLine()
		ch <- lineResult{text, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.text, res.err
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"researcher/internal/config"
	"researcher/internal/display"
	"researcher/internal/listener"
	"researcher/internal/logger"
	"researcher/internal/mission"
	"researcher/internal/supervisor"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "researcher",
	Short: "An autonomous web research assistant",
	Long: `Plans a research topic into steps, searches the web for each step and
summarizes the findings, first quickly and then with a full LLM analysis.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runInteractive,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default ./researcher.yaml)")
	pf.Bool("verbose", false, "mirror the log to stderr")
	pf.String("log-file", "", "log file path")
	pf.String("llm", "", "completion backend: gemini or ollama")
	pf.String("search", "", "search backend: gemini or serper")

	rootCmd.AddCommand(runCmd, planCmd, serveCmd)
}

// setup loads configuration, binds flags over it and opens the log.
func setup(cmd *cobra.Command, _ []string) error {
	v, err := config.New(configPath)
	if err != nil {
		return err
	}
	bindings := map[string]string{
		"log.verbose":    "verbose",
		"log.file":       "log-file",
		"llm.backend":    "llm",
		"search.backend": "search",
		"server.address": "addr",
	}
	for key, name := range bindings {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}
	if cfg, err = config.Load(v); err != nil {
		return err
	}

	if cfg.Log.Verbose {
		err = logger.Tee(cfg.Log.File, os.Stderr)
	} else {
		err = logger.Init(cfg.Log.File)
	}
	if err != nil {
		return fmt.Errorf("could not initialize logger: %w", err)
	}
	return nil
}

// parseTopic splits "title :: description". A bare line is used as both.
func parseTopic(line string) (string, string) {
	title, desc, ok := strings.Cut(line, "::")
	if !ok {
		line = strings.TrimSpace(line)
		return line, line
	}
	return strings.TrimSpace(title), strings.TrimSpace(desc)
}

func runInteractive(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	history := ""
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, ".researcher_history")
	}
	if err := listener.Init(history); err != nil {
		return fmt.Errorf("failed to init terminal input: %w", err)
	}
	defer listener.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener.AsyncPrintln("Enter a topic as 'title :: description' (commands: status, cancel, exit).")

	for {
		line, err := listener.GetInput()
		if err != nil {
			break
		}
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return shutdown(a)
		case "status":
			if m := a.agent.CurrentMission(); m != nil {
				listener.AsyncPrintln(display.FormatMission(m))
			} else {
				listener.AsyncPrintln("No mission is running.")
			}
			continue
		case "cancel":
			if err := a.agent.Cancel(""); err != nil {
				listener.AsyncPrintln(err.Error())
			} else {
				listener.AsyncPrintln("Cancelling the running mission...")
			}
			continue
		}

		if a.agent.IsProcessing() {
			listener.AsyncPrintln(supervisor.ErrAlreadyProcessing.Error() + "; type 'cancel' to stop it.")
			continue
		}
		title, desc := parseTopic(line)
		if err := supervisor.ValidateTopic(title, desc); err != nil {
			listener.AsyncPrintln(err.Error())
			continue
		}
		startInteractive(ctx, a, title, desc)
	}
	return shutdown(a)
}

func startInteractive(ctx context.Context, a *app, title, desc string) {
	listener.AsyncPrintln("Planning research steps...")
	m := mission.New(title, desc)
	m.Steps = a.planner.PlanSteps(ctx, supervisor.Topic(title, desc))
	mission.Reindex(m.Steps)
	logger.Log.Printf("[CLI] plan for %q (FULL):\n%s", title, display.FormatPlanFull(m.Steps))

	listener.AsyncPrintln(display.FormatPlan(m.Steps))
	if !listener.AskYesNo("Start research with this plan?") {
		listener.AsyncPrintln("[Mission REJECTED]")
		return
	}

	hooks := progressHooks(listener.AsyncPrintln)
	printStep := hooks.OnStepComplete
	hooks.OnStepComplete = func(step mission.Step, progress float64) {
		printStep(step, progress)
		listener.SetProgress("mission", progress)
	}
	listener.SetProgress("mission", 0)

	done, err := a.agent.Launch(ctx, m, hooks)
	if err != nil {
		listener.SetProgress("", 0)
		listener.AsyncPrintln(err.Error())
		return
	}
	listener.AsyncPrintln(fmt.Sprintf("[Mission %s STARTED]", m.ID))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		out := <-done
		listener.SetProgress("", 0)
		switch {
		case errors.Is(out.Err, supervisor.ErrCancelled):
			listener.AsyncPrintln(fmt.Sprintf("[Mission %s CANCELLED]", m.ID))
		case out.Err != nil:
			listener.AsyncPrintln(fmt.Sprintf("[Mission %s FAILED] %v", m.ID, out.Err))
		default:
			listener.AsyncPrintln(fmt.Sprintf("[Mission %s SUCCEEDED]", m.ID))
			listener.AsyncPrintln(display.FormatResults(out.Mission.Results))
		}
	}()
}

// progressHooks prints step progress and the comprehensive summary.
func progressHooks(out func(string)) supervisor.Hooks {
	return supervisor.Hooks{
		OnStepComplete: func(step mission.Step, progress float64) {
			out(display.FormatProgress(step, progress))
		},
		OnMissionUpdate: func(m *mission.Mission) {
			out(fmt.Sprintf("[Mission %s] comprehensive analysis ready", m.ID))
			out(display.FormatResults(m.Results))
		},
	}
}

func shutdown(a *app) error {
	if err := a.agent.Cancel(""); err == nil {
		fmt.Println("Cancelled the running mission.")
	}
	a.wg.Wait()
	a.agent.Wait()
	fmt.Println("Goodbye!")
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

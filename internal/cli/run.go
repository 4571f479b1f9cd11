package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"researcher/internal/display"
	"researcher/internal/mission"
	"researcher/internal/parser"
	"researcher/internal/planner"
	"researcher/internal/supervisor"
)

var (
	topicTitle       string
	topicDescription string
	waitForAnalysis  bool
	fullPlan         bool
	stepsFile        string
	planOut          string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Research one topic and print the results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := supervisor.ValidateTopic(topicTitle, topicDescription); err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		hooks := progressHooks(func(s string) { fmt.Fprintln(out, s) })
		if !waitForAnalysis {
			hooks.OnMissionUpdate = nil
		}
		hooks.OnPlanned = func(m *mission.Mission) {
			fmt.Fprintln(out, display.FormatPlan(m.Steps))
		}

		m := mission.New(topicTitle, topicDescription)
		if stepsFile != "" {
			if m.Steps, err = loadSteps(stepsFile); err != nil {
				return err
			}
			fmt.Fprintln(out, display.FormatPlan(m.Steps))
		}
		snap, err := a.agent.RunMission(ctx, m, hooks)
		if err != nil {
			fmt.Fprintln(out, display.FormatMission(snap))
			return err
		}
		fmt.Fprintln(out, display.FormatResults(snap.Results))

		if waitForAnalysis {
			fmt.Fprintln(out, "Waiting for the comprehensive analysis...")
			a.agent.Wait()
		}
		return nil
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the research steps planned for a topic",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := supervisor.ValidateTopic(topicTitle, topicDescription); err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		steps := a.planner.PlanSteps(cmd.Context(), supervisor.Topic(topicTitle, topicDescription))
		mission.Reindex(steps)
		printPlan(cmd.OutOrStdout(), steps, fullPlan)
		if planOut != "" {
			if err := parser.WriteStepsFile(planOut, planner.ToPlanned(steps)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Plan saved to %s; edit it and pass it to 'run --steps-file'.\n", planOut)
		}
		return nil
	},
}

func loadSteps(path string) ([]mission.Step, error) {
	planned, err := parser.LoadStepsFromFile(path)
	if err != nil {
		return nil, err
	}
	if len(planned) > planner.MaxSteps {
		return nil, fmt.Errorf("steps file %s has %d steps; at most %d are allowed", path, len(planned), planner.MaxSteps)
	}
	return planner.FromPlanned(planned)
}

func printPlan(w io.Writer, steps []mission.Step, full bool) {
	if full {
		fmt.Fprintln(w, display.FormatPlanFull(steps))
		return
	}
	fmt.Fprintln(w, display.FormatPlan(steps))
}

func init() {
	for _, c := range []*cobra.Command{runCmd, planCmd} {
		c.Flags().StringVarP(&topicTitle, "title", "t", "", "research topic title")
		c.Flags().StringVarP(&topicDescription, "description", "d", "", "what to find out about the topic")
		_ = c.MarkFlagRequired("title")
		_ = c.MarkFlagRequired("description")
	}
	runCmd.Flags().StringVar(&stepsFile, "steps-file", "", "run the steps in this JSON file instead of planning")
	planCmd.Flags().StringVarP(&planOut, "out", "o", "", "also save the plan as an editable JSON steps file")
	runCmd.Flags().BoolVarP(&waitForAnalysis, "wait", "w", false, "wait for and print the comprehensive analysis")
	planCmd.Flags().BoolVar(&fullPlan, "full", false, "print step descriptions without truncation")
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/focusquest-dev/focusquest"
	"github.com/focusquest-dev/focusquest/game"
	"github.com/focusquest-dev/focusquest/internal/simulate"

	// The firestore driver registers itself on import; linking it here keeps
	// its SDK out of binaries that embed the engine without it.
	_ "github.com/focusquest-dev/focusquest/pkg/store/firestore"
)

// Version information (set via ldflags)
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "focusquest",
		Short: "FocusQuest session gamification engine",
		Long:  "FocusQuest scores completed study sessions: XP, daily streaks, soft integrity audit, and ranking tiers.",
	}

	var configFile string
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "configuration file (YAML)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scoring engine with its HTTP API and ops server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Printf("Starting FocusQuest v%s", Version)
			return focusquest.Run(configFile)
		},
	}

	var simUsers, simDays int
	var simSeed int64
	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive the pipeline with deterministic synthetic users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(configFile, simUsers, simDays, simSeed)
		},
	}
	simulateCmd.Flags().IntVar(&simUsers, "users", 5, "number of synthetic users")
	simulateCmd.Flags().IntVar(&simDays, "days", 14, "number of simulated days")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 1, "random seed (equal seeds give equal reports)")

	replCmd := &cobra.Command{
		Use:   "repl",
		Short: "Score sessions interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(configFile)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("focusquest v%s\n", Version)
		},
	}

	root.AddCommand(serveCmd, simulateCmd, replCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// openEngine builds a headless engine: no servers, no sweep schedule.
func openEngine(configFile string) (*focusquest.Engine, error) {
	loader := focusquest.NewConfigLoader(&focusquest.OSFileReader{})
	config, err := loader.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	config.API.Enabled = false
	config.Ops.Enabled = false
	config.Sweep.Enabled = false
	return focusquest.Open(config)
}

func runSimulate(configFile string, users, days int, seed int64) error {
	engine, err := openEngine(configFile)
	if err != nil {
		return err
	}
	defer engine.Close()

	runner := simulate.New(engine.Orchestrator, simulate.Config{
		Users: users,
		Days:  days,
		Seed:  seed,
	})

	start := time.Now()
	report, err := runner.Run(context.Background())
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	fmt.Printf("Simulated %d session(s) in %s\n", report.Sessions, time.Since(start).Round(time.Millisecond))
	return nil
}

func runREPL(configFile string) error {
	engine, err := openEngine(configFile)
	if err != nil {
		return err
	}
	defer engine.Close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("FocusQuest REPL. Commands:")
	fmt.Println("  score <user> <minutes> [efficiency]   score a session")
	fmt.Println("  state <user>                          show a user's state")
	fmt.Println("  quit                                  exit")

	for {
		input, err := line.Prompt("focusquest> ")
		if err != nil {
			// Ctrl-C or EOF.
			fmt.Println()
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		fields := strings.Fields(input)
		switch fields[0] {
		case "quit", "exit":
			return nil
		case "score":
			if err := replScore(engine, fields[1:]); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		case "state":
			if err := replState(engine, fields[1:]); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

func replScore(engine *focusquest.Engine, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: score <user> <minutes> [efficiency]")
	}
	minutes, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("minutes must be an integer: %w", err)
	}
	efficiency := 75
	if len(args) > 2 {
		if efficiency, err = strconv.Atoi(args[2]); err != nil {
			return fmt.Errorf("efficiency must be an integer: %w", err)
		}
	}

	session := game.NewSession(args[0], minutes, minutes, efficiency)
	ended := session.EndedAt
	session.AppendAt(game.EventStart, "", ended.Add(-time.Duration(minutes)*time.Minute))
	for ts := session.Events[0].Timestamp.Add(5 * time.Minute); ts.Before(ended); ts = ts.Add(5 * time.Minute) {
		session.AppendAt(game.EventHeartbeat, "", ts)
	}
	session.AppendAt(game.EventEnd, "", ended)

	summary, err := engine.Process(context.Background(), session, game.SourceSession)
	if err != nil {
		return err
	}

	fmt.Printf("+%d XP (total %d, level %d)  streak %d  %s  audit %.1f/%.0f %s\n",
		summary.XP.Delta, summary.XP.TotalXP, summary.XP.Level,
		summary.Streak.Current, summary.Ranking.Tier,
		summary.Audit.AdjustedScore, summary.Audit.Threshold, verdict(summary.Audit.Valid))
	if summary.Streak.Milestone > 0 {
		fmt.Printf("🎉 %d-day streak milestone!\n", summary.Streak.Milestone)
	}
	if summary.Ranking.Promoted {
		fmt.Printf("⬆ promoted to %s\n", summary.Ranking.Tier)
	}
	return nil
}

func replState(engine *focusquest.Engine, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: state <user>")
	}
	state, err := engine.Store.GetState(context.Background(), args[0])
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func verdict(valid bool) string {
	if valid {
		return "ok"
	}
	return "flagged"
}

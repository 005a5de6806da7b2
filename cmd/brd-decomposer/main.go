package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"brd-decomposer/internal/config"
	"brd-decomposer/internal/helpers"
	"brd-decomposer/internal/models"
	"brd-decomposer/internal/repositories"
	"brd-decomposer/internal/services"
)

var (
	configFile string
	verbose    bool
	dryRun     bool

	logger *zap.Logger
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "brd-decomposer",
		Short: "BRD Decomposer - AI-powered requirements breakdown and JIRA integration",
		Long: `BRD Decomposer analyzes business requirements documents with AI,
breaks them into epics, user stories, and technical subtasks, and can
push the resulting backlog to JIRA or derive a Gantt schedule from it.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			zapConfig := zap.NewProductionConfig()
			if verbose {
				zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			logger, err = zapConfig.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	var processCmd = &cobra.Command{
		Use:   "process [file]",
		Short: "Process a requirements document into a summary and decomposition",
		Args:  cobra.ExactArgs(1),
		RunE:  runProcess,
	}
	processCmd.Flags().StringP("mode", "m", "full", "Processing mode (summary-only, full)")
	rootCmd.AddCommand(processCmd)

	var decomposeCmd = &cobra.Command{
		Use:   "decompose [run-id]",
		Short: "Decompose a summarized run into epics, stories, and subtasks",
		Args:  cobra.ExactArgs(1),
		RunE:  runDecompose,
	}
	rootCmd.AddCommand(decomposeCmd)

	var reparseCmd = &cobra.Command{
		Use:   "reparse [run-id]",
		Short: "Rebuild the decomposition from the retained raw model output",
		Args:  cobra.ExactArgs(1),
		RunE:  runReparse,
	}
	rootCmd.AddCommand(reparseCmd)

	var validateCmd = &cobra.Command{
		Use:   "validate [run-id]",
		Short: "Validate the raw decomposition and report structural problems",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
	rootCmd.AddCommand(validateCmd)

	var createJiraCmd = &cobra.Command{
		Use:   "create-jira [run-id]",
		Short: "Create JIRA tickets from a run's decomposition",
		Args:  cobra.ExactArgs(1),
		RunE:  runCreateJira,
	}
	createJiraCmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "Show what would be created without creating JIRA tickets")
	rootCmd.AddCommand(createJiraCmd)

	var ganttCmd = &cobra.Command{
		Use:   "gantt [run-id]",
		Short: "Derive a Gantt schedule from a run's decomposition",
		Args:  cobra.ExactArgs(1),
		RunE:  runGantt,
	}
	ganttCmd.Flags().String("start-date", "", "Project start date (YYYY-MM-DD, defaults to today)")
	ganttCmd.Flags().Int("team-size", 0, "Team size recorded on the chart (defaults to config)")
	rootCmd.AddCommand(ganttCmd)

	var runsCmd = &cobra.Command{
		Use:   "runs",
		Short: "List processing runs",
		Args:  cobra.NoArgs,
		RunE:  runRuns,
	}
	runsCmd.Flags().Int("limit", 10, "Maximum number of runs to list")
	rootCmd.AddCommand(runsCmd)

	if err := rootCmd.Execute(); err != nil {
		helpers.PrintError("Error: %v", err)
		os.Exit(1)
	}
}

// newServices loads config and wires the store and analysis service.
func newServices() (*config.Config, *repositories.RunStore, *services.AnalysisService, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := repositories.NewRunStore(cfg.Processing.StorageDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open run store: %w", err)
	}

	ai := services.NewAIClient(&cfg.Anthropic, logger)
	return cfg, store, services.NewAnalysisService(store, ai, cfg, logger), nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	_, _, analysis, err := newServices()
	if err != nil {
		return err
	}

	helpers.PrintTitle("Processing Requirements Document")
	helpers.PrintInfo("Input file: %s", args[0])

	run, summary, err := analysis.ProcessDocument(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to process document: %w", err)
	}

	helpers.PrintSuccess("Summary generated for %q", summary.ProjectName)
	helpers.PrintInfo("Objectives: %d, Features: %d, Risks: %d",
		len(summary.Objectives), len(summary.KeyFeatures), len(summary.Risks))
	helpers.PrintInfo("Run ID: %s", run.ID)

	if mode, _ := cmd.Flags().GetString("mode"); mode == "summary-only" {
		helpers.PrintInfo("Next: brd-decomposer decompose %s", run.ID)
		return nil
	}

	dec, err := analysis.Decompose(cmd.Context(), run.ID)
	if err != nil {
		return err
	}
	services.DisplayBreakdown(dec)
	helpers.PrintSuccess("Processing completed successfully!")
	return nil
}

func runDecompose(cmd *cobra.Command, args []string) error {
	_, _, analysis, err := newServices()
	if err != nil {
		return err
	}

	helpers.PrintTitle("Decomposing Requirements")

	dec, err := analysis.Decompose(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	services.DisplayBreakdown(dec)
	helpers.PrintSuccess("Decomposition completed successfully!")
	return nil
}

func runReparse(cmd *cobra.Command, args []string) error {
	_, store, analysis, err := newServices()
	if err != nil {
		return err
	}

	helpers.PrintTitle("Reparsing Raw Decomposition")

	dec, err := analysis.Reparse(args[0])
	if err != nil {
		return err
	}

	if err := store.SaveDecomposition(args[0], dec); err != nil {
		return fmt.Errorf("failed to save decomposition: %w", err)
	}

	services.DisplayBreakdown(dec)
	helpers.PrintSuccess("Reparse completed successfully!")
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	_, _, analysis, err := newServices()
	if err != nil {
		return err
	}

	report, err := analysis.Validate(args[0])
	if err != nil {
		return err
	}

	helpers.PrintTitle("Validation Report")
	helpers.PrintInfo("Epics: %d, Stories: %d, Subtasks: %d, Hours: %d",
		report.Statistics.EpicsCount,
		report.Statistics.StoriesCount,
		report.Statistics.SubtasksCount,
		report.Statistics.TotalHours)

	for _, warning := range report.Warnings {
		helpers.PrintWarning("%s", warning)
	}
	for _, errMsg := range report.Errors {
		helpers.PrintError("%s", errMsg)
	}

	if !report.IsValid {
		return fmt.Errorf("decomposition is invalid")
	}
	helpers.PrintSuccess("Decomposition is valid")
	return nil
}

func runCreateJira(cmd *cobra.Command, args []string) error {
	cfg, store, _, err := newServices()
	if err != nil {
		return err
	}
	if err := cfg.ValidateJira(); err != nil {
		return err
	}

	runID := args[0]
	dec, err := store.LoadDecomposition(runID)
	if err != nil {
		return fmt.Errorf("decomposition not found: %w", err)
	}

	helpers.PrintTitle("Creating JIRA Tickets")
	services.DisplayBreakdown(dec)

	if dryRun {
		helpers.PrintInfo("Dry run mode - no JIRA tickets will be created")
		return nil
	}

	if !confirmCreation() {
		helpers.PrintInfo("Operation cancelled by user")
		return nil
	}

	if err := store.UpdateStep(runID, models.StepJiraSync, models.StepInProgress, nil); err != nil {
		return err
	}

	jiraService := services.NewJiraSyncService(&cfg.Jira, logger)
	if err := jiraService.TestConnection(); err != nil {
		return err
	}

	result := jiraService.SyncDecomposition(runID, dec)
	if err := store.SaveSyncResult(runID, result); err != nil {
		return fmt.Errorf("failed to save sync result: %w", err)
	}

	stepStatus := models.StepCompleted
	if result.TicketsFailed > 0 {
		stepStatus = models.StepFailed
	}
	if err := store.UpdateStep(runID, models.StepJiraSync, stepStatus, map[string]string{
		"created": fmt.Sprintf("%d", result.TicketsCreated),
		"failed":  fmt.Sprintf("%d", result.TicketsFailed),
	}); err != nil {
		return err
	}

	helpers.PrintSeparator()
	helpers.PrintInfo("Tickets created: %d, failed: %d", result.TicketsCreated, result.TicketsFailed)
	if result.TicketsFailed > 0 {
		return fmt.Errorf("%d tickets failed to sync", result.TicketsFailed)
	}

	if err := store.UpdateStatus(runID, models.RunCompleted); err != nil {
		return err
	}
	helpers.PrintSuccess("JIRA sync completed successfully!")
	return nil
}

func runGantt(cmd *cobra.Command, args []string) error {
	cfg, store, analysis, err := newServices()
	if err != nil {
		return err
	}

	startFlag, _ := cmd.Flags().GetString("start-date")
	start := time.Now().UTC().Truncate(24 * time.Hour)
	if startFlag != "" {
		start, err = time.Parse("2006-01-02", startFlag)
		if err != nil {
			return fmt.Errorf("invalid start date %q: %w", startFlag, err)
		}
	}

	teamSize, _ := cmd.Flags().GetInt("team-size")
	if teamSize <= 0 {
		teamSize = cfg.Processing.TeamSize
	}

	helpers.PrintTitle("Generating Gantt Schedule")

	chart, err := analysis.GenerateGantt(args[0], start, teamSize)
	if err != nil {
		return err
	}

	helpers.PrintInfo("Tasks: %d, Milestones: %d", len(chart.Tasks), len(chart.Milestones))
	helpers.PrintInfo("Project: %s to %s (%d days)",
		chart.ProjectStart, chart.ProjectEnd, chart.TotalDurationDays)
	helpers.PrintSuccess("Gantt schedule saved to %s", store.RunDir(args[0]))
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	_, store, _, err := newServices()
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		helpers.PrintInfo("No runs yet")
		return nil
	}

	helpers.PrintTitle("Processing Runs")
	for _, run := range runs {
		fmt.Printf("%s  %-12s  %-20s  %s\n",
			run.ID, run.Status, run.FileName, run.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func confirmCreation() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Do you want to create these tickets in JIRA? (y/N): ")
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

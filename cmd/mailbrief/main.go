package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/quillhq/mailbrief/internal/brief"
	"github.com/quillhq/mailbrief/internal/config"
	"github.com/quillhq/mailbrief/internal/extract"
	"github.com/quillhq/mailbrief/internal/llm"
	"github.com/quillhq/mailbrief/internal/logger"
	"github.com/quillhq/mailbrief/internal/mail"
	"github.com/quillhq/mailbrief/internal/store"
	"github.com/quillhq/mailbrief/internal/task"
	"github.com/quillhq/mailbrief/internal/triage"
	"github.com/quillhq/mailbrief/internal/watch"
)

var rootCmd = &cobra.Command{
	Use:   "mailbrief",
	Short: "mailbrief - turn email into a prioritized task list",
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Fetch emails and extract tasks",
	RunE:  runExtract,
}

var prioritizeCmd = &cobra.Command{
	Use:   "prioritize",
	Short: "Prioritize pending tasks with the Eisenhower Matrix",
	RunE:  runPrioritize,
}

var briefCmd = &cobra.Command{
	Use:   "brief",
	Short: "Generate a daily brief from stored tasks",
	RunE:  runBrief,
}

var fullCmd = &cobra.Command{
	Use:   "full",
	Short: "Run the full pipeline: fetch, extract, prioritize, brief",
	RunE:  runFull,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the full pipeline on a cron schedule",
	RunE:  runWatch,
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List stored tasks",
	RunE:  runTasks,
}

var doneCmd = &cobra.Command{
	Use:   "done <task-id>",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runDone,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize config and VIP sender list",
	RunE:  runInit,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mailbrief status",
	RunE:  runStatus,
}

var (
	emailsFlag   int
	queryFlag    string
	modelFlag    string
	outputFlag   string
	calendarFlag string
	scheduleFlag string
	statusFlag   string
	priorityFlag string
	limitFlag    int
)

func init() {
	for _, cmd := range []*cobra.Command{extractCmd, fullCmd} {
		cmd.Flags().IntVarP(&emailsFlag, "emails", "n", 0, "Max emails to fetch")
		cmd.Flags().StringVarP(&queryFlag, "query", "q", "", "Gmail search query")
	}
	for _, cmd := range []*cobra.Command{extractCmd, prioritizeCmd, briefCmd, fullCmd, watchCmd} {
		cmd.Flags().StringVar(&modelFlag, "model", "", "Model identifier")
	}
	for _, cmd := range []*cobra.Command{extractCmd, prioritizeCmd, fullCmd, tasksCmd} {
		cmd.Flags().StringVarP(&outputFlag, "output", "o", "table", "Output format (table|json|csv)")
	}
	for _, cmd := range []*cobra.Command{briefCmd, fullCmd, watchCmd} {
		cmd.Flags().StringVar(&calendarFlag, "calendar", "", "Path to a calendar events JSON file")
	}
	watchCmd.Flags().StringVar(&scheduleFlag, "schedule", "", "Cron schedule (default from config)")
	tasksCmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status")
	tasksCmd.Flags().StringVar(&priorityFlag, "priority", "", "Filter by priority (P0..P3)")
	tasksCmd.Flags().IntVar(&limitFlag, "limit", 50, "Max tasks to list")

	rootCmd.AddCommand(extractCmd, prioritizeCmd, briefCmd, fullCmd, watchCmd, tasksCmd, doneCmd, initCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig applies command-line overrides on top of file/env config and
// enforces the credential requirement before any core logic runs.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if modelFlag != "" {
		cfg.Model = modelFlag
	}
	if emailsFlag > 0 {
		cfg.Gmail.MaxResults = emailsFlag
	}
	if queryFlag != "" {
		cfg.Gmail.Query = queryFlag
	}
	if cfg.Provider.APIKey == "" {
		return nil, fmt.Errorf("API key not set. Run 'mailbrief init' and set MAILBRIEF_API_KEY or ANTHROPIC_API_KEY")
	}
	return cfg, nil
}

func openStore(cfg *config.Config, log zerolog.Logger) (*store.Store, error) {
	st, err := store.New(cfg.DBPath, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New()

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	tasks, err := extractStage(cmd.Context(), cfg, st, log)
	if err != nil {
		return err
	}
	if tasks == nil {
		return nil
	}
	return renderTasks(os.Stdout, tasks, outputFlag)
}

// extractStage fetches mail, extracts tasks and persists them. A fetch
// failure degrades to an empty batch; nil means there was nothing to do.
func extractStage(ctx context.Context, cfg *config.Config, st *store.Store, log zerolog.Logger) ([]*task.Task, error) {
	gmail, err := mail.NewClientFromFiles(ctx, cfg.Gmail.CredentialsPath, cfg.Gmail.TokenPath, log)
	if err != nil {
		return nil, fmt.Errorf("gmail auth: %w", err)
	}

	messages, err := gmail.FetchMessages(ctx, cfg.Gmail.Query, cfg.Gmail.MaxResults)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch emails")
		messages = nil
	}
	if len(messages) == 0 {
		log.Info().Msg("no emails found matching query")
		return nil, nil
	}

	log.Info().Int("emails", len(messages)).Msg("starting extraction")
	extractor := extract.New(llm.New(cfg.Provider, cfg.Model), log)
	tasks := extractor.ExtractBatch(messages)
	log.Info().Int("tasks", len(tasks)).Int("emails", len(messages)).Msg("extraction complete")

	if err := st.SaveTasks(tasks); err != nil {
		return nil, err
	}
	if err := st.LogRun(len(messages), tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func runPrioritize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New()

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	tasks, err := prioritizeStage(cfg, st, log)
	if err != nil {
		return err
	}
	if tasks == nil {
		return nil
	}
	return renderTasks(os.Stdout, tasks, outputFlag)
}

func prioritizeStage(cfg *config.Config, st *store.Store, log zerolog.Logger) ([]*task.Task, error) {
	tasks, err := st.GetTasks(store.Filter{Status: task.StatusPending})
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		log.Info().Msg("no pending tasks to prioritize")
		return nil, nil
	}

	rules := triage.LoadVIPRules(cfg.VIPPath, log)
	prioritizer := triage.NewPrioritizer(llm.New(cfg.Provider, cfg.Model), rules, log)
	prioritized := prioritizer.Prioritize(tasks)

	if err := st.SaveTasks(prioritized); err != nil {
		return nil, err
	}
	return prioritized, nil
}

func runBrief(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New()

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	return briefStage(cfg, st, log)
}

func briefStage(cfg *config.Config, st *store.Store, log zerolog.Logger) error {
	tasks, err := st.GetTasks(store.Filter{Limit: 100})
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		log.Info().Msg("no tasks for brief generation")
		return nil
	}

	events := brief.LoadEvents(calendarFlag, log)
	composer := brief.NewComposer(llm.New(cfg.Provider, cfg.Model), log)
	markdown := composer.ComposeMarkdown(tasks, len(tasks), events)

	if err := os.MkdirAll(cfg.Output.BriefDir, 0755); err != nil {
		return fmt.Errorf("create brief dir: %w", err)
	}
	path := filepath.Join(cfg.Output.BriefDir, fmt.Sprintf("daily_brief_%s.md", time.Now().Format("2006-01-02")))
	if err := os.WriteFile(path, []byte(markdown), 0644); err != nil {
		return fmt.Errorf("write brief: %w", err)
	}

	fmt.Println("\n" + markdown)
	log.Info().Str("path", path).Msg("brief saved")
	return nil
}

func runFull(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New()

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	return fullPipeline(cmd.Context(), cfg, st, log)
}

func fullPipeline(ctx context.Context, cfg *config.Config, st *store.Store, log zerolog.Logger) error {
	if _, err := extractStage(ctx, cfg, st, log); err != nil {
		return err
	}
	if _, err := prioritizeStage(cfg, st, log); err != nil {
		return err
	}
	if err := briefStage(cfg, st, log); err != nil {
		return err
	}
	log.Info().Msg("pipeline complete")
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New()

	schedule := scheduleFlag
	if schedule == "" {
		schedule = cfg.Watch.Schedule
	}

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := watch.New(schedule, func() error {
		return fullPipeline(ctx, cfg, st, log)
	}, log)
	if err != nil {
		return err
	}
	return svc.Start(ctx)
}

func runTasks(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New()

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	filter := store.Filter{Limit: limitFlag}
	if statusFlag != "" {
		parsed, err := task.ParseStatus(statusFlag)
		if err != nil {
			return err
		}
		filter.Status = parsed
	}
	if priorityFlag != "" {
		parsed, err := task.ParsePriority(priorityFlag)
		if err != nil {
			return err
		}
		filter.Priority = parsed
	}

	tasks, err := st.GetTasks(filter)
	if err != nil {
		return err
	}
	return renderTasks(os.Stdout, tasks, outputFlag)
}

func runDone(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New()

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	id := args[0]
	t, err := st.GetTask(id)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("task %s not found", id)
	}
	if err := st.UpdateStatus(id, task.StatusCompleted); err != nil {
		return err
	}
	fmt.Printf("Completed: %s\n", t.Title)
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return err
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	vipPath := filepath.Join(cfgDir, "vip_senders.yaml")
	writeIfNotExists(vipPath, defaultVIPYAML)

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Set MAILBRIEF_API_KEY or edit %s\n", cfgPath)
	fmt.Printf("  2. Place Gmail OAuth files at %s and %s\n",
		filepath.Join(cfgDir, "credentials.json"), filepath.Join(cfgDir, "token.json"))
	fmt.Println("  3. Run 'mailbrief full' to process your inbox")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Model: %s\n", cfg.Model)
	if cfg.Provider.APIKey != "" && len(cfg.Provider.APIKey) > 8 {
		masked := cfg.Provider.APIKey[:4] + "..." + cfg.Provider.APIKey[len(cfg.Provider.APIKey)-4:]
		fmt.Printf("API Key: %s\n", masked)
	} else if cfg.Provider.APIKey != "" {
		fmt.Println("API Key: set")
	} else {
		fmt.Println("API Key: not set")
	}
	fmt.Printf("Gmail query: %s (max %d)\n", cfg.Gmail.Query, cfg.Gmail.MaxResults)
	fmt.Printf("Database: %s\n", cfg.DBPath)
	fmt.Printf("VIP config: %s\n", cfg.VIPPath)
	fmt.Printf("Watch schedule: %s\n", cfg.Watch.Schedule)
	return nil
}

func writeIfNotExists(path, content string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		_ = os.WriteFile(path, []byte(content), 0644)
		fmt.Printf("  Created: %s\n", path)
	}
}

const defaultVIPYAML = `# VIP senders get a priority boost. Rules are checked in order;
# the first match wins.
vip_senders:
  - name: CEO
    email: ceo@example.com
    priority_boost: 2
  - name: Internal
    domain: example.com
    priority_boost: 1
`

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spigell/jobsieve/internal/ai/gemini"
	"github.com/spigell/jobsieve/internal/dispatch"
	"github.com/spigell/jobsieve/internal/filtering"
	"github.com/spigell/jobsieve/internal/jobs"
	"github.com/spigell/jobsieve/internal/logger"
	"github.com/spigell/jobsieve/internal/pipeline"
	"github.com/spigell/jobsieve/internal/profile"
	"github.com/spigell/jobsieve/internal/prompt"
	"github.com/spigell/jobsieve/internal/secrets"
	"github.com/spigell/jobsieve/internal/store"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes           = "Yes"
	PromptNo            = "No"
	PromptWorksetToFile = "Dump work set to file"

	defaultScoreMax = 100
)

var errExit = errors.New("exit requested")

var proceedPrompt = promptui.Select{
	Label: "Proceed?",
	Items: []string{PromptYes, PromptNo, PromptWorksetToFile},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scoring pipeline over the configured feed",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("force", "f", false, "reprocess records already present in the output")
	runCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation before dispatching model calls")
	runCmd.Flags().StringP("output", "o", "", "override the output file from the config")

	viper.BindPFlag("output", runCmd.Flags().Lookup("output"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting jobsieve", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if err := validateConfig(config); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	prof, err := profile.Load(config.ResumeFile, config.PreferencesFile)
	if err != nil {
		logger.Fatal("loading resume profile", zap.Error(err))
	}

	apiKey, err := resolveAPIKey(config)
	if err != nil {
		logger.Fatal(
			"loading gemini api key",
			zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY_FILE environment variable or the 'ai.gemini.api-key-file' key in the configuration file"),
		)
	}

	feed, err := jobs.ReadFeed(config.Input, logger)
	if err != nil {
		logger.Fatal("reading the job feed", zap.Error(err))
	}

	logger.Info("feed loaded", zap.String("input", config.Input), zap.Int("count", feed.Len()))

	feed, err = filtering.Run(logger, prepareFilters(config, logger), feed)
	if err != nil {
		logger.Fatal("filtering the feed", zap.Error(err))
	}

	if feed.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no records left to score"))
		return
	}

	scoreMin, scoreMax := scoreRange(config)

	builder, err := prompt.NewBuilder(promptConfig(config, scoreMin, scoreMax))
	if err != nil {
		logger.Fatal("building prompt templates", zap.Error(err))
	}

	// A bad key or model must abort before any record is attempted.
	client, err := newGeminiClient(ctx, config, apiKey, scoreMin, scoreMax, logger)
	if err != nil {
		logger.Fatal("creating the model client", zap.Error(err))
	}

	if cmd.Flag("yes").Value.String() == "false" {
		if err := confirm(feed, logger); err != nil {
			if errors.Is(err, errExit) {
				logger.Info("exiting", zap.String("reason", "got no from prompt"))
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}

	output := strings.TrimSpace(viper.GetString("output"))
	if output == "" {
		output = config.Output
	}

	state := &pipeline.State{}
	dispatcher := dispatch.New(client, dispatchConfig(config), state, logger)

	pipe := pipeline.New(
		pipelineConfig(cmd, config),
		builder,
		prof,
		dispatcher,
		store.NewCSV(output, scoreMax, logger),
		state,
		logger,
	)

	summary, err := pipe.Run(ctx, feed)
	if err != nil {
		logger.Fatal("pipeline failed", zap.Error(err))
	}

	logSummary(logger, output, summary)
}

// confirm asks the user before any tokens are spent. Looping lets them
// inspect the work set first.
func confirm(feed *jobs.Feed, logger *zap.Logger) error {
	for {
		logger.Info("records pending scoring", zap.Int("count", feed.Len()))

		_, action, err := proceedPrompt.Run()
		if err != nil {
			return err
		}

		switch action {
		case PromptYes:
			return nil
		case PromptNo:
			return errExit
		case PromptWorksetToFile:
			filename, err := feed.DumpToTmpFile()
			if err != nil {
				return fmt.Errorf("dump work set to file: %w", err)
			}
			logger.Info("dumping work set to file", zap.String("filename", filename))
		default:
			return fmt.Errorf("invalid action: %s", action)
		}
	}
}

func validateConfig(config *Config) error {
	if config == nil {
		return errors.New("config is required")
	}
	if strings.TrimSpace(config.Input) == "" {
		return errors.New("input feed file is required")
	}
	if strings.TrimSpace(config.Output) == "" && strings.TrimSpace(viper.GetString("output")) == "" {
		return errors.New("output file is required")
	}
	if strings.TrimSpace(config.ResumeFile) == "" || strings.TrimSpace(config.PreferencesFile) == "" {
		return errors.New("resume-file and preferences-file are required to score both axes")
	}
	if config.AI != nil {
		provider := strings.TrimSpace(strings.ToLower(config.AI.Provider))
		if provider != "" && provider != "gemini" {
			return fmt.Errorf("unsupported ai provider: %s", config.AI.Provider)
		}
	}
	return nil
}

func resolveAPIKey(config *Config) (string, error) {
	keyFile := ""
	if config.AI != nil && config.AI.Gemini != nil {
		keyFile = strings.TrimSpace(config.AI.Gemini.APIKeyFile)
	}
	if keyFile == "" {
		keyFile = strings.TrimSpace(viper.GetString("ai.gemini.api-key-file"))
	}

	return secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: keyFile,
		Env:  "GEMINI_API_KEY",
	})
}

func newGeminiClient(ctx context.Context, config *Config, apiKey string, scoreMin, scoreMax int, log *zap.Logger) (*gemini.Client, error) {
	cfg := gemini.Config{
		APIKey:   apiKey,
		ScoreMin: scoreMin,
		ScoreMax: scoreMax,
	}
	if config.AI != nil && config.AI.Gemini != nil {
		cfg.Model = config.AI.Gemini.Model
		cfg.MaxLogLength = config.AI.Gemini.MaxLogLength
	}
	if config.Pipeline != nil {
		cfg.Timeout = config.Pipeline.Timeout
	}

	client, err := gemini.New(ctx, cfg, logger.WithCommonFields(log, "gemini", cfg.Model))
	if err != nil {
		return nil, err
	}

	log.Info("model client ready", logger.CommonFields("gemini", client.Model())...)
	return client, nil
}

func prepareFilters(config *Config, logger *zap.Logger) []filtering.Filter {
	var companies []string
	if config.Exclude != nil {
		companies = config.Exclude.Companies
	}

	return []filtering.Filter{
		filtering.NewTraceBack(config.TraceBackDays, logger),
		filtering.NewExcludedCompanies(companies, logger),
	}
}

func scoreRange(config *Config) (int, int) {
	if config.Score == nil || config.Score.Max <= config.Score.Min {
		return 0, defaultScoreMax
	}
	return config.Score.Min, config.Score.Max
}

func promptConfig(config *Config, scoreMin, scoreMax int) prompt.Config {
	cfg := prompt.Config{ScoreMin: scoreMin, ScoreMax: scoreMax}
	if config.Prompts == nil {
		return cfg
	}

	cfg.MaxChars = config.Prompts.MaxPromptChars
	cfg.QualificationTemplate = readTemplate(config.Prompts.QualificationTemplate)
	cfg.PreferenceTemplate = readTemplate(config.Prompts.PreferenceTemplate)
	return cfg
}

// readTemplate loads an override template file, falling back to the
// embedded one on any problem.
func readTemplate(path string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

func dispatchConfig(config *Config) dispatch.Config {
	if config.Pipeline == nil {
		return dispatch.Config{}
	}
	return dispatch.Config{
		Concurrency:           config.Pipeline.Concurrency,
		Rate:                  config.Pipeline.Rate,
		Burst:                 config.Pipeline.Burst,
		RetryCeiling:          config.Pipeline.RetryCeiling,
		MalformedRetryCeiling: config.Pipeline.MalformedRetryCeiling,
		BackoffBase:           config.Pipeline.BackoffBase,
		BackoffMax:            config.Pipeline.BackoffMax,
	}
}

func pipelineConfig(cmd *cobra.Command, config *Config) pipeline.Config {
	cfg := pipeline.Config{
		Force: strings.EqualFold(cmd.Flag("force").Value.String(), "true"),
	}
	if config.Pipeline != nil {
		cfg.Workers = config.Pipeline.Workers
		cfg.FlushEvery = config.Pipeline.FlushEvery
	}
	return cfg
}

func logSummary(log *zap.Logger, output string, summary *pipeline.Summary) {
	fields := []zap.Field{
		zap.String("output", output),
		zap.Int("feed_size", summary.FeedSize),
		zap.Int("work_set", summary.WorkSet),
		zap.Int("already_scored", summary.SkippedExisting),
		zap.Int64("model_calls", summary.Counters.Attempted),
		zap.Int64("retries", summary.Counters.Retried),
		zap.Duration("elapsed", summary.Elapsed),
	}

	for status, count := range summary.ByStatus {
		fields = append(fields, zap.Int(fmt.Sprintf("status_%s", status), count))
	}
	for cause, count := range summary.ByCause {
		fields = append(fields, zap.Int(fmt.Sprintf("cause_%s", cause), count))
	}

	log.Info("scoring run finished", fields...)
}

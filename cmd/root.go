package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "jobsieve"
)

type Config struct {
	Input           string `mapstructure:"input"`
	Output          string `mapstructure:"output"`
	ResumeFile      string `mapstructure:"resume-file"`
	PreferencesFile string `mapstructure:"preferences-file"`
	TraceBackDays   int    `mapstructure:"trace-back-days"`
	Exclude         *struct {
		Companies []string
	}
	Pipeline *PipelineConfig `mapstructure:"pipeline"`
	Score    *ScoreConfig    `mapstructure:"score"`
	AI       *AIConfig       `mapstructure:"ai"`
	Prompts  *PromptsConfig  `mapstructure:"prompts"`
}

type PipelineConfig struct {
	Workers               int           `mapstructure:"workers"`
	Concurrency           int           `mapstructure:"concurrency"`
	Rate                  float64       `mapstructure:"rate"`
	Burst                 int           `mapstructure:"burst"`
	RetryCeiling          int           `mapstructure:"retry-ceiling"`
	MalformedRetryCeiling int           `mapstructure:"malformed-retry-ceiling"`
	BackoffBase           time.Duration `mapstructure:"backoff-base"`
	BackoffMax            time.Duration `mapstructure:"backoff-max"`
	FlushEvery            int           `mapstructure:"flush-every"`
	Timeout               time.Duration `mapstructure:"timeout"`
}

type ScoreConfig struct {
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type PromptsConfig struct {
	QualificationTemplate string `mapstructure:"qualification-template"`
	PreferenceTemplate    string `mapstructure:"preference-template"`
	MaxPromptChars        int    `mapstructure:"max-prompt-chars"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobsieve scores scraped job postings against a resume and preference profile with an LLM",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobsieve.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

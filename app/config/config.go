package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log          Log          `yaml:"log"`
	Server       Server       `yaml:"server"`
	LanguageTool LanguageTool `yaml:"language_tool"`
	OpenAI       OpenAI       `yaml:"openai"`
	Tavily       Tavily       `yaml:"tavily"`
	SpeechKit    SpeechKit    `yaml:"speech_kit"`
	Agent        Agent        `yaml:"agent"`
	Data         Data         `yaml:"data"`
}

type OpenAI struct {
	Semantic ModelConfig `yaml:"semantic" validate:"required"`
	Planner  ModelConfig `yaml:"planner" validate:"required"`
}

type ModelConfig struct {
	// OpenAI-compatible base url
	BaseURL string `yaml:"base_url" example:"https://api.groq.com/openai/v1" validate:"required"`
	// API token
	Token string `yaml:"token" example:"gsk_abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// Model name
	Model string `yaml:"model" example:"llama-3.3-70b-versatile" validate:"required"`
}

type LanguageTool struct {
	// LanguageTool API base url, the free public endpoint works without a key
	BaseURL string `yaml:"base_url" example:"https://api.languagetool.org/v2"`
	// API key for the premium endpoint
	APIKey string `yaml:"api_key"`
	// Language code sent with every check
	Language string `yaml:"language" example:"en-US"`
}

type Tavily struct {
	// Tavily search API token
	Token string `yaml:"token" example:"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"`
	// Maximum search results per query
	MaxResults int `yaml:"max_results" example:"2"`
}

type SpeechKit struct {
	// Path to the Yandex Cloud service account key file
	KeyFile string `yaml:"key_file" example:"service-account-key.json"`
	// TTS voice name
	Voice string `yaml:"voice" example:"jane"`
}

type Server struct {
	// Listen address of the HTTP API
	Listen string `yaml:"listen" example:":8080"`
}

type Agent struct {
	// Maximum planning iterations per turn
	MaxTurns int `yaml:"max_turns" example:"5"`
	// Timeout of a single checker call
	CheckerTimeout Duration `yaml:"checker_timeout" example:"10s"`
	// Timeout of a single planner call
	PlannerTimeout Duration `yaml:"planner_timeout" example:"30s"`
	// Maximum length of the reply sent back to the user
	MaxReplyLength int `yaml:"max_reply_length" example:"2000"`
}

// Duration parses "10s"-style values from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return oops.Errorf("failed to parse duration %q: %w", raw, err)
	}

	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Log struct {
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

type Data struct {
	// Directory for file-backed stores
	Dir string `yaml:"dir" example:"data"`
}

func Load() (*Config, error) {
	var result Config

	data, err := os.ReadFile("config.yaml")
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	if err = yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	if result.Server.Listen == "" {
		result.Server.Listen = ":8080"
	}
	if result.LanguageTool.BaseURL == "" {
		result.LanguageTool.BaseURL = "https://api.languagetool.org/v2"
	}
	if result.LanguageTool.Language == "" {
		result.LanguageTool.Language = "en-US"
	}
	if result.Tavily.MaxResults == 0 {
		result.Tavily.MaxResults = 2
	}
	if result.SpeechKit.KeyFile == "" {
		result.SpeechKit.KeyFile = "service-account-key.json"
	}
	if result.SpeechKit.Voice == "" {
		result.SpeechKit.Voice = "jane"
	}
	if result.Agent.MaxTurns == 0 {
		result.Agent.MaxTurns = 5
	}
	if result.Agent.CheckerTimeout == 0 {
		result.Agent.CheckerTimeout = Duration(10 * time.Second)
	}
	if result.Agent.PlannerTimeout == 0 {
		result.Agent.PlannerTimeout = Duration(30 * time.Second)
	}
	if result.Agent.MaxReplyLength == 0 {
		result.Agent.MaxReplyLength = 2000
	}
	if result.Data.Dir == "" {
		result.Data.Dir = "data"
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}

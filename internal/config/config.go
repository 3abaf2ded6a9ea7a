// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Tracker kinds accepted in TRACKER_KIND.
const (
	TrackerRedmine = "redmine"
	TrackerJira    = "jira"
)

// Config holds all configuration parameters for the application.
type Config struct {
	TrackerKind    string
	ProjectID      string
	TrackerTimeout time.Duration

	Redmine  RedmineConfig
	Jira     JiraConfig
	AI       AIConfig
	Line     LineConfig
	Bridge   BridgeConfig
	Reminder ReminderConfig
}

// RedmineConfig holds Redmine specific configuration.
type RedmineConfig struct {
	URL        string
	PublicURL  string
	APIKey     string
	OpenStatus string
	Priorities PriorityNames
}

// PriorityNames maps each ticket priority to the tracker's priority name.
type PriorityNames struct {
	Low    string
	Normal string
	High   string
	Urgent string
}

// JiraConfig holds JIRA specific configuration.
type JiraConfig struct {
	URL       string
	Username  string
	Token     string
	IssueType string
}

// AIConfig holds the text-completion backend configuration.
type AIConfig struct {
	APIKey         string
	Model          string
	MaxInputLength int
	Timeout        time.Duration
}

// LineConfig holds the push-messaging configuration.
type LineConfig struct {
	ChannelAccessToken string
	Timeout            time.Duration
}

// BridgeConfig holds the optional protocol bridge configuration.
type BridgeConfig struct {
	Endpoint string
	Tool     string
	Timeout  time.Duration
}

// ReminderConfig holds the reminder schedule and delivery configuration.
type ReminderConfig struct {
	RecipientID     string
	Time            string
	Timezone        string
	Cron            string
	DigestMaxLength int
	ShutdownTimeout time.Duration
}

// envBindings maps viper keys to the environment variables that feed them.
// The keys match the lowercased variable names so a .env file and the
// process environment resolve to the same key.
var envBindings = []string{
	"TRACKER_KIND",
	"PROJECT_ID",
	"REDMINE_URL",
	"REDMINE_PUBLIC_URL",
	"REDMINE_API_KEY",
	"REDMINE_OPEN_STATUS_IDS",
	"REDMINE_PRIORITY_LOW",
	"REDMINE_PRIORITY_NORMAL",
	"REDMINE_PRIORITY_HIGH",
	"REDMINE_PRIORITY_URGENT",
	"JIRA_URL",
	"JIRA_USERNAME",
	"JIRA_TOKEN",
	"JIRA_ISSUE_TYPE",
	"GOOGLE_API_KEY",
	"GEMINI_MODEL",
	"EXTRACT_MAX_INPUT",
	"AI_TIMEOUT",
	"TRACKER_TIMEOUT",
	"NOTIFY_TIMEOUT",
	"LINE_CHANNEL_ACCESS_TOKEN",
	"MY_LINE_USER_ID",
	"BRIDGE_ENDPOINT",
	"BRIDGE_TOOL",
	"BRIDGE_TIMEOUT",
	"REMINDER_TIME",
	"REMINDER_TIMEZONE",
	"REMINDER_CRON",
	"DIGEST_MAX_LENGTH",
	"SHUTDOWN_TIMEOUT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tracker_kind", TrackerRedmine)
	v.SetDefault("project_id", "1")
	v.SetDefault("redmine_open_status_ids", "open")
	v.SetDefault("redmine_priority_low", "Low")
	v.SetDefault("redmine_priority_normal", "Normal")
	v.SetDefault("redmine_priority_high", "High")
	v.SetDefault("redmine_priority_urgent", "Urgent")
	v.SetDefault("jira_issue_type", "Task")
	v.SetDefault("gemini_model", "gemini-2.5-flash")
	v.SetDefault("extract_max_input", 4000)
	v.SetDefault("ai_timeout", "30s")
	v.SetDefault("tracker_timeout", "30s")
	v.SetDefault("notify_timeout", "15s")
	v.SetDefault("bridge_tool", "create_issue")
	v.SetDefault("bridge_timeout", "30s")
	v.SetDefault("reminder_time", "08:00")
	v.SetDefault("reminder_timezone", "Asia/Tokyo")
	v.SetDefault("digest_max_length", 5000)
	v.SetDefault("shutdown_timeout", "30s")
}

// LoadConfig loads configuration from the environment and the .env file in
// the working directory, if present.
func LoadConfig() (*Config, error) {
	return Load(".env")
}

// Load loads configuration from the environment, layered over the dotenv
// file at envFile when it exists. An empty envFile skips the file.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for _, name := range envBindings {
		if err := v.BindEnv(strings.ToLower(name), name); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
			}
		}
	}

	redmineURL := strings.TrimRight(v.GetString("redmine_url"), "/")
	publicURL := strings.TrimRight(v.GetString("redmine_public_url"), "/")
	if publicURL == "" {
		publicURL = redmineURL
	}

	config := &Config{
		TrackerKind:    strings.ToLower(v.GetString("tracker_kind")),
		ProjectID:      v.GetString("project_id"),
		TrackerTimeout: v.GetDuration("tracker_timeout"),
		Redmine: RedmineConfig{
			URL:        redmineURL,
			PublicURL:  publicURL,
			APIKey:     v.GetString("redmine_api_key"),
			OpenStatus: v.GetString("redmine_open_status_ids"),
			Priorities: PriorityNames{
				Low:    v.GetString("redmine_priority_low"),
				Normal: v.GetString("redmine_priority_normal"),
				High:   v.GetString("redmine_priority_high"),
				Urgent: v.GetString("redmine_priority_urgent"),
			},
		},
		Jira: JiraConfig{
			URL:       strings.TrimRight(v.GetString("jira_url"), "/"),
			Username:  v.GetString("jira_username"),
			Token:     v.GetString("jira_token"),
			IssueType: v.GetString("jira_issue_type"),
		},
		AI: AIConfig{
			APIKey:         v.GetString("google_api_key"),
			Model:          v.GetString("gemini_model"),
			MaxInputLength: v.GetInt("extract_max_input"),
			Timeout:        v.GetDuration("ai_timeout"),
		},
		Line: LineConfig{
			ChannelAccessToken: v.GetString("line_channel_access_token"),
			Timeout:            v.GetDuration("notify_timeout"),
		},
		Bridge: BridgeConfig{
			Endpoint: v.GetString("bridge_endpoint"),
			Tool:     v.GetString("bridge_tool"),
			Timeout:  v.GetDuration("bridge_timeout"),
		},
		Reminder: ReminderConfig{
			RecipientID:     v.GetString("my_line_user_id"),
			Time:            v.GetString("reminder_time"),
			Timezone:        v.GetString("reminder_timezone"),
			Cron:            v.GetString("reminder_cron"),
			DigestMaxLength: v.GetInt("digest_max_length"),
			ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// validateConfig checks values that are wrong regardless of which command runs.
func validateConfig(config *Config) error {
	if config.TrackerKind != TrackerRedmine && config.TrackerKind != TrackerJira {
		return fmt.Errorf("unsupported TRACKER_KIND %q: expected %q or %q", config.TrackerKind, TrackerRedmine, TrackerJira)
	}
	if config.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID must not be empty")
	}
	if config.AI.MaxInputLength <= 0 {
		return fmt.Errorf("EXTRACT_MAX_INPUT must be positive, got %d", config.AI.MaxInputLength)
	}

	timeouts := []struct {
		name  string
		value time.Duration
	}{
		{"TRACKER_TIMEOUT", config.TrackerTimeout},
		{"AI_TIMEOUT", config.AI.Timeout},
		{"NOTIFY_TIMEOUT", config.Line.Timeout},
		{"BRIDGE_TIMEOUT", config.Bridge.Timeout},
		{"SHUTDOWN_TIMEOUT", config.Reminder.ShutdownTimeout},
	}
	for _, timeout := range timeouts {
		if timeout.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", timeout.name, timeout.value)
		}
	}
	return nil
}

// ValidateTrackerConfig validates configuration for the selected tracker.
func ValidateTrackerConfig(config *Config) error {
	if config.TrackerKind == TrackerJira {
		return ValidateJiraConfig(config)
	}
	return ValidateRedmineConfig(config)
}

// ValidateRedmineConfig validates Redmine-specific configuration.
func ValidateRedmineConfig(config *Config) error {
	var missingVars []string

	if config.Redmine.URL == "" {
		missingVars = append(missingVars, "REDMINE_URL")
	}
	if config.Redmine.APIKey == "" {
		missingVars = append(missingVars, "REDMINE_API_KEY")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}

// ValidateJiraConfig validates JIRA-specific configuration.
func ValidateJiraConfig(config *Config) error {
	var missingVars []string

	if config.Jira.URL == "" {
		missingVars = append(missingVars, "JIRA_URL")
	}
	if config.Jira.Username == "" {
		missingVars = append(missingVars, "JIRA_USERNAME")
	}
	if config.Jira.Token == "" {
		missingVars = append(missingVars, "JIRA_TOKEN")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}

// ValidateCreateConfig validates what the create command needs beyond the tracker.
func ValidateCreateConfig(config *Config) error {
	if err := ValidateTrackerConfig(config); err != nil {
		return err
	}
	if config.AI.APIKey == "" {
		return fmt.Errorf("missing required environment variables: [GOOGLE_API_KEY]")
	}
	return nil
}

// ValidateReminderConfig validates what the reminder job needs beyond the tracker.
func ValidateReminderConfig(config *Config) error {
	if err := ValidateTrackerConfig(config); err != nil {
		return err
	}

	var missingVars []string
	if config.Line.ChannelAccessToken == "" {
		missingVars = append(missingVars, "LINE_CHANNEL_ACCESS_TOKEN")
	}
	if config.Reminder.RecipientID == "" {
		missingVars = append(missingVars, "MY_LINE_USER_ID")
	}
	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	if _, err := time.LoadLocation(config.Reminder.Timezone); err != nil {
		return fmt.Errorf("invalid REMINDER_TIMEZONE %q: %w", config.Reminder.Timezone, err)
	}
	return nil
}

// Variable describes one configuration variable for the check command.
type Variable struct {
	Name      string
	Value     string
	Required  bool
	Sensitive bool
}

// Variables returns the configuration variables relevant to the selected
// tracker, in display order.
func (c *Config) Variables() []Variable {
	vars := []Variable{
		{Name: "TRACKER_KIND", Value: c.TrackerKind, Required: true},
		{Name: "PROJECT_ID", Value: c.ProjectID, Required: true},
	}
	if c.TrackerKind == TrackerJira {
		vars = append(vars,
			Variable{Name: "JIRA_URL", Value: c.Jira.URL, Required: true},
			Variable{Name: "JIRA_USERNAME", Value: c.Jira.Username, Required: true},
			Variable{Name: "JIRA_TOKEN", Value: c.Jira.Token, Required: true, Sensitive: true},
		)
	} else {
		vars = append(vars,
			Variable{Name: "REDMINE_URL", Value: c.Redmine.URL, Required: true},
			Variable{Name: "REDMINE_API_KEY", Value: c.Redmine.APIKey, Required: true, Sensitive: true},
			Variable{Name: "REDMINE_OPEN_STATUS_IDS", Value: c.Redmine.OpenStatus},
		)
	}
	return append(vars,
		Variable{Name: "GOOGLE_API_KEY", Value: c.AI.APIKey, Required: true, Sensitive: true},
		Variable{Name: "LINE_CHANNEL_ACCESS_TOKEN", Value: c.Line.ChannelAccessToken, Required: true, Sensitive: true},
		Variable{Name: "MY_LINE_USER_ID", Value: c.Reminder.RecipientID, Required: true},
		Variable{Name: "BRIDGE_ENDPOINT", Value: c.Bridge.Endpoint},
		Variable{Name: "REMINDER_TIME", Value: c.Reminder.Time},
		Variable{Name: "REMINDER_TIMEZONE", Value: c.Reminder.Timezone},
	)
}

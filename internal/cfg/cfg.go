// Package cfg holds service configuration, registered as flags and
// fillable from the environment.
package cfg

import (
	"errors"
	"flag"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/linnemanlabs/mailwatch/internal/classify"
)

// Config adds service-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string

	ClassificationMode string
	RulesPath          string
	ScoreThreshold     int

	FetchWindowHours int
	FetchLimit       int
	FetchUnread      bool
	Schedule         string

	CooldownMinutes int
	PreviewMaxLen   int

	ClaudeAPIKey string
	ClaudeModel  string

	DatabaseURL string

	GmailClientID     string
	GmailClientSecret string
	GmailRefreshToken string

	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioWhatsAppFrom string
	TwilioWhatsAppTo   string

	BitlyToken string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token protecting the API (empty = auth disabled)")
	fs.StringVar(&c.ClassificationMode, "classification-mode", "rule", "classification strategy: rule or llm")
	fs.StringVar(&c.RulesPath, "rules-path", "rules.json", "path to the keyword rules JSON file")
	fs.IntVar(&c.ScoreThreshold, "score-threshold", 0, "keyword score threshold override (0 = use rules file)")
	fs.IntVar(&c.FetchWindowHours, "fetch-window-hours", 48, "rolling window of mail to fetch per run (1..720)")
	fs.IntVar(&c.FetchLimit, "fetch-limit", 4, "maximum messages fetched per run (1..500)")
	fs.BoolVar(&c.FetchUnread, "fetch-unread", true, "fetch only unread mail")
	fs.StringVar(&c.Schedule, "schedule", "", "cron expression for scheduled runs (empty = API-triggered only)")
	fs.IntVar(&c.CooldownMinutes, "cooldown-minutes", 15, "minimum minutes between alerts for one sender (1..1440)")
	fs.IntVar(&c.PreviewMaxLen, "preview-max-len", 600, "maximum characters of body preview in alerts")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for accessing the Claude LLM provider")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.GmailClientID, "gmail-client-id", "", "Google OAuth2 client id")
	fs.StringVar(&c.GmailClientSecret, "gmail-client-secret", "", "Google OAuth2 client secret")
	fs.StringVar(&c.GmailRefreshToken, "gmail-refresh-token", "", "Google OAuth2 refresh token with gmail.readonly scope")
	fs.StringVar(&c.TwilioAccountSID, "twilio-account-sid", "", "Twilio account SID for WhatsApp alerts")
	fs.StringVar(&c.TwilioAuthToken, "twilio-auth-token", "", "Twilio auth token")
	fs.StringVar(&c.TwilioWhatsAppFrom, "twilio-whatsapp-from", "", "WhatsApp sender, e.g. whatsapp:+14155238886")
	fs.StringVar(&c.TwilioWhatsAppTo, "twilio-whatsapp-to", "", "WhatsApp recipient")
	fs.StringVar(&c.BitlyToken, "bitly-token", "", "Bitly access token for alert deep links (empty = full links)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	mode := classify.Mode(c.ClassificationMode)
	if mode != classify.ModeRule && mode != classify.ModeLLM {
		errs = append(errs, fmt.Errorf("invalid CLASSIFICATION_MODE %q (must be rule or llm)", c.ClassificationMode))
	}

	if c.RulesPath == "" {
		errs = append(errs, errors.New("RULES_PATH is required"))
	}
	if c.ScoreThreshold < 0 {
		errs = append(errs, fmt.Errorf("invalid SCORE_THRESHOLD %d (must be >= 0)", c.ScoreThreshold))
	}

	if c.FetchWindowHours <= 0 || c.FetchWindowHours > 720 {
		errs = append(errs, fmt.Errorf("invalid FETCH_WINDOW_HOURS %d (must be 1..720)", c.FetchWindowHours))
	}
	if c.FetchLimit <= 0 || c.FetchLimit > 500 {
		errs = append(errs, fmt.Errorf("invalid FETCH_LIMIT %d (must be 1..500)", c.FetchLimit))
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid SCHEDULE %q: %w", c.Schedule, err))
		}
	}

	if c.CooldownMinutes <= 0 || c.CooldownMinutes > 1440 {
		errs = append(errs, fmt.Errorf("invalid COOLDOWN_MINUTES %d (must be 1..1440)", c.CooldownMinutes))
	}
	if c.PreviewMaxLen <= 0 {
		errs = append(errs, fmt.Errorf("invalid PREVIEW_MAX_LEN %d (must be > 0)", c.PreviewMaxLen))
	}

	// Claude credentials are only needed in llm mode
	if mode == classify.ModeLLM {
		if c.ClaudeAPIKey == "" {
			errs = append(errs, errors.New("CLAUDE_API_KEY is required in llm mode"))
		}
		if c.ClaudeModel == "" {
			errs = append(errs, errors.New("CLAUDE_MODEL is required in llm mode"))
		}
	}

	// Gmail credentials come as a set
	gmailSet := 0
	for _, v := range []string{c.GmailClientID, c.GmailClientSecret, c.GmailRefreshToken} {
		if v != "" {
			gmailSet++
		}
	}
	if gmailSet != 0 && gmailSet != 3 {
		errs = append(errs, errors.New("GMAIL_CLIENT_ID, GMAIL_CLIENT_SECRET and GMAIL_REFRESH_TOKEN must be set together"))
	}
	if gmailSet == 0 {
		errs = append(errs, errors.New("Gmail credentials are required"))
	}

	// Twilio credentials come as a set; none at all disables alerts
	twilioSet := 0
	for _, v := range []string{c.TwilioAccountSID, c.TwilioAuthToken, c.TwilioWhatsAppFrom, c.TwilioWhatsAppTo} {
		if v != "" {
			twilioSet++
		}
	}
	if twilioSet != 0 && twilioSet != 4 {
		errs = append(errs, errors.New("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_WHATSAPP_FROM and TWILIO_WHATSAPP_TO must be set together"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Package config builds the process configuration once at start-up. Values
// come from a .env file, the environment and an optional YAML policy file,
// in that order of increasing precedence for policy keys.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/xavierca1/sherpa/internal/entity"
)

type Config struct {
	HTTPAddr      string
	LogLevel      string
	LogFormat     string
	AttachmentDir string

	Database      DatabaseConfig
	SMTP          SMTPConfig
	IMAP          IMAPConfig
	Gemini        GeminiConfig
	PhantomBuster PhantomBusterConfig
	Apollo        ApolloConfig
	WhatsApp      WhatsAppConfig
	RabbitMQ      RabbitMQConfig
	Kommo         KommoConfig

	Policy Policy
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	DSN    string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type IMAPConfig struct {
	Addr     string
	User     string
	Password string
	Mailbox  string
}

type GeminiConfig struct {
	APIKey          string
	BaseURL         string
	DraftModel      string
	ClassifierModel string
}

type PhantomBusterConfig struct {
	APIKey            string
	BaseURL           string
	SearchAgentID     string
	ConnectionAgentID string
	SearchURL         string
}

type ApolloConfig struct {
	APIKey  string
	BaseURL string
}

type WhatsAppConfig struct {
	// Mode selects the chat session: "browser", "cloud" or "off".
	Mode        string
	AccessToken string
	PhoneID     string
	BaseURL     string
	UserDataDir string
	Headless    bool
}

type RabbitMQConfig struct {
	URL string
}

type KommoConfig struct {
	APIToken string
	BaseURL  string
	StatusID int
}

// Policy holds the tunable behaviour of the passes. It can be overridden by
// the YAML file named in SHERPA_CONFIG.
type Policy struct {
	Draft     entity.DraftPolicy `yaml:"draft"`
	Throttle  ThrottlePolicy     `yaml:"throttle"`
	Reply     ReplyPolicy        `yaml:"reply"`
	Passes    PassPolicy         `yaml:"passes"`
	Discovery DiscoveryPolicy    `yaml:"discovery"`
	Dispatch  DispatchPolicy     `yaml:"dispatch"`
}

type ThrottlePolicy struct {
	EmailMin      time.Duration `yaml:"email_min"`
	EmailMax      time.Duration `yaml:"email_max"`
	BrowserMin    time.Duration `yaml:"browser_min"`
	BrowserMax    time.Duration `yaml:"browser_max"`
	ConnectionMin time.Duration `yaml:"connection_min"`
	ConnectionMax time.Duration `yaml:"connection_max"`
}

type ReplyPolicy struct {
	// UnclearAsReplied moves leads to Replied on an OTHER classification
	// instead of leaving the status unchanged.
	UnclearAsReplied bool `yaml:"unclear_as_replied"`
}

type PassPolicy struct {
	// Zero disables the scheduled run of a pass in `sherpa serve`.
	IngestInterval   time.Duration `yaml:"ingest_interval"`
	DraftInterval    time.Duration `yaml:"draft_interval"`
	DispatchInterval time.Duration `yaml:"dispatch_interval"`
}

type DiscoveryPolicy struct {
	DailyLimit        int `yaml:"daily_limit"`
	EnrichConcurrency int `yaml:"enrich_concurrency"`
}

type DispatchPolicy struct {
	ClaimLease         time.Duration `yaml:"claim_lease"`
	ExamplesPerChannel int           `yaml:"examples_per_channel"`
}

func DefaultPolicy() Policy {
	return Policy{
		Draft: entity.DefaultDraftPolicy(),
		Throttle: ThrottlePolicy{
			EmailMin:      10 * time.Second,
			EmailMax:      30 * time.Second,
			BrowserMin:    2 * time.Second,
			BrowserMax:    5 * time.Second,
			ConnectionMin: 3 * time.Minute,
			ConnectionMax: 9 * time.Minute,
		},
		Passes: PassPolicy{
			IngestInterval: 5 * time.Minute,
		},
		Discovery: DiscoveryPolicy{
			DailyLimit:        50,
			EnrichConcurrency: 4,
		},
		Dispatch: DispatchPolicy{
			ClaimLease:         time.Hour,
			ExamplesPerChannel: 3,
		},
	}
}

// Load reads .env (if present), the environment and the policy file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}

	cfg := &Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
		AttachmentDir: getEnv("ATTACHMENT_DIR", "attachments"),
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "sqlite"),
			DSN:    getEnv("DATABASE_URL", "leads.db"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("MAIL_HOST"),
			Port:     getInt("MAIL_PORT", 587),
			User:     os.Getenv("MAIL_USER"),
			Password: os.Getenv("MAIL_PASS"),
			From:     getEnv("MAIL_FROM", os.Getenv("MAIL_USER")),
		},
		IMAP: IMAPConfig{
			Addr:     os.Getenv("IMAP_ADDR"),
			User:     getEnv("IMAP_USER", os.Getenv("MAIL_USER")),
			Password: getEnv("IMAP_PASS", os.Getenv("MAIL_PASS")),
			Mailbox:  getEnv("IMAP_MAILBOX", "INBOX"),
		},
		Gemini: GeminiConfig{
			APIKey:          os.Getenv("GEMINI_API_KEY"),
			BaseURL:         getEnv("GEMINI_URL", "https://generativelanguage.googleapis.com/v1beta"),
			DraftModel:      getEnv("GEMINI_DRAFT_MODEL", "gemini-flash-latest"),
			ClassifierModel: getEnv("GEMINI_CLASSIFIER_MODEL", "gemini-2.0-flash"),
		},
		PhantomBuster: PhantomBusterConfig{
			APIKey:            os.Getenv("PHANTOMBUSTER_API_KEY"),
			BaseURL:           getEnv("PHANTOMBUSTER_URL", "https://api.phantombuster.com/api/v2"),
			SearchAgentID:     os.Getenv("PHANTOMBUSTER_AGENT_ID"),
			ConnectionAgentID: os.Getenv("LINKEDIN_CONNECTION_AGENT_ID"),
			SearchURL:         os.Getenv("LINKEDIN_SEARCH_URL"),
		},
		Apollo: ApolloConfig{
			APIKey:  os.Getenv("APOLLO_API_KEY"),
			BaseURL: getEnv("APOLLO_URL", "https://api.apollo.io/api/v1"),
		},
		WhatsApp: WhatsAppConfig{
			Mode:        getEnv("WHATSAPP_MODE", "off"),
			AccessToken: os.Getenv("WHATSAPP_ACCESS_TOKEN"),
			PhoneID:     os.Getenv("WHATSAPP_PHONE_ID"),
			BaseURL:     getEnv("WHATSAPP_URL", "https://graph.facebook.com/v18.0"),
			UserDataDir: getEnv("WHATSAPP_USER_DATA_DIR", "selenium_data"),
			Headless:    getBool("WHATSAPP_HEADLESS", false),
		},
		RabbitMQ: RabbitMQConfig{
			URL: os.Getenv("RABBITMQ_URL"),
		},
		Kommo: KommoConfig{
			APIToken: os.Getenv("KOMMO_API_TOKEN"),
			BaseURL:  os.Getenv("KOMMO_URL"),
			StatusID: getInt("KOMMO_STATUS_ID", 0),
		},
		Policy: DefaultPolicy(),
	}

	if path := os.Getenv("SHERPA_CONFIG"); path != "" {
		if err := cfg.loadPolicyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadPolicyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read policy file: %w", err)
	}
	return c.ApplyPolicyYAML(data)
}

// ApplyPolicyYAML overlays the keys present in data on the current policy.
func (c *Config) ApplyPolicyYAML(data []byte) error {
	var doc struct {
		Policy Policy `yaml:"policy"`
	}
	doc.Policy = c.Policy
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("config: parse policy yaml: %w", err)
	}
	c.Policy = doc.Policy
	return nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: DB_DRIVER must be sqlite or postgres, got %q", c.Database.Driver)
	}
	switch c.WhatsApp.Mode {
	case "browser", "cloud", "off":
	default:
		return fmt.Errorf("config: WHATSAPP_MODE must be browser, cloud or off, got %q", c.WhatsApp.Mode)
	}
	t := c.Policy.Throttle
	if t.EmailMin < 0 || t.EmailMax < t.EmailMin {
		return fmt.Errorf("config: email throttle range [%s, %s] is invalid", t.EmailMin, t.EmailMax)
	}
	if t.BrowserMin < 0 || t.BrowserMax < t.BrowserMin {
		return fmt.Errorf("config: browser throttle range [%s, %s] is invalid", t.BrowserMin, t.BrowserMax)
	}
	if t.ConnectionMin < 0 || t.ConnectionMax < t.ConnectionMin {
		return fmt.Errorf("config: connection throttle range [%s, %s] is invalid", t.ConnectionMin, t.ConnectionMax)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

func getBool(key string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

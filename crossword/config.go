package crossword

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/dailydrop/civildate"
	"github.com/hazyhaar/dailydrop/crossword/internal/dropbox"
	"github.com/hazyhaar/dailydrop/crossword/internal/publisher"
	"github.com/hazyhaar/dailydrop/crossword/internal/scheduler"
)

// Config configures the crossword drop.
type Config struct {
	Publisher publisher.Config `yaml:"publisher"`
	Dropbox   dropbox.Config   `yaml:"dropbox"`
	Scheduler scheduler.Config `yaml:"scheduler"`

	// UploadRoot is the Dropbox folder receiving the PDFs, e.g.
	// "/Supernote/Document/Crosswords".
	UploadRoot string `yaml:"upload_root"`
	// DocumentName is the filename suffix. Default: "Crossword".
	DocumentName string `yaml:"document_name"`
	// Timezone is the reference zone for "tomorrow" and the daily slot.
	// Default: America/New_York.
	Timezone string `yaml:"timezone"`
	// SkipPDFCheck uploads whatever the publisher returned with status 200.
	SkipPDFCheck bool `yaml:"skip_pdf_check"`
	// JournalDB is the SQLite run history path. Empty disables the journal.
	JournalDB string `yaml:"journal_db"`
	// AdminAddr is the admin HTTP listen address in daemon mode. Empty disables it.
	AdminAddr string `yaml:"admin_addr"`
	// AdminToken guards POST /runs. Env only.
	AdminToken string `yaml:"-"`
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

func (c *Config) defaults() {
	c.Publisher.Defaults()
	c.Dropbox.Defaults()
	if c.DocumentName == "" {
		c.DocumentName = "Crossword"
	}
	if c.Timezone == "" {
		c.Timezone = civildate.DefaultZone
	}
	if c.Scheduler.At == "" {
		c.Scheduler.At = "22:01"
	}
}

// LoadConfig reads a YAML file over DefaultConfig. Secrets are never read
// from the file; see ApplyEnv.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.defaults()
	return cfg, nil
}

// ApplyEnv overlays environment values on c. getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Publisher.Cookie, "NYT_COOKIE")
	set(&c.Dropbox.AccessToken, "DROPBOX_ACCESS_TOKEN")
	set(&c.Dropbox.ClientID, "DROPBOX_CLIENT_ID")
	set(&c.Dropbox.ClientSecret, "DROPBOX_CLIENT_SECRET")
	set(&c.Dropbox.RefreshToken, "DROPBOX_REFRESH_TOKEN")
	set(&c.UploadRoot, "SUPERNOTE_UPLOAD_PATH")
	set(&c.DocumentName, "DOCUMENT_NAME")
	set(&c.Timezone, "TIMEZONE")
	set(&c.JournalDB, "JOURNAL_DB")
	set(&c.AdminAddr, "ADMIN_ADDR")
	set(&c.AdminToken, "ADMIN_TOKEN")
	set(&c.Scheduler.At, "RUN_AT")
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if err := c.Publisher.Validate(); err != nil {
		return err
	}
	if err := c.Dropbox.Validate(); err != nil {
		return err
	}
	if !strings.HasPrefix(c.UploadRoot, "/") {
		return fmt.Errorf("upload_root must be an absolute Dropbox path, got %q", c.UploadRoot)
	}
	if c.DocumentName == "" || strings.ContainsAny(c.DocumentName, "/\r\n") {
		return fmt.Errorf("document_name %q is not a valid file name part", c.DocumentName)
	}
	if _, err := civildate.LoadZone(c.Timezone); err != nil {
		return err
	}
	if _, _, err := scheduler.ParseClock(c.Scheduler.At); err != nil {
		return err
	}
	return nil
}

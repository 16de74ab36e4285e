package config

import (
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	log "github.com/sirupsen/logrus"
)

// User is one login for one program role.
type User struct {
	Name     string
	Password string
}

type Mail struct {
	Sender     string
	SenderName string
	// Credentials come from the environment only.
	APIKey    string `toml:"-"`
	APISecret string `toml:"-"`
}

// Settings is everything persisted in the TOML file.
type Settings struct {
	ListenAddress   string
	SpreadsheetName string
	SpreadsheetID   string
	CredentialsFile string
	CacheTTLSeconds int
	DashboardURL    string
	ContactEmail    string
	Mail            Mail
	// Coordinators lists, per program, the emails notified of new referrals.
	Coordinators map[string][]string
	// Users maps email -> program role -> login.
	Users map[string]map[string]User
}

type Config struct {
	Filename string
	Settings Settings
}

// Write the current config out to a toml file.
func (c *Config) Save() error {
	b, err := toml.Marshal(c.Settings)
	if err != nil {
		return err
	}
	return os.WriteFile(c.Filename, b, 0600)
}

// Load the current config from a toml file.
func (c *Config) Load() error {
	b, err := os.ReadFile(c.Filename)
	if err != nil {
		return err
	}
	return toml.Unmarshal(b, &c.Settings)
}

// CacheTTL is the snapshot expiry window.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Settings.CacheTTLSeconds) * time.Second
}

// New loads filename, writing a default file when it does not exist yet, then
// applies environment overrides.
func New(filename string) (*Config, error) {
	c := &Config{
		Filename: filename,
	}
	if err := c.Load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		c.setDefaults()
		if err := c.Save(); err != nil {
			return nil, err
		}
		log.Infof("Wrote default config to %s", filename)
	}
	c.setDefaults()
	c.applyEnv()
	return c, nil
}

// LoadEnv reads .env style files into the environment. Missing files are
// not an error.
func LoadEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		log.Debug("No .env file found, using system environment variables")
	}
}

func (c *Config) setDefaults() {
	s := &c.Settings
	if s.ListenAddress == "" {
		s.ListenAddress = ":8080"
	}
	if s.SpreadsheetName == "" {
		s.SpreadsheetName = "PWC_Referral_GRIT"
	}
	if s.CacheTTLSeconds <= 0 {
		s.CacheTTLSeconds = 300
	}
	if s.Mail.SenderName == "" {
		s.Mail.SenderName = "PWC GRIT System"
	}
	if s.Coordinators == nil {
		s.Coordinators = map[string][]string{}
	}
	if s.Users == nil {
		s.Users = map[string]map[string]User{}
	}
}

func (c *Config) applyEnv() {
	s := &c.Settings
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" {
		s.CredentialsFile = v
	}
	if v := os.Getenv("SPREADSHEET_ID"); v != "" {
		s.SpreadsheetID = v
	}
	if v := os.Getenv("MAILJET_SENDER"); v != "" {
		s.Mail.Sender = v
	}
	s.Mail.APIKey = os.Getenv("MAILJET_API_KEY")
	s.Mail.APISecret = os.Getenv("MAILJET_API_SECRET")
}

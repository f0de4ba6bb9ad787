// ABOUTME: Configuration management for pbi-report.
// ABOUTME: Loads the YAML config, applies .env / environment overrides, and runs interactive setup.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/rcresswell/pbi-report/powerbi"
)

type Config struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	WorkspaceID  string `yaml:"workspace_id"`
	AuthorityURL string `yaml:"authority_url,omitempty"`
	APIURL       string `yaml:"api_url,omitempty"`
	LogLevel     string `yaml:"log_level,omitempty"`
	LogEnv       string `yaml:"log_env,omitempty"`
}

func (c *Config) complete() bool {
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != "" && c.WorkspaceID != ""
}

func (c *Config) credentials() powerbi.Credentials {
	return powerbi.Credentials{
		TenantID:     c.TenantID,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
	}
}

func (c *Config) clientOptions(log *zap.Logger) []powerbi.Option {
	opts := []powerbi.Option{powerbi.WithLogger(log)}
	if c.AuthorityURL != "" {
		opts = append(opts, powerbi.WithAuthorityURL(c.AuthorityURL))
	}
	if c.APIURL != "" {
		opts = append(opts, powerbi.WithAPIURL(c.APIURL))
	}
	return opts
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "pbi-report", "config.yaml"), nil
}

// loadConfig reads the config file and layers the environment on top. It
// returns a not-exist error only when the file is missing and the environment
// does not supply a complete configuration either.
func loadConfig() (*Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	path, err := configPath()
	if err != nil {
		return nil, err
	}

	cfg, err := readConfig(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	fileErr := err
	if cfg == nil {
		cfg = &Config{}
	}

	applyEnv(cfg, os.Getenv)

	if fileErr != nil && !cfg.complete() {
		return nil, fileErr
	}
	return cfg, nil
}

func readConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return &cfg, nil
}

var envOverrides = []struct {
	key   string
	field func(*Config) *string
}{
	{"PBI_TENANT_ID", func(c *Config) *string { return &c.TenantID }},
	{"PBI_CLIENT_ID", func(c *Config) *string { return &c.ClientID }},
	{"PBI_CLIENT_SECRET", func(c *Config) *string { return &c.ClientSecret }},
	{"PBI_WORKSPACE_ID", func(c *Config) *string { return &c.WorkspaceID }},
	{"PBI_AUTHORITY_URL", func(c *Config) *string { return &c.AuthorityURL }},
	{"PBI_API_URL", func(c *Config) *string { return &c.APIURL }},
	{"PBI_LOG_LEVEL", func(c *Config) *string { return &c.LogLevel }},
	{"PBI_LOG_ENV", func(c *Config) *string { return &c.LogEnv }},
}

func applyEnv(cfg *Config, getenv func(string) string) {
	for _, o := range envOverrides {
		if v := strings.TrimSpace(getenv(o.key)); v != "" {
			*o.field(cfg) = v
		}
	}
}

func saveConfig(cfg *Config) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	return writeConfig(path, cfg)
}

func writeConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func runSetup(ctx context.Context, log *zap.Logger) (*Config, error) {
	fmt.Println("No configuration found. Let's set it up.")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	prompt := func(label string) (string, error) {
		fmt.Print(label)
		v, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && v != "") {
			return "", err
		}
		return strings.TrimSpace(v), nil
	}

	tenantID, err := prompt("Tenant ID (Azure AD directory id): ")
	if err != nil {
		return nil, err
	}
	clientID, err := prompt("Client ID (app registration): ")
	if err != nil {
		return nil, err
	}
	secret, err := readSecret("Client secret: ", prompt)
	if err != nil {
		return nil, err
	}
	workspaceID, err := prompt("Workspace ID (from app.powerbi.com/groups/<id>): ")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		TenantID:     tenantID,
		ClientID:     clientID,
		ClientSecret: secret,
		WorkspaceID:  workspaceID,
	}

	fmt.Println()
	fmt.Print("Testing connection... ")

	client, err := powerbi.New(ctx, cfg.credentials(), cfg.WorkspaceID, cfg.clientOptions(log)...)
	if err != nil {
		fmt.Println("failed!")
		return nil, fmt.Errorf("could not authenticate: %w", err)
	}

	datasets, err := client.DatasetIDs(ctx)
	if err != nil {
		fmt.Println("failed!")
		return nil, fmt.Errorf("could not list workspace datasets: %w", err)
	}
	fmt.Printf("found %d dataset(s)\n", len(datasets))

	if err := saveConfig(cfg); err != nil {
		return nil, fmt.Errorf("could not save config: %w", err)
	}

	path, err := configPath()
	if err != nil {
		return nil, fmt.Errorf("could not determine config path: %w", err)
	}
	fmt.Printf("\nConfiguration saved to %s\n\n", path)

	return cfg, nil
}

// readSecret reads without echo when stdin is a terminal.
func readSecret(label string, fallback func(string) (string, error)) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fallback(label)
	}

	fmt.Print(label)
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/inspection.defaults.json"

// Supported chart output formats.
var chartFormats = map[string]bool{"png": true, "svg": true, "pdf": true}

// AppConfig holds the settings of the inspection CLI and HTTP viewer.
// Nil fields fall back to the defaults returned by the Get* methods, so a
// partial file is valid.
type AppConfig struct {
	// Storage
	DBPath *string `json:"db_path,omitempty"`

	// HTTP viewer
	Listen          *string `json:"listen,omitempty"`
	ShutdownTimeout *string `json:"shutdown_timeout,omitempty"` // duration string like "5s"
	EnableDebug     *bool   `json:"enable_debug,omitempty"`

	// Reports
	OutputDir      *string  `json:"output_dir,omitempty"`
	ChartFormat    *string  `json:"chart_format,omitempty"`
	ChartWidthCm   *float64 `json:"chart_width_cm,omitempty"`
	ChartHeightCm  *float64 `json:"chart_height_cm,omitempty"`
	TopConfusing   *int     `json:"top_confusing,omitempty"`
	WritePDF       *bool    `json:"write_pdf,omitempty"`
	WriteCSV       *bool    `json:"write_csv,omitempty"`
	WriteDashboard *bool    `json:"write_dashboard,omitempty"`
}

func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }

// DefaultAppConfig returns a config with every field set to its default.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		DBPath:          ptrString("inspection.db"),
		Listen:          ptrString(":8080"),
		ShutdownTimeout: ptrString("5s"),
		EnableDebug:     ptrBool(false),
		OutputDir:       ptrString("reports"),
		ChartFormat:     ptrString("png"),
		ChartWidthCm:    ptrFloat64(16),
		ChartHeightCm:   ptrFloat64(10),
		TopConfusing:    ptrInt(10),
		WritePDF:        ptrBool(true),
		WriteCSV:        ptrBool(true),
		WriteDashboard:  ptrBool(true),
	}
}

// LoadAppConfig loads an AppConfig from a .json file of at most 1MB.
func LoadAppConfig(path string) (*AppConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &AppConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. Panics if the file cannot be loaded; intended for
// test setup.
func MustLoadDefaultConfig() *AppConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadAppConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set.
func (c *AppConfig) Validate() error {
	if c.ChartFormat != nil && !chartFormats[*c.ChartFormat] {
		return fmt.Errorf("chart_format must be one of png, svg, pdf, got %q", *c.ChartFormat)
	}
	if c.ChartWidthCm != nil && *c.ChartWidthCm <= 0 {
		return fmt.Errorf("chart_width_cm must be positive, got %f", *c.ChartWidthCm)
	}
	if c.ChartHeightCm != nil && *c.ChartHeightCm <= 0 {
		return fmt.Errorf("chart_height_cm must be positive, got %f", *c.ChartHeightCm)
	}
	if c.TopConfusing != nil && *c.TopConfusing < 0 {
		return fmt.Errorf("top_confusing must be non-negative, got %d", *c.TopConfusing)
	}
	if c.ShutdownTimeout != nil && *c.ShutdownTimeout != "" {
		if _, err := time.ParseDuration(*c.ShutdownTimeout); err != nil {
			return fmt.Errorf("invalid shutdown_timeout '%s': %w", *c.ShutdownTimeout, err)
		}
	}
	if c.DBPath != nil && *c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	return nil
}

func (c *AppConfig) GetDBPath() string {
	if c.DBPath == nil {
		return "inspection.db"
	}
	return *c.DBPath
}

func (c *AppConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8080"
	}
	return *c.Listen
}

// GetShutdownTimeout returns the graceful HTTP shutdown window.
func (c *AppConfig) GetShutdownTimeout() time.Duration {
	if c.ShutdownTimeout == nil || *c.ShutdownTimeout == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(*c.ShutdownTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

func (c *AppConfig) GetEnableDebug() bool {
	return c.EnableDebug != nil && *c.EnableDebug
}

func (c *AppConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "reports"
	}
	return *c.OutputDir
}

func (c *AppConfig) GetChartFormat() string {
	if c.ChartFormat == nil {
		return "png"
	}
	return *c.ChartFormat
}

func (c *AppConfig) GetChartWidthCm() float64 {
	if c.ChartWidthCm == nil {
		return 16
	}
	return *c.ChartWidthCm
}

func (c *AppConfig) GetChartHeightCm() float64 {
	if c.ChartHeightCm == nil {
		return 10
	}
	return *c.ChartHeightCm
}

// GetTopConfusing is the number of confusing images listed in summaries.
func (c *AppConfig) GetTopConfusing() int {
	if c.TopConfusing == nil {
		return 10
	}
	return *c.TopConfusing
}

func (c *AppConfig) GetWritePDF() bool {
	return c.WritePDF == nil || *c.WritePDF
}

func (c *AppConfig) GetWriteCSV() bool {
	return c.WriteCSV == nil || *c.WriteCSV
}

func (c *AppConfig) GetWriteDashboard() bool {
	return c.WriteDashboard == nil || *c.WriteDashboard
}

// Package config loads service settings from the environment and an
// optional config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nixxel-company-limited/booth-printer/models"
)

// FileEnv names the environment variable pointing at an optional config
// file (yaml, json or toml).
const FileEnv = "BOOTH_PRINTER_CONFIG"

const (
	DriverBLE = "ble"
	DriverUSB = "usb"
)

// Config is the full service configuration.
type Config struct {
	ServerAddress string
	HTTPAddress   string

	Driver        string
	NamePrefix    string
	AcceptAll     bool
	WritableUUIDs []string
	USBVendorID   uint16
	USBProductID  uint16

	ChunkSize       int
	ChunkDelay      time.Duration
	Threshold       int
	FontSettleDelay time.Duration
	FontRegular     string
	FontBold        string

	TranslateEnabled bool
	TranslateTarget  string

	DatabasePath  string
	RetryAttempts int

	Candidate models.Candidate
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_ADDRESS", "localhost:9100")
	v.SetDefault("HTTP_ADDRESS", "localhost:8080")
	v.SetDefault("PRINTER_DRIVER", DriverBLE)
	v.SetDefault("PRINTER_NAME_PREFIX", "")
	v.SetDefault("PRINTER_ACCEPT_ALL", true)
	v.SetDefault("PRINTER_WRITABLE_UUIDS", []string{})
	v.SetDefault("USB_VENDOR_ID", 0)
	v.SetDefault("USB_PRODUCT_ID", 0)
	v.SetDefault("CHUNK_SIZE", 180)
	v.SetDefault("CHUNK_DELAY", 40*time.Millisecond)
	v.SetDefault("RASTER_THRESHOLD", 160)
	v.SetDefault("FONT_SETTLE_DELAY", 160*time.Millisecond)
	// Receipt labels are Marathi; an unset font falls back to the embedded
	// Go fonts, which have no Devanagari glyphs. Point this at a Devanagari
	// TTF such as Noto Sans Devanagari.
	v.SetDefault("FONT_REGULAR", "")
	v.SetDefault("FONT_BOLD", "")
	v.SetDefault("TRANSLATE_ENABLED", false)
	v.SetDefault("TRANSLATE_TARGET", "mr")
	v.SetDefault("DATABASE_PATH", "booth.db")
	v.SetDefault("LOAD_RETRY_ATTEMPTS", 3)
	v.SetDefault("CANDIDATE_NAME", "जननेता")
	v.SetDefault("CANDIDATE_PARTY", "जननेता जनता पार्टी")
	v.SetDefault("CANDIDATE_SLOGAN", "सबका साथ, सबका विकास")
	v.SetDefault("CANDIDATE_AREA", "वाशीम प्रभाग 1")
	v.SetDefault("CANDIDATE_SYMBOL", "कमळ")
	v.SetDefault("CANDIDATE_CONTACT", "")
}

// Load reads the configuration. Environment variables override the file,
// which overrides the defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := os.Getenv(FileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		ServerAddress:    v.GetString("SERVER_ADDRESS"),
		HTTPAddress:      v.GetString("HTTP_ADDRESS"),
		Driver:           strings.ToLower(v.GetString("PRINTER_DRIVER")),
		NamePrefix:       v.GetString("PRINTER_NAME_PREFIX"),
		AcceptAll:        v.GetBool("PRINTER_ACCEPT_ALL"),
		WritableUUIDs:    v.GetStringSlice("PRINTER_WRITABLE_UUIDS"),
		USBVendorID:      uint16(v.GetUint("USB_VENDOR_ID")),
		USBProductID:     uint16(v.GetUint("USB_PRODUCT_ID")),
		ChunkSize:        v.GetInt("CHUNK_SIZE"),
		ChunkDelay:       v.GetDuration("CHUNK_DELAY"),
		Threshold:        v.GetInt("RASTER_THRESHOLD"),
		FontSettleDelay:  v.GetDuration("FONT_SETTLE_DELAY"),
		FontRegular:      v.GetString("FONT_REGULAR"),
		FontBold:         v.GetString("FONT_BOLD"),
		TranslateEnabled: v.GetBool("TRANSLATE_ENABLED"),
		TranslateTarget:  v.GetString("TRANSLATE_TARGET"),
		DatabasePath:     v.GetString("DATABASE_PATH"),
		RetryAttempts:    v.GetInt("LOAD_RETRY_ATTEMPTS"),
		Candidate: models.Candidate{
			Name:    v.GetString("CANDIDATE_NAME"),
			Party:   v.GetString("CANDIDATE_PARTY"),
			Slogan:  v.GetString("CANDIDATE_SLOGAN"),
			Area:    v.GetString("CANDIDATE_AREA"),
			Symbol:  v.GetString("CANDIDATE_SYMBOL"),
			Contact: v.GetString("CANDIDATE_CONTACT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the printer pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Driver != DriverBLE && c.Driver != DriverUSB {
		errs = append(errs, fmt.Errorf("PRINTER_DRIVER must be %q or %q, got %q", DriverBLE, DriverUSB, c.Driver))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize))
	}
	if c.ChunkDelay < 0 {
		errs = append(errs, fmt.Errorf("CHUNK_DELAY must not be negative, got %s", c.ChunkDelay))
	}
	if c.Threshold < 1 || c.Threshold > 256 {
		errs = append(errs, fmt.Errorf("RASTER_THRESHOLD must be within 1..256, got %d", c.Threshold))
	}
	if c.FontSettleDelay < 0 {
		errs = append(errs, fmt.Errorf("FONT_SETTLE_DELAY must not be negative, got %s", c.FontSettleDelay))
	}
	if c.FontBold != "" && c.FontRegular == "" {
		errs = append(errs, errors.New("FONT_BOLD requires FONT_REGULAR"))
	}
	if c.Candidate.Name == "" {
		errs = append(errs, errors.New("CANDIDATE_NAME must be set"))
	}
	return errors.Join(errs...)
}

// Warnings lists settings that load but will print badly.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.FontRegular == "" {
		warnings = append(warnings, "FONT_REGULAR is unset: the embedded fonts have no Devanagari glyphs, Marathi labels will print as boxes")
	}
	return warnings
}

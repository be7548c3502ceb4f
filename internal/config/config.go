// Package config loads the optional configuration file.
//
// The file is YAML, or JSON when its extension is .json. It is decoded into a
// generic map first and then into Config with mapstructure, so durations may be
// written as "100ms" and unknown keys are rejected.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/coaxterm/internal/logging"
	"github.com/aretw0/coaxterm/pkg/codepage"
	"github.com/aretw0/coaxterm/pkg/coax"
	"github.com/aretw0/coaxterm/pkg/controller"
	"github.com/aretw0/coaxterm/pkg/domain"
	"github.com/aretw0/coaxterm/pkg/session"
)

// Config is the complete runtime configuration.
type Config struct {
	LogLevel    string           `mapstructure:"log_level"`
	MetricsAddr string           `mapstructure:"metrics_addr"`
	Link        LinkConfig       `mapstructure:"link"`
	Controller  ControllerConfig `mapstructure:"controller"`
	TN3270      TN3270Config     `mapstructure:"tn3270"`
	Keymaps     []string         `mapstructure:"keymaps"`
}

// LinkConfig configures the bridge link.
type LinkConfig struct {
	Baud           int           `mapstructure:"baud"`
	ReceiveTimeout time.Duration `mapstructure:"receive_timeout"`
}

// ControllerConfig configures the poll loop.
type ControllerConfig struct {
	AttachedPollPeriod  time.Duration `mapstructure:"attached_poll_period"`
	DetachedPollPeriod  time.Duration `mapstructure:"detached_poll_period"`
	PollDepth           int           `mapstructure:"poll_depth"`
	SessionRestartDelay time.Duration `mapstructure:"session_restart_delay"`
}

// TN3270Config configures TN3270 sessions.
type TN3270Config struct {
	Codepage string `mapstructure:"codepage"`
	TN3270E  string `mapstructure:"tn3270e"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Link: LinkConfig{
			Baud:           coax.DefaultBaudRate,
			ReceiveTimeout: coax.DefaultReceiveTimeout,
		},
		Controller: ControllerConfig{
			AttachedPollPeriod:  controller.DefaultAttachedPollPeriod,
			DetachedPollPeriod:  controller.DefaultDetachedPollPeriod,
			PollDepth:           controller.DefaultPollDepth,
			SessionRestartDelay: controller.DefaultSessionRestartDelay,
		},
		TN3270: TN3270Config{
			Codepage: codepage.Default,
			TN3270E:  string(session.TN3270EDefault),
		},
	}
}

// Load returns Default overlaid with the file at path. An empty path returns
// the defaults. Relative keymap paths are resolved against the file's
// directory.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, &domain.ConfigError{Arg: "config", Value: path, Reason: "cannot read config file", Err: err}
	}

	raw := map[string]any{}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &raw)
	} else {
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return cfg, &domain.ConfigError{Arg: "config", Value: path, Reason: "cannot parse config file", Err: err}
	}

	if err := decode(raw, &cfg); err != nil {
		return cfg, &domain.ConfigError{Arg: "config", Value: path, Reason: err.Error(), Err: err}
	}

	dir := filepath.Dir(path)
	for i, p := range cfg.Keymaps {
		if !filepath.IsAbs(p) {
			cfg.Keymaps[i] = filepath.Join(dir, p)
		}
	}
	return cfg, nil
}

func decode(raw map[string]any, cfg *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		ErrorUnused: true,
		Result:      cfg,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// Validate checks every value and returns the first problem as a
// *domain.ConfigError.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Link.Baud <= 0 {
		return invalid("link.baud", fmt.Sprint(c.Link.Baud), "must be positive")
	}
	if c.Link.ReceiveTimeout <= 0 || c.Link.ReceiveTimeout > time.Minute {
		return invalid("link.receive_timeout", c.Link.ReceiveTimeout.String(), "must be between 0 and 1m")
	}
	if c.Controller.AttachedPollPeriod <= 0 {
		return invalid("controller.attached_poll_period", c.Controller.AttachedPollPeriod.String(), "must be positive")
	}
	if c.Controller.DetachedPollPeriod <= 0 {
		return invalid("controller.detached_poll_period", c.Controller.DetachedPollPeriod.String(), "must be positive")
	}
	if c.Controller.PollDepth < 1 {
		return invalid("controller.poll_depth", fmt.Sprint(c.Controller.PollDepth), "must be at least 1")
	}
	if c.Controller.SessionRestartDelay < 0 {
		return invalid("controller.session_restart_delay", c.Controller.SessionRestartDelay.String(), "must not be negative")
	}
	if _, err := codepage.Validate(c.TN3270.Codepage); err != nil {
		return err
	}
	if _, err := session.ParseTN3270EProfile(c.TN3270.TN3270E); err != nil {
		return err
	}
	return nil
}

func invalid(key, value, reason string) error {
	return &domain.ConfigError{Arg: key, Value: value, Reason: reason}
}

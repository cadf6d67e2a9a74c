// Package config implements the configuration management for the
// translation orchestration core. It defines and validates all
// parameters that govern a translation session: platform endpoints,
// round/worker/rate policy, and optimizer toggles. It does not read
// configuration files; the translate command fills a Config from flags.
package config

import (
	"fmt"
	"time"
)

// Language identifies a source or target language by its ISO-ish tag.
// Only the tags the checker heuristics key off of are named constants;
// any other tag is accepted as an opaque value.
type Language string

const (
	LanguageJA Language = "JA"
	LanguageKO Language = "KO"
	LanguageZH Language = "ZH"
	LanguageEN Language = "EN"
)

// APIFormat names the request/response shape of a platform. The value
// is stored on Platform only; the built-in HTTP requester sends the
// same OpenAI-style chat completion request whatever the format.
type APIFormat string

const (
	APIFormatOpenAI    APIFormat = "OPENAI"
	APIFormatSakuraLLM APIFormat = "SAKURALLM"
)

// Platform describes one configured LLM endpoint.
type Platform struct {
	Name      string    `json:"name"`
	APIURL    string    `json:"apiUrl"`
	APIFormat APIFormat `json:"apiFormat"`
	Model     string    `json:"model"`
	AccessKey string    `json:"accessKey"`
}

// SnapshotMirror configures the optional off-host mirror for periodic
// cache snapshots. It is best-effort and disabled by default; failures
// to mirror never affect the authoritative local snapshot.
type SnapshotMirror struct {
	Enable bool   `json:"enable"`
	S3URI  string `json:"s3Uri"` // s3://bucket/prefix
	Region string `json:"region"`
}

// Config holds all configuration for a translation session.
type Config struct {
	Platforms          []Platform `json:"platforms"`
	ActivatePlatform   string     `json:"activatePlatform"`
	SourceLanguage     Language   `json:"sourceLanguage"`
	TargetLanguage     Language   `json:"targetLanguage"`
	OutputFolder       string     `json:"outputFolder"`

	MaxRound                 int `json:"maxRound"`
	MaxWorkers               int `json:"maxWorkers"`
	RPMThreshold             int `json:"rpmThreshold"`
	TokenThreshold           int `json:"tokenThreshold"`
	PrecedingLinesThreshold  int `json:"precedingLinesThreshold"`

	MtoolOptimizerEnable bool `json:"mtoolOptimizerEnable"`
	GlossaryEnable       bool `json:"glossaryEnable"`
	AutoGlossaryEnable   bool `json:"autoGlossaryEnable"`

	Snapshot SnapshotMirror `json:"snapshot"`

	RequestTimeout  time.Duration `json:"requestTimeout"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout"`
}

// GetPlatform returns the platform whose Name matches name.
func (c *Config) GetPlatform(name string) (Platform, error) {
	for _, p := range c.Platforms {
		if p.Name == name {
			return p, nil
		}
	}
	return Platform{}, fmt.Errorf("platform %q is not configured", name)
}

// Validate ensures all required fields are present and have valid values.
func (c *Config) Validate() error {
	if len(c.Platforms) == 0 {
		return fmt.Errorf("at least one platform is required")
	}

	if c.ActivatePlatform == "" {
		return fmt.Errorf("activate platform is required")
	}
	if _, err := c.GetPlatform(c.ActivatePlatform); err != nil {
		return err
	}

	if c.OutputFolder == "" {
		return fmt.Errorf("output folder is required")
	}

	if c.SourceLanguage == "" {
		return fmt.Errorf("source language is required")
	}
	if c.TargetLanguage == "" {
		return fmt.Errorf("target language is required")
	}

	if c.MaxRound < 1 {
		return fmt.Errorf("max round must be at least 1")
	}

	if c.MaxWorkers < 0 {
		return fmt.Errorf("max workers must not be negative")
	}

	if c.RPMThreshold < 0 {
		return fmt.Errorf("rpm threshold must not be negative")
	}

	if c.TokenThreshold < 1 {
		return fmt.Errorf("token threshold must be at least 1")
	}

	if c.PrecedingLinesThreshold < 0 {
		return fmt.Errorf("preceding lines threshold must not be negative")
	}

	if c.Snapshot.Enable && c.Snapshot.S3URI == "" {
		return fmt.Errorf("snapshot s3 uri is required when snapshot mirroring is enabled")
	}

	if c.RequestTimeout < time.Second {
		return fmt.Errorf("request timeout must be at least 1 second")
	}

	if c.ShutdownTimeout < time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second")
	}

	return nil
}

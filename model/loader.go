package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format identifies a scenario file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// LoadScenario decodes a scenario from r on top of DefaultScenario(), so
// files only need to state what they change, then validates the result.
func LoadScenario(r io.Reader, format Format) (ScenarioConfig, error) {
	cfg := DefaultScenario()

	data, err := io.ReadAll(r)
	if err != nil {
		return ScenarioConfig{}, fmt.Errorf("read scenario: %w", err)
	}

	// A second, lenient decode into a zero value records which fields the
	// file actually set, so a market mode switch can drop the other mode's
	// defaults instead of tripping validation on them.
	var stated ScenarioConfig

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(strings.NewReader(string(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return ScenarioConfig{}, fmt.Errorf("decode scenario json: %w", err)
		}
		if err := json.Unmarshal(data, &stated); err != nil {
			return ScenarioConfig{}, fmt.Errorf("decode scenario json: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return ScenarioConfig{}, fmt.Errorf("decode scenario yaml: %w", err)
		}
		if err := yaml.Unmarshal(data, &stated); err != nil {
			return ScenarioConfig{}, fmt.Errorf("decode scenario yaml: %w", err)
		}
	default:
		return ScenarioConfig{}, fmt.Errorf("%w: unsupported scenario format %q", ErrInvalidConfig, format)
	}

	reconcileMarketMode(&cfg, stated)

	if err := cfg.Validate(); err != nil {
		return ScenarioConfig{}, err
	}
	return cfg, nil
}

// reconcileMarketMode clears the fields belonging to the default market mode
// when a file switches modes without addressing them. A file that states a
// conflicting value explicitly keeps it, and validation rejects it as usual.
func reconcileMarketMode(cfg *ScenarioConfig, stated ScenarioConfig) {
	if stated.Market.Mode == "" || stated.Market.Mode == DefaultScenario().Market.Mode {
		return
	}
	switch stated.Market.Mode {
	case MarketFixedPrice:
		if stated.Market.PermitCap == 0 {
			cfg.Market.PermitCap = 0
		}
	case MarketAuction:
		if stated.Market.FixedPrice == 0 {
			cfg.Market.FixedPrice = 0
		}
	}
}

// LoadScenarioFile loads a scenario from path, picking the format from the
// file extension (.json, .yaml, .yml).
func LoadScenarioFile(path string) (ScenarioConfig, error) {
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = FormatJSON
	case ".yaml", ".yml":
		format = FormatYAML
	default:
		return ScenarioConfig{}, fmt.Errorf("%w: unrecognised scenario extension on %q", ErrInvalidConfig, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return ScenarioConfig{}, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()

	cfg, err := LoadScenario(f, format)
	if err != nil {
		return ScenarioConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

package appconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// configSchema constrains the config file before it is decoded. Schema
// violations produce field-level errors instead of silent zero values.
const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "baseUrl": {"type": "string", "minLength": 1},
    "token": {"type": "string"},
    "containerId": {"type": "string", "minLength": 1},
    "debounceMillis": {"type": "integer", "minimum": 100, "maximum": 60000},
    "pollMillis": {"type": "integer", "minimum": 500, "maximum": 600000},
    "maxRetries": {"type": "integer", "minimum": 0, "maximum": 10},
    "draftStore": {"type": "string"},
    "cacheSize": {"type": "integer", "minimum": 1, "maximum": 100000},
    "statusAddr": {"type": "string"},
    "statusToken": {"type": "string"},
    "debug": {"type": "boolean"}
  }
}`

type Config struct {
	BaseURL        string `json:"baseUrl"`
	Token          string `json:"token"`
	ContainerID    string `json:"containerId"`
	DebounceMillis int    `json:"debounceMillis"`
	PollMillis     int    `json:"pollMillis"`
	MaxRetries     int    `json:"maxRetries"`
	DraftStoreDSN  string `json:"draftStore"`
	CacheSize      int    `json:"cacheSize"`
	StatusAddr     string `json:"statusAddr"`
	StatusToken    string `json:"statusToken"`
	Debug          bool   `json:"debug"`
}

func defaults() Config {
	return Config{
		DebounceMillis: 1200,
		PollMillis:     5000,
		MaxRetries:     3,
		CacheSize:      256,
		StatusAddr:     "127.0.0.1:8720",
	}
}

// Load reads the config file (optional), applies environment overrides and
// validates the result. An empty path skips the file and uses defaults plus
// environment.
func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Config{}, err
			}
		} else {
			if err := validateSchema(data); err != nil {
				return Config{}, fmt.Errorf("config %s: %w", path, err)
			}
			if err := json.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateSchema(data []byte) error {
	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(configSchema))
	if err != nil {
		return err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", schemaDoc); err != nil {
		return err
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return err
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return schema.Validate(instance)
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("DOCSYNC_BASE_URL")); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DOCSYNC_TOKEN")); v != "" {
		cfg.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("DOCSYNC_CONTAINER")); v != "" {
		cfg.ContainerID = v
	}
	if v := strings.TrimSpace(os.Getenv("DOCSYNC_DRAFT_STORE")); v != "" {
		cfg.DraftStoreDSN = v
	}
	if v := strings.TrimSpace(os.Getenv("DOCSYNC_STATUS_ADDR")); v != "" {
		cfg.StatusAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("DOCSYNC_STATUS_TOKEN")); v != "" {
		cfg.StatusToken = v
	}
	if v := strings.TrimSpace(os.Getenv("DOCSYNC_DEBOUNCE_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DebounceMillis = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("DOCSYNC_POLL_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PollMillis = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("DOCSYNC_DEBUG")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
}

func (c Config) validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("base URL is required (baseUrl or DOCSYNC_BASE_URL)")
	}
	if strings.TrimSpace(c.Token) == "" {
		return errors.New("API token is required (token or DOCSYNC_TOKEN)")
	}
	if strings.TrimSpace(c.ContainerID) == "" {
		return errors.New("container id is required (containerId or DOCSYNC_CONTAINER)")
	}
	return nil
}

func (c Config) QuietInterval() time.Duration {
	return time.Duration(c.DebounceMillis) * time.Millisecond
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollMillis) * time.Millisecond
}

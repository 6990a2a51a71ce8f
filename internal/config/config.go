package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"forarchives/lib/configutil"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
)

// FileName is the name of the configuration file searched for upward from
// the working directory.
const FileName = "forarchives.json5"

// Duration is a time.Duration that decodes from "3s" style strings or from a
// plain number of seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) >= 2 && (data[0] == '"' || data[0] == '\'') {
		s := string(data[1 : len(data)-1])
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	seconds, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("parse duration %s: %w", string(data), err)
	}
	*d = Duration(seconds * float64(time.Second))
	return nil
}

type Archive struct {
	Name    string `json:"name" validate:"required"`
	BaseURL string `json:"base_url" validate:"required,url"`
	// json-api, html-scrape or protected-json-api
	Family   string `json:"family" validate:"required,oneof=json-api html-scrape protected-json-api"`
	PageSize int    `json:"page_size" validate:"gte=0"`
}

type Search struct {
	Concurrency       int      `json:"concurrency" validate:"gte=1"`
	Delay             Duration `json:"delay" validate:"gte=0"`
	Limit             int      `json:"limit" validate:"gte=0"`
	ThreadConcurrency int      `json:"thread_concurrency" validate:"gte=1"`
	ThreadDelay       Duration `json:"thread_delay" validate:"gte=0"`
}

type HTTP struct {
	Timeout           Duration `json:"timeout" validate:"gt=0"`
	ProtectedTimeout  Duration `json:"protected_timeout" validate:"gt=0"`
	UserAgent         string   `json:"user_agent" validate:"required"`
	RequestsPerSecond float64  `json:"requests_per_second" validate:"gte=0"`
	Retries           int      `json:"retries" validate:"gte=0"`
	RetryBackoff      Duration `json:"retry_backoff" validate:"gte=0"`
	// DisableCloudflareBypass turns off the TLS fingerprint spoofing transport.
	DisableCloudflareBypass bool `json:"disable_cloudflare_bypass"`
	// DumpDir receives a file per http exchange when set.
	DumpDir string `json:"dump_dir"`
}

type Session struct {
	Cooldown      Duration `json:"cooldown" validate:"gte=0"`
	Headless      bool     `json:"headless"`
	ReadySelector string   `json:"ready_selector" validate:"required"`
	Wait          Duration `json:"wait" validate:"gt=0"`
	// ChromePath overrides the browser executable, empty means autodetect.
	ChromePath string `json:"chrome_path"`
	// RefreshCron keeps sessions warm while serving, empty disables it.
	RefreshCron string `json:"refresh_cron"`
}

type Server struct {
	Address     string   `json:"address" validate:"required"`
	CorsOrigins []string `json:"cors_origins"`
}

type Telemetry struct {
	Verbose bool `json:"verbose"`
	// exactly one of these should be specified to export otel traces and metrics
	OtlpGrpcEndpoint string `json:"otlp_grpc_endpoint"`
	OtlpHttpEndpoint string `json:"otlp_http_endpoint"`
}

type Config struct {
	Archives  []Archive `json:"archives" validate:"dive"`
	Search    Search    `json:"search"`
	HTTP      HTTP      `json:"http"`
	Session   Session   `json:"session"`
	Server    Server    `json:"server"`
	Telemetry Telemetry `json:"telemetry"`
}

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Archives: []Archive{
			{Name: "desuarchive", BaseURL: "https://desuarchive.org", Family: "json-api"},
			{Name: "palanq", BaseURL: "https://archive.palanq.win", Family: "json-api"},
			{Name: "moe", BaseURL: "https://archived.moe", Family: "json-api"},
			{Name: "4plebs", BaseURL: "https://archive.4plebs.org", Family: "protected-json-api"},
			{Name: "b4k", BaseURL: "https://arch.b4k.co", Family: "json-api"},
			{Name: "warosu", BaseURL: "https://warosu.org", Family: "html-scrape", PageSize: 24},
		},
		Search: Search{
			Concurrency:       5,
			Delay:             Duration(3 * time.Second),
			Limit:             0,
			ThreadConcurrency: 5,
			ThreadDelay:       Duration(5 * time.Second),
		},
		HTTP: HTTP{
			Timeout:          Duration(30 * time.Second),
			ProtectedTimeout: Duration(60 * time.Second),
			UserAgent:        DefaultUserAgent,
			Retries:          2,
			RetryBackoff:     Duration(2 * time.Second),
		},
		Session: Session{
			Cooldown:      Duration(300 * time.Second),
			Headless:      false,
			ReadySelector: "#main",
			Wait:          Duration(120 * time.Second),
		},
		Server: Server{
			Address:     ":8888",
			CorsOrigins: []string{"*"},
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags of the configuration.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// withDefaults fills every zero field of c from Default(). Archives are
// replaced as a whole when the file lists any.
func withDefaults(c Config) (Config, error) {
	out := Default()
	if len(c.Archives) > 0 {
		out.Archives = nil
	}
	err := mergo.Merge(&out, c, mergo.WithOverride)
	if err != nil {
		return Config{}, err
	}
	return out, nil
}

// Read loads the configuration from the given path (and its local override),
// filling in defaults. An empty path searches upward for FileName, and a
// missing file yields the defaults.
func Read(path string) (Config, string, error) {
	var (
		file Config
		err  error
	)
	if path == "" {
		file, path, err = configutil.ReadRecursively[Config](FileName)
	} else {
		file, err = configutil.ReadConfig[Config](path)
	}
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		return cfg, "", cfg.Validate()
	}
	if err != nil {
		return Config{}, "", fmt.Errorf("read config: %w", err)
	}

	cfg, err := withDefaults(file)
	if err != nil {
		return Config{}, "", fmt.Errorf("merge defaults: %w", err)
	}
	for i := range cfg.Archives {
		if cfg.Archives[i].Family == "html-scrape" && cfg.Archives[i].PageSize == 0 {
			cfg.Archives[i].PageSize = 24
		}
	}
	return cfg, path, cfg.Validate()
}

// Package config loads service settings from an optional YAML file with
// STOREFRONT_* environment overrides.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const envPrefix = "STOREFRONT_"

// PathEnv names the variable holding the config file path.
const PathEnv = envPrefix + "CONFIG"

type Config struct {
	Service string `koanf:"service" yaml:"service"`
	Version string `koanf:"version" yaml:"version"`

	Log Log `koanf:"log" yaml:"log"`

	HTTP struct {
		Port            int           `koanf:"port" yaml:"port"`
		ReadTimeout     time.Duration `koanf:"readTimeout" yaml:"readTimeout"`
		WriteTimeout    time.Duration `koanf:"writeTimeout" yaml:"writeTimeout"`
		ShutdownTimeout time.Duration `koanf:"shutdownTimeout" yaml:"shutdownTimeout"`
		ClientTimeout   time.Duration `koanf:"clientTimeout" yaml:"clientTimeout"`
	} `koanf:"http" yaml:"http"`

	Telemetry struct {
		Endpoint    string  `koanf:"endpoint" yaml:"endpoint"`
		SampleRatio float64 `koanf:"sampleRatio" yaml:"sampleRatio"`
	} `koanf:"telemetry" yaml:"telemetry"`

	Latency Latency `koanf:"latency" yaml:"latency"`

	// Storage selects the client-state backend: memory, sqlite or postgres.
	Storage struct {
		Driver     string `koanf:"driver" yaml:"driver"`
		SQLitePath string `koanf:"sqlitePath" yaml:"sqlitePath"`
	} `koanf:"storage" yaml:"storage"`

	// Sessions bounds how long an unused visitor session stays in memory.
	Sessions struct {
		IdleTTL       time.Duration `koanf:"idleTTL" yaml:"idleTTL"`
		SweepInterval time.Duration `koanf:"sweepInterval" yaml:"sweepInterval"`
	} `koanf:"sessions" yaml:"sessions"`

	// Catalog selects where products come from: static or postgres.
	Catalog struct {
		Source string `koanf:"source" yaml:"source"`
	} `koanf:"catalog" yaml:"catalog"`

	Postgres struct {
		URL string `koanf:"url" yaml:"url"`
	} `koanf:"postgres" yaml:"postgres"`

	Kafka struct {
		Brokers []string `koanf:"brokers" yaml:"brokers"`
		Topic   string   `koanf:"topic" yaml:"topic"`
		GroupID string   `koanf:"groupId" yaml:"groupId"`
	} `koanf:"kafka" yaml:"kafka"`

	Services struct {
		Storefront string `koanf:"storefront" yaml:"storefront"`
		Orders     string `koanf:"orders" yaml:"orders"`
		Inventory  string `koanf:"inventory" yaml:"inventory"`
		Email      string `koanf:"email" yaml:"email"`
	} `koanf:"services" yaml:"services"`

	Migrations struct {
		Path string `koanf:"path" yaml:"path"`
	} `koanf:"migrations" yaml:"migrations"`
}

type Log struct {
	Pretty bool   `koanf:"pretty" yaml:"pretty"`
	Level  string `koanf:"level" yaml:"level"`
}

// Latency holds the simulated backend delays. Enabled=false skips them all.
type Latency struct {
	Enabled          bool          `koanf:"enabled" yaml:"enabled"`
	CatalogQuery     time.Duration `koanf:"catalogQuery" yaml:"catalogQuery"`
	CatalogLookup    time.Duration `koanf:"catalogLookup" yaml:"catalogLookup"`
	CustomerLookup   time.Duration `koanf:"customerLookup" yaml:"customerLookup"`
	CustomerRegister time.Duration `koanf:"customerRegister" yaml:"customerRegister"`
	Checkout         time.Duration `koanf:"checkout" yaml:"checkout"`
}

var defaultPorts = map[string]int{
	"gateway":    8080,
	"orders":     8081,
	"inventory":  8082,
	"storefront": 8083,
	"email":      8084,
	"worker":     8085,
}

// Default returns the settings a service runs with when nothing overrides them.
func Default(service string) *Config {
	cfg := &Config{Service: service, Version: "0.1.0"}

	cfg.Log.Level = "info"

	cfg.HTTP.Port = defaultPorts[service]
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	cfg.HTTP.ReadTimeout = 10 * time.Second
	cfg.HTTP.WriteTimeout = 10 * time.Second
	cfg.HTTP.ShutdownTimeout = 10 * time.Second
	cfg.HTTP.ClientTimeout = 10 * time.Second

	cfg.Telemetry.SampleRatio = 1

	cfg.Latency = Latency{
		Enabled:          true,
		CatalogQuery:     500 * time.Millisecond,
		CatalogLookup:    300 * time.Millisecond,
		CustomerLookup:   time.Second,
		CustomerRegister: time.Second,
		Checkout:         2 * time.Second,
	}

	cfg.Storage.Driver = "memory"
	cfg.Storage.SQLitePath = "storefront.db"
	cfg.Catalog.Source = "static"

	cfg.Sessions.IdleTTL = 30 * time.Minute
	cfg.Sessions.SweepInterval = time.Minute

	cfg.Kafka.Topic = "order.placed"
	cfg.Kafka.GroupID = "notification-worker"

	cfg.Migrations.Path = "file://migrations"

	return cfg
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.HTTP.Port)
}

// Load overlays the YAML file at path (skipped when empty) and STOREFRONT_*
// variables onto Default(service).
func Load(service, path string) (*Config, error) {
	cfg := Default(service)
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrapf(err, "config file %s", path)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "read config %s failed", path)
		}
	}

	existing := k.Raw()

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return canonicalizeEnvKey(strings.TrimPrefix(key, envPrefix), existing), value
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", service)
	}

	return cfg, nil
}

// canonicalizeEnvKey maps LATENCY_CATALOGQUERY onto latency.catalogQuery when
// the file already spells the key that way, so the override replaces it.
func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (string, map[string]any, bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)
		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}

package common

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/beam-cloud/kbpicker/pkg/types"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"
)

const (
	ConfigPathEnv = "CONFIG_PATH"
	DotEnvPathEnv = "DOTENV_PATH"
)

//go:embed config.default.yaml
var defaultConfig []byte

// ConfigManager layers the embedded defaults, an optional config file and the
// environment into a typed config value
type ConfigManager[T any] struct {
	kf     *koanf.Koanf
	config T
}

// NewConfigManager loads configuration from defaults, CONFIG_PATH and the environment
func NewConfigManager[T any]() (*ConfigManager[T], error) {
	return NewConfigManagerFromFile[T](os.Getenv(ConfigPathEnv))
}

// NewConfigManagerFromFile is NewConfigManager with an explicit file path ("" for none)
func NewConfigManagerFromFile[T any](path string) (*ConfigManager[T], error) {
	cm := &ConfigManager[T]{kf: koanf.New(".")}

	if err := cm.kf.Load(rawbytes.Provider(defaultConfig), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load default config: %w", err)
	}

	if path != "" {
		if err := cm.kf.Load(file.Provider(path), parserFor(path)); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
		log.Debug().Str("path", path).Msg("loaded config file")
	}

	loadDotEnv()
	if err := cm.kf.Load(env.Provider("", ".", bindEnv), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := cm.unmarshal(); err != nil {
		return nil, err
	}
	return cm, nil
}

// GetConfig returns the loaded configuration
func (cm *ConfigManager[T]) GetConfig() T {
	return cm.config
}

// Get returns a raw config value by key
func (cm *ConfigManager[T]) Get(key string) any {
	return cm.kf.Get(key)
}

func (cm *ConfigManager[T]) unmarshal() error {
	var config T
	err := cm.kf.UnmarshalWithConf("", &config, koanf.UnmarshalConf{
		Tag: "key",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           &config,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	cm.config = config
	return nil
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return json.Parser()
	default:
		return yaml.Parser()
	}
}

// bindEnv maps a known environment variable to its config key; unknown variables are skipped
func bindEnv(name string) string {
	return types.EnvBindings[name]
}

// loadDotEnv reads .env (or DOTENV_PATH) without overriding variables already set
func loadDotEnv() {
	path := os.Getenv(DotEnvPathEnv)
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to load env file")
	}
}

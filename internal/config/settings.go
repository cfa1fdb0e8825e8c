package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/vault-md/versionable/internal/version"
)

// Settings is the external configuration surface of the engine.
type Settings struct {
	// KeepVersions is the default retention count; zero keeps everything.
	KeepVersions        int                     `mapstructure:"keep_versions"`
	ForceDeleteVersions bool                    `mapstructure:"force_delete_versions"`
	Strategy            string                  `mapstructure:"strategy"`
	IDStrategy          string                  `mapstructure:"id_strategy"`
	UserForeignKey      string                  `mapstructure:"user_foreign_key"`
	// GitUser attributes CLI writes without --user to the git identity of
	// the working directory.
	GitUser             bool                    `mapstructure:"git_user"`
	Log                 LogSettings             `mapstructure:"log"`
	Types               map[string]TypeSettings `mapstructure:"types"`
}

type LogSettings struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// TypeSettings overrides the defaults for one entity type.
type TypeSettings struct {
	Strategy     string   `mapstructure:"strategy"`
	Include      []string `mapstructure:"include"`
	Exclude      []string `mapstructure:"exclude"`
	KeepVersions int      `mapstructure:"keep_versions"`
	ForceDelete  bool     `mapstructure:"force_delete"`
}

// DefaultSettings returns the settings used when no file or env overrides
// are present.
func DefaultSettings() Settings {
	return Settings{
		Strategy:       string(version.StrategyDiff),
		IDStrategy:     string(version.IDSequential),
		UserForeignKey: "user_id",
		Log:            LogSettings{Level: "warn"},
		Types:          map[string]TypeSettings{},
	}
}

// LoadSettings reads path (GetConfigPath when empty) and applies
// VERSIONABLE_* environment overrides. A missing file yields the defaults.
func LoadSettings(path string) (Settings, error) {
	if path == "" {
		path = GetConfigPath()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("versionable")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("stat config %s: %w", path, err)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if s.Types == nil {
		s.Types = map[string]TypeSettings{}
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultSettings()
	v.SetDefault("keep_versions", d.KeepVersions)
	v.SetDefault("force_delete_versions", d.ForceDeleteVersions)
	v.SetDefault("strategy", d.Strategy)
	v.SetDefault("id_strategy", d.IDStrategy)
	v.SetDefault("user_foreign_key", d.UserForeignKey)
	v.SetDefault("git_user", d.GitUser)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)
}

func (s Settings) Validate() error {
	if _, err := version.ParseStrategy(s.Strategy); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if _, err := version.ParseIDStrategy(s.IDStrategy); err != nil {
		return fmt.Errorf("id_strategy: %w", err)
	}
	if strings.TrimSpace(s.UserForeignKey) == "" {
		return fmt.Errorf("user_foreign_key is required")
	}
	if s.KeepVersions < 0 {
		return fmt.Errorf("keep_versions must not be negative")
	}
	for name, t := range s.Types {
		if t.Strategy != "" {
			if _, err := version.ParseStrategy(t.Strategy); err != nil {
				return fmt.Errorf("types.%s.strategy: %w", name, err)
			}
		}
		if t.KeepVersions < 0 {
			return fmt.Errorf("types.%s.keep_versions must not be negative", name)
		}
	}
	return nil
}

// IDGenerator returns the configured record id strategy.
func (s Settings) IDGenerator() (version.IDGenerator, error) {
	return version.ParseIDStrategy(s.IDStrategy)
}

// Registry builds the per-type policy registry. Types without an entry use
// the top-level strategy.
func (s Settings) Registry() (*version.Registry, error) {
	strategy, err := version.ParseStrategy(s.Strategy)
	if err != nil {
		return nil, err
	}
	registry := version.NewRegistry(version.WithDefault(version.Policy{
		Strategy:            strategy,
		ForceDeleteVersions: s.ForceDeleteVersions,
	}))

	names := make([]string, 0, len(s.Types))
	for name := range s.Types {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		t := s.Types[name]
		policy := version.Policy{
			Strategy:            strategy,
			Filter:              version.FieldFilter{Include: t.Include, Exclude: t.Exclude},
			KeepVersions:        t.KeepVersions,
			ForceDeleteVersions: t.ForceDelete || s.ForceDeleteVersions,
		}
		if t.Strategy != "" {
			if policy.Strategy, err = version.ParseStrategy(t.Strategy); err != nil {
				return nil, err
			}
		}
		if err := registry.Register(name, policy); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

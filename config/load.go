package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/mitchellh/mapstructure"
	ini "gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the default prefix of environment overrides.
const EnvPrefix = "TESTENV"

// LoadOptions selects the sources merged by Load. Every field is optional.
type LoadOptions struct {
	// File is a YAML (.yaml, .yml) or INI (.ini, .conf) settings file.
	File string
	// Inline is a base64 encoded YAML document applied after File.
	Inline string
	// EnvFile is a dotenv file loaded into the process environment before
	// overrides are read. Existing variables are not overwritten.
	EnvFile string
	// EnvPrefix overrides EnvPrefix.
	EnvPrefix string
	// SkipEnv disables environment overrides.
	SkipEnv bool
}

// Load builds Settings from defaults, then File, Inline, the environment,
// and validates the result.
func Load(opts LoadOptions) (*Settings, error) {
	s := NewSettings()

	if opts.File != "" {
		if err := s.mergeFile(opts.File); err != nil {
			return nil, err
		}
	}

	if opts.Inline != "" {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(opts.Inline))
		if err != nil {
			return nil, fmt.Errorf("decode inline settings: %w", err)
		}
		if err := yaml.Unmarshal(raw, s); err != nil {
			return nil, fmt.Errorf("parse inline settings: %w", err)
		}
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", opts.EnvFile, err)
		}
	}

	if !opts.SkipEnv {
		prefix := opts.EnvPrefix
		if prefix == "" {
			prefix = EnvPrefix
		}
		if err := s.applyEnv(prefix); err != nil {
			return nil, err
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) mergeFile(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".conf", ".cfg":
		cfg, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true, InsensitiveKeys: true}, path)
		if err != nil {
			return fmt.Errorf("read settings %s: %w", path, err)
		}
		return s.mergeINI(cfg)
	default:
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read settings %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, s); err != nil {
			return fmt.Errorf("parse settings %s: %w", path, err)
		}
		return nil
	}
}

// ParseINI merges an INI document held in memory into s.
func (s *Settings) ParseINI(data []byte) error {
	cfg, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true, InsensitiveKeys: true}, data)
	if err != nil {
		return fmt.Errorf("parse ini: %w", err)
	}
	return s.mergeINI(cfg)
}

// mergeINI maps each section ([postgres], [keycloak], ...) onto the settings
// section of the same name. Values are weakly typed strings.
func (s *Settings) mergeINI(cfg *ini.File) error {
	input := make(map[string]interface{})
	for _, section := range cfg.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		values := make(map[string]interface{})
		for _, key := range section.Keys() {
			values[key.Name()] = key.Value()
		}
		input[strings.ToLower(section.Name())] = values
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           s,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("decode ini: %w", err)
	}
	return nil
}

// envOverrides lists the settings that can be overridden from the
// environment, e.g. TESTENV_POSTGRES_TAG. Nil means unset.
type envOverrides struct {
	DockerHost        *string        `envconfig:"DOCKER_HOST"`
	PullPolicy        *string        `envconfig:"PULL_POLICY"`
	NetworkName       *string        `envconfig:"NETWORK"`
	PostgresEnabled   *bool          `envconfig:"POSTGRES_ENABLED"`
	PostgresImage     *string        `envconfig:"POSTGRES_IMAGE"`
	PostgresTag       *string        `envconfig:"POSTGRES_TAG"`
	PostgresDatabase  *string        `envconfig:"POSTGRES_DB"`
	PostgresUser      *string        `envconfig:"POSTGRES_USER"`
	PostgresPassword  *string        `envconfig:"POSTGRES_PASSWORD"`
	PostgresInit      *string        `envconfig:"POSTGRES_INIT_SCRIPTS"`
	KeycloakEnabled   *bool          `envconfig:"KEYCLOAK_ENABLED"`
	KeycloakTag       *string        `envconfig:"KEYCLOAK_TAG"`
	KeycloakRealm     *string        `envconfig:"KEYCLOAK_REALM"`
	KeycloakRealmFile *string        `envconfig:"KEYCLOAK_REALM_FILE"`
	KeycloakClientID  *string        `envconfig:"KEYCLOAK_CLIENT_ID"`
	KeycloakSecret    *string        `envconfig:"KEYCLOAK_CLIENT_SECRET"`
	KeycloakUsername  *string        `envconfig:"KEYCLOAK_USERNAME"`
	KeycloakPassword  *string        `envconfig:"KEYCLOAK_PASSWORD"`
	RedisEnabled      *bool          `envconfig:"REDIS_ENABLED"`
	RedisTag          *string        `envconfig:"REDIS_TAG"`
	TeardownTimeout   *time.Duration `envconfig:"TEARDOWN_TIMEOUT"`
	LogLevel          *string        `envconfig:"LOG_LEVEL"`
	LogFormat         *string        `envconfig:"LOG_FORMAT"`
}

func (s *Settings) applyEnv(prefix string) error {
	var env envOverrides
	if err := envconfig.Process(prefix, &env); err != nil {
		return fmt.Errorf("read %s_* environment: %w", prefix, err)
	}

	setString(&s.Docker.Host, env.DockerHost)
	setString(&s.Docker.PullPolicy, env.PullPolicy)
	setString(&s.Network.Name, env.NetworkName)
	setBool(&s.Postgres.Enabled, env.PostgresEnabled)
	setString(&s.Postgres.Image, env.PostgresImage)
	setString(&s.Postgres.Tag, env.PostgresTag)
	setString(&s.Postgres.Database, env.PostgresDatabase)
	setString(&s.Postgres.User, env.PostgresUser)
	setString(&s.Postgres.Password, env.PostgresPassword)
	setString(&s.Postgres.InitScripts, env.PostgresInit)
	setBool(&s.Keycloak.Enabled, env.KeycloakEnabled)
	setString(&s.Keycloak.Tag, env.KeycloakTag)
	setString(&s.Keycloak.Realm, env.KeycloakRealm)
	setString(&s.Keycloak.RealmFile, env.KeycloakRealmFile)
	setString(&s.Keycloak.ClientID, env.KeycloakClientID)
	setString(&s.Keycloak.ClientSecret, env.KeycloakSecret)
	setString(&s.Keycloak.Username, env.KeycloakUsername)
	setString(&s.Keycloak.Password, env.KeycloakPassword)
	setBool(&s.Redis.Enabled, env.RedisEnabled)
	setString(&s.Redis.Tag, env.RedisTag)
	if env.TeardownTimeout != nil {
		s.Teardown.Timeout = *env.TeardownTimeout
	}
	setString(&s.Log.Level, env.LogLevel)
	setString(&s.Log.Format, env.LogFormat)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

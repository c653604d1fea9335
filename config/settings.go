// Package config holds the settings consumed by the test environment and
// the loader that assembles them from defaults, files and the environment.
package config

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
)

// Pull policies for service images.
const (
	PullMissing = "missing"
	PullAlways  = "always"
	PullNever   = "never"
)

// Settings is the full configuration of one test environment. It is mutable
// while services are provisioned and frozen once published to the registry.
type Settings struct {
	Docker   DockerSettings   `yaml:"docker" mapstructure:"docker"`
	Network  NetworkSettings  `yaml:"network" mapstructure:"network"`
	Postgres PostgresSettings `yaml:"postgres" mapstructure:"postgres"`
	Keycloak KeycloakSettings `yaml:"keycloak" mapstructure:"keycloak"`
	Redis    RedisSettings    `yaml:"redis" mapstructure:"redis"`
	Teardown TeardownSettings `yaml:"teardown" mapstructure:"teardown"`
	Log      LogSettings      `yaml:"log" mapstructure:"log"`
}

// DockerSettings configures the container engine connection.
type DockerSettings struct {
	// Host overrides DOCKER_HOST when set.
	Host       string `yaml:"host" mapstructure:"host"`
	PullPolicy string `yaml:"pull-policy" mapstructure:"pull-policy" default:"missing" validate:"oneof=missing always never"`
	Platform   string `yaml:"platform" mapstructure:"platform"`
}

// NetworkSettings configures the network shared by all services.
type NetworkSettings struct {
	Name   string `yaml:"name" mapstructure:"name" default:"test_network" validate:"required"`
	Create bool   `yaml:"create" mapstructure:"create" default:"true"`
}

// PostgresSettings configures the relational database service.
type PostgresSettings struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled" default:"true"`
	Image          string        `yaml:"image" mapstructure:"image" default:"postgres" validate:"required,dockerimage"`
	Tag            string        `yaml:"tag" mapstructure:"tag" default:"17-alpine" validate:"required"`
	Database       string        `yaml:"database" mapstructure:"database" default:"app" validate:"required"`
	User           string        `yaml:"user" mapstructure:"user" default:"postgres" validate:"required"`
	Password       string        `yaml:"password" mapstructure:"password" default:"postgres" validate:"required"`
	InitScripts    string        `yaml:"init-scripts" mapstructure:"init-scripts"`
	// Migrations is a directory of golang-migrate files applied once ready.
	Migrations     string        `yaml:"migrations" mapstructure:"migrations"`
	StartupTimeout time.Duration `yaml:"startup-timeout" mapstructure:"startup-timeout" default:"30s" validate:"duration_gte=1s"`

	// URL is filled once the container is ready.
	URL string `yaml:"-" mapstructure:"-"`
}

// KeycloakSettings configures the identity provider service.
type KeycloakSettings struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled" default:"true"`
	Image          string        `yaml:"image" mapstructure:"image" default:"quay.io/keycloak/keycloak" validate:"required,dockerimage"`
	Tag            string        `yaml:"tag" mapstructure:"tag" default:"26.5.2" validate:"required"`
	AdminUser      string        `yaml:"admin-user" mapstructure:"admin-user" default:"admin" validate:"required"`
	AdminPassword  string        `yaml:"admin-password" mapstructure:"admin-password" default:"123456" validate:"required"`
	Realm          string        `yaml:"realm" mapstructure:"realm" default:"test" validate:"required"`
	RealmFile      string        `yaml:"realm-file" mapstructure:"realm-file"`
	ClientID       string        `yaml:"client-id" mapstructure:"client-id"`
	ClientSecret   string        `yaml:"client-secret" mapstructure:"client-secret"`
	Username       string        `yaml:"username" mapstructure:"username"`
	Password       string        `yaml:"password" mapstructure:"password"`
	Scope          string        `yaml:"scope" mapstructure:"scope" default:"openid"`
	Command        string        `yaml:"command" mapstructure:"command" default:"start-dev --import-realm"`
	Timezone       string        `yaml:"timezone" mapstructure:"timezone" default:"UTC"`
	StartupTimeout time.Duration `yaml:"startup-timeout" mapstructure:"startup-timeout" default:"60s" validate:"duration_gte=1s"`

	// Resolved endpoints, filled once the container is ready.
	URL          string `yaml:"-" mapstructure:"-"`
	DiscoveryURL string `yaml:"-" mapstructure:"-"`
	TokenURL     string `yaml:"-" mapstructure:"-"`
}

// RedisSettings configures the key-value cache service.
type RedisSettings struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled" default:"false"`
	Image          string        `yaml:"image" mapstructure:"image" default:"redis" validate:"required,dockerimage"`
	Tag            string        `yaml:"tag" mapstructure:"tag" default:"7-alpine" validate:"required"`
	StartupTimeout time.Duration `yaml:"startup-timeout" mapstructure:"startup-timeout" default:"30s" validate:"duration_gte=1s"`

	// URL is filled once the container is ready.
	URL string `yaml:"-" mapstructure:"-"`
}

// TeardownSettings bounds teardown. A zero Timeout waits forever.
type TeardownSettings struct {
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// LogSettings configures logging output.
type LogSettings struct {
	Level  string `yaml:"level" mapstructure:"level" default:"info" validate:"oneof=debug info notice warning error"`
	Format string `yaml:"format" mapstructure:"format" default:"text" validate:"oneof=text json"`
}

// NewSettings returns settings populated with defaults.
func NewSettings() *Settings {
	s := &Settings{}
	if err := defaults.Set(s); err != nil {
		// Only reachable with a malformed default tag.
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return s
}

// Clone returns an independent copy of s.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// ImageRef returns the full image reference of the database service.
func (p PostgresSettings) ImageRef() string { return p.Image + ":" + p.Tag }

// ImageRef returns the full image reference of the identity provider.
func (k KeycloakSettings) ImageRef() string { return k.Image + ":" + k.Tag }

// ImageRef returns the full image reference of the cache service.
func (r RedisSettings) ImageRef() string { return r.Image + ":" + r.Tag }

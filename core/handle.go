package core

import (
	"net"
	"net/url"
	"strconv"
	"time"
)

// ServiceKind names a provisionable service.
type ServiceKind string

const (
	ServicePostgres ServiceKind = "postgres"
	ServiceKeycloak ServiceKind = "keycloak"
	ServiceRedis    ServiceKind = "redis"
)

// ParseServiceKind maps a name to a ServiceKind.
func ParseServiceKind(name string) (ServiceKind, bool) {
	switch k := ServiceKind(name); k {
	case ServicePostgres, ServiceKeycloak, ServiceRedis:
		return k, true
	default:
		return "", false
	}
}

// ContainerHandle describes a running, ready service container. Its stop
// capability lives in the StopSet under StopName.
type ContainerHandle struct {
	Kind        ServiceKind
	ContainerID string
	Name        string
	URI         string
	ReadyAt     time.Time
	Endpoint    Endpoint

	stopName string
}

// StopName is the StopSet entry that removes this container.
func (h *ContainerHandle) StopName() string { return h.stopName }

// Endpoint is the connection description of one service kind.
// Implementations: *PostgresEndpoint, *KeycloakEndpoint, *RedisEndpoint.
type Endpoint interface {
	URI() string
	endpoint()
}

// PostgresEndpoint locates the database.
type PostgresEndpoint struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

func (*PostgresEndpoint) endpoint() {}

// URI returns a postgres connection string.
func (e *PostgresEndpoint) URI() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(e.User, e.Password),
		Host:     hostPort(e.Host, e.Port),
		Path:     "/" + e.Database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// KeycloakEndpoint locates the identity provider.
type KeycloakEndpoint struct {
	Host           string
	Port           int
	ManagementPort int
	Realm          string
}

func (*KeycloakEndpoint) endpoint() {}

// URI returns the base URL of the identity provider.
func (e *KeycloakEndpoint) URI() string {
	return "http://" + hostPort(e.Host, e.Port)
}

// RealmURL returns the base URL of the configured realm.
func (e *KeycloakEndpoint) RealmURL() string {
	return e.URI() + "/realms/" + url.PathEscape(e.Realm)
}

// DiscoveryURL returns the OpenID discovery document URL.
func (e *KeycloakEndpoint) DiscoveryURL() string {
	return e.RealmURL() + "/.well-known/openid-configuration"
}

// TokenURL returns the OAuth2 token endpoint.
func (e *KeycloakEndpoint) TokenURL() string {
	return e.RealmURL() + "/protocol/openid-connect/token"
}

// RedisEndpoint locates the cache.
type RedisEndpoint struct {
	Host string
	Port int
	DB   int
}

func (*RedisEndpoint) endpoint() {}

// URI returns a redis connection URL.
func (e *RedisEndpoint) URI() string {
	return "redis://" + hostPort(e.Host, e.Port) + "/" + strconv.Itoa(e.DB)
}

// Addr returns host:port for client libraries.
func (e *RedisEndpoint) Addr() string { return hostPort(e.Host, e.Port) }

func hostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

package core

import (
	"context"
	"fmt"
	"os"

	"github.com/gobs/args"

	"github.com/netresearch/testenv/config"
	"github.com/netresearch/testenv/core/domain"
)

const (
	keycloakPort           domain.Port = "8080/tcp"
	keycloakManagementPort domain.Port = "9000/tcp"
	keycloakImportDir                  = "/opt/keycloak/data/import"
	keycloakRealmFile                  = "realm-export.json"
)

// KeycloakSpec builds the service description of the identity provider.
func KeycloakSpec(s config.KeycloakSettings) (ServiceSpec, error) {
	cmd := args.GetArgs(s.Command)
	if len(cmd) == 0 {
		return ServiceSpec{}, fmt.Errorf("keycloak command %q is empty", s.Command)
	}

	spec := ServiceSpec{
		Kind:  ServiceKeycloak,
		Image: s.ImageRef(),
		Cmd:   cmd,
		Env: []string{
			"KC_BOOTSTRAP_ADMIN_USERNAME=" + s.AdminUser,
			"KC_BOOTSTRAP_ADMIN_PASSWORD=" + s.AdminPassword,
			"KC_HEALTH_ENABLED=true",
			"KC_HTTP_ENABLED=true",
			"TZ=" + s.Timezone,
		},
		ExposedPorts:   []domain.Port{keycloakPort, keycloakManagementPort},
		StartupTimeout: s.StartupTimeout,
		Wait:           ForHTTP(keycloakManagementPort, "/health/ready"),
		Endpoint: func(host string, ports map[domain.Port]int) Endpoint {
			return &KeycloakEndpoint{
				Host:           host,
				Port:           ports[keycloakPort],
				ManagementPort: ports[keycloakManagementPort],
				Realm:          s.Realm,
			}
		},
	}

	if s.RealmFile != "" {
		content, err := os.ReadFile(s.RealmFile)
		if err != nil {
			return ServiceSpec{}, fmt.Errorf("realm file: %w", err)
		}
		spec.Files = append(spec.Files, File{Dir: keycloakImportDir, Name: keycloakRealmFile, Content: content})
	}
	return spec, nil
}

// StartKeycloak provisions the identity provider and fills the resolved
// URLs into s.
func (p *Provisioner) StartKeycloak(ctx context.Context, s *config.KeycloakSettings) (*ContainerHandle, error) {
	spec, err := KeycloakSpec(*s)
	if err != nil {
		return nil, newProvisionError(ProvisionConfigInvalid, string(ServiceKeycloak), err)
	}
	h, err := p.Start(ctx, spec)
	if err != nil {
		return nil, err
	}
	if e, ok := h.Endpoint.(*KeycloakEndpoint); ok {
		s.URL = e.URI()
		s.DiscoveryURL = e.DiscoveryURL()
		s.TokenURL = e.TokenURL()
	}
	return h, nil
}

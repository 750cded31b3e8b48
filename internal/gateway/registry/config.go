package registry

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Auth kinds an integration may declare.
const (
	AuthNone   = "none"
	AuthBasic  = "basic"
	AuthBearer = "bearer"
	AuthAPIKey = "api_key"
	AuthOAuth2 = "oauth2"
)

// DefaultAPIKeyHeader carries the key when the descriptor doesn't name a header.
const DefaultAPIKeyHeader = "X-API-Key"

// AuthConfig describes how outbound calls to an integration authenticate.
// Kind-specific fields are only read for their kind; StaticHeaders apply to
// every kind and take precedence over synthesized headers.
type AuthConfig struct {
	Kind          string            `yaml:"kind"`
	Token         string            `yaml:"token"`    // bearer
	Username      string            `yaml:"username"` // basic
	Password      string            `yaml:"password"` // basic
	APIKey        string            `yaml:"apiKey"`   // api_key
	APIKeyHeader  string            `yaml:"apiKeyHeader"`
	TokenURL      string            `yaml:"tokenUrl"`     // oauth2 token acquisition
	ClientID      string            `yaml:"clientId"`     // oauth2
	ClientSecret  string            `yaml:"clientSecret"` // oauth2
	StaticHeaders map[string]string `yaml:"staticHeaders"`
}

// EndpointConfig is one named operation on an integration. Path may contain
// {param} placeholders substituted by BuildURL.
type EndpointConfig struct {
	Path        string `yaml:"path"`
	Method      string `yaml:"method"`
	Transformer string `yaml:"transformer"`
}

// WebhookConfig describes inbound webhook settings for an integration.
// An empty Events list admits any event name.
type WebhookConfig struct {
	Enabled bool     `yaml:"enabled"`
	Secret  string   `yaml:"secret"`
	Events  []string `yaml:"events"`
}

// IntegrationConfig is one named external system. Loaded once at startup
// and immutable at runtime.
type IntegrationConfig struct {
	Name       string                    `yaml:"name"`
	Enabled    bool                      `yaml:"enabled"`
	BaseURL    string                    `yaml:"baseUrl"`
	Auth       AuthConfig                `yaml:"auth"`
	Endpoints  map[string]EndpointConfig `yaml:"endpoints"`
	Timeout    time.Duration             `yaml:"timeout"`
	RetryCount int                       `yaml:"retryCount"`
	Webhook    *WebhookConfig            `yaml:"webhook"`
}

// UnmarshalYAML accepts timeout as a Go duration string ("10s", "1m30s").
// yaml.v3 cannot shadow an embedded field's key the way encoding/json does
// (it rejects the duplicate "timeout" key), so timeout is split off the
// mapping before delegating the rest to the plain struct decode.
func (ic *IntegrationConfig) UnmarshalYAML(value *yaml.Node) error {
	type alias IntegrationConfig
	var timeout string
	rest := *value
	rest.Content = nil
	for i := 0; i+1 < len(value.Content); i += 2 {
		if value.Content[i].Value == "timeout" {
			if err := value.Content[i+1].Decode(&timeout); err != nil {
				return err
			}
			continue
		}
		rest.Content = append(rest.Content, value.Content[i], value.Content[i+1])
	}
	if err := rest.Decode((*alias)(ic)); err != nil {
		return err
	}
	if timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("parse timeout: %w", err)
		}
		ic.Timeout = d
	}
	return nil
}

type catalogFile struct {
	Integrations []IntegrationConfig `yaml:"integrations"`
}

// LoadCatalog reads the integration catalog from a YAML file and validates it.
func LoadCatalog(path string) ([]IntegrationConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer file.Close()

	var cat catalogFile
	if err := yaml.NewDecoder(file).Decode(&cat); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	if err := validateCatalog(cat.Integrations); err != nil {
		return nil, err
	}
	return cat.Integrations, nil
}

func validateCatalog(integrations []IntegrationConfig) error {
	seen := make(map[string]struct{}, len(integrations))
	for i, ic := range integrations {
		name := strings.TrimSpace(ic.Name)
		if name == "" {
			return fmt.Errorf("integrations[%d]: name is required", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("integrations[%d]: duplicate name %q", i, name)
		}
		seen[name] = struct{}{}

		if ic.BaseURL == "" {
			return fmt.Errorf("integration %s: baseUrl is required", name)
		}
		if _, err := url.Parse(ic.BaseURL); err != nil {
			return fmt.Errorf("integration %s: parse baseUrl: %w", name, err)
		}

		switch ic.Auth.Kind {
		case "", AuthNone, AuthBasic, AuthBearer, AuthAPIKey, AuthOAuth2:
		default:
			return fmt.Errorf("integration %s: unsupported auth kind %q", name, ic.Auth.Kind)
		}

		for epName, ep := range ic.Endpoints {
			if ep.Path == "" {
				return fmt.Errorf("integration %s: endpoint %s: path is required", name, epName)
			}
			if ep.Method == "" {
				return fmt.Errorf("integration %s: endpoint %s: method is required", name, epName)
			}
		}
	}
	return nil
}

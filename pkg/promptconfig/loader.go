package promptconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Load reads active.yml from configDir, resolves the routings/*.yml and
// providers/*.yml files it names, merges them (later files override
// earlier ones), and returns a ready RoutingRegistry. When
// LLM_ECONOMY_MODE=true is set, routings/economy.yml is merged in last so
// it wins over the configured set.
func Load(configDir string) (*RoutingRegistry, error) {
	loader := &configLoader{configDir: configDir}

	active, err := loader.loadActive()
	if err != nil {
		return nil, NewLoadError("active.yml", err)
	}

	routings := active.Routings
	if economyModeEnabled() {
		routings = append(routings, economyRoutingFile)
	}

	routes := map[string]ActionRoute{}
	for _, rel := range routings {
		rf, err := loader.loadRouting(rel)
		if err != nil {
			return nil, NewLoadError(rel, err)
		}
		for action, r := range rf {
			routes[action] = r
		}
	}

	providers := map[string]ProviderConfig{}
	for _, rel := range active.Providers {
		pf, err := loader.loadProviders(rel)
		if err != nil {
			return nil, NewLoadError(rel, err)
		}
		for name, p := range pf {
			providers[name] = p
		}
	}

	return newRoutingRegistry(routes, providers), nil
}

func economyModeEnabled() bool {
	return os.Getenv(EnvEconomyMode) == "true"
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(rel string, target any) error {
	path := filepath.Join(l.configDir, rel)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return nil
}

func (l *configLoader) loadActive() (*activeYAML, error) {
	var cfg activeYAML
	if err := l.loadYAML("active.yml", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *configLoader) loadRouting(rel string) (map[string]ActionRoute, error) {
	var raw routingYAML
	if err := l.loadYAML(rel, &raw); err != nil {
		return nil, err
	}
	routes := make(map[string]ActionRoute, len(raw.Routes))
	for action, r := range raw.Routes {
		primary := ModelConfig{
			Model:       r.Model,
			Provider:    r.Provider,
			PromptFile:  r.PromptFile,
			Temperature: r.Temperature,
			MaxTokens:   r.MaxTokens,
			TimeoutMS:   r.TimeoutMS,
		}
		routes[action] = ActionRoute{Primary: primary, Fallbacks: r.Fallbacks}
	}
	return routes, nil
}

func (l *configLoader) loadProviders(rel string) (map[string]ProviderConfig, error) {
	var raw providersYAML
	if err := l.loadYAML(rel, &raw); err != nil {
		return nil, err
	}
	return raw.Providers, nil
}

// mergeRoutes merges override on top of base (mergo.WithOverride), used
// by callers that compose a registry from more than one already-parsed
// routing map (e.g. tests layering an override file onto a base fixture).
func mergeRoutes(base, override map[string]ActionRoute) (map[string]ActionRoute, error) {
	merged := make(map[string]ActionRoute, len(base))
	for k, v := range base {
		merged[k] = v
	}
	for action, route := range override {
		if existing, ok := merged[action]; ok {
			if err := mergo.Merge(&existing, route, mergo.WithOverride); err != nil {
				return nil, fmt.Errorf("merge route %s: %w", action, err)
			}
			merged[action] = existing
			continue
		}
		merged[action] = route
	}
	return merged, nil
}

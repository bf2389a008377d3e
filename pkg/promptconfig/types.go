package promptconfig

// ModelConfig is one candidate model an ActionRoute may dispatch to.
type ModelConfig struct {
	Model       string  `yaml:"model"`
	Provider    string  `yaml:"provider"`
	PromptFile  string  `yaml:"prompt_file"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutMS   int     `yaml:"timeout_ms"`
}

// ActionRoute is the action profile the LLM action runner executes:
// a primary model and an ordered list of fallbacks.
type ActionRoute struct {
	Primary   ModelConfig   `yaml:"primary"`
	Fallbacks []ModelConfig `yaml:"fallbacks"`
}

// ProviderConfig is one entry of a providers/*.yml file.
type ProviderConfig struct {
	Type      string `yaml:"type"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url,omitempty"`
}

// activeYAML is the top-level active.yml pointer file: it names which
// routing and provider files make up the active configuration.
type activeYAML struct {
	Routings  []string `yaml:"routings"`
	Providers []string `yaml:"providers"`
}

// routingYAML is one routings/*.yml file: per-action routes keyed by dotted
// action name, e.g. "extract.schema", "extract.lineage.package".
type routingYAML struct {
	Routes map[string]routeYAML `yaml:"routes"`
}

// routeYAML is one route entry: per-action
// {model, provider?, temperature, max_tokens, prompt_file} plus a sibling
// fallbacks list.
type routeYAML struct {
	Model       string        `yaml:"model"`
	Provider    string        `yaml:"provider"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	TimeoutMS   int           `yaml:"timeout_ms"`
	PromptFile  string        `yaml:"prompt_file"`
	Fallbacks   []ModelConfig `yaml:"fallbacks"`
}

// providersYAML is one providers/*.yml file: named provider definitions.
type providersYAML struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// economyRoutingFile is the routing file merged on top of the normal
// active set when LLM_ECONOMY_MODE=true.
const economyRoutingFile = "routings/economy.yml"

// EnvEconomyMode is the environment flag name that forces the economy profile.
const EnvEconomyMode = "LLM_ECONOMY_MODE"

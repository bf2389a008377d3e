// Package prompt composes the layered system prompt text for an LLM
// action: fixed section headers joined by blank lines, with a filesystem
// fallback when no layer resolves from the store.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/lineagekit/discovery/pkg/store"
)

const (
	headerDomain   = "### DOMAIN SPECIALIZED INSTRUCTIONS"
	headerOrg      = "### ORGANIZATIONAL GUIDELINES"
	headerSolution = "### PROJECT-SPECIFIC RULES (SOLUTION LAYER)"
	headerReasoner = "### REASONING AGENT INSTRUCTIONS"
)

// Composer resolves and composes layered prompt text for an action name,
// grounded in a *store.Store for the DB-backed layers and a filesystem
// directory for the fallback path.
type Composer struct {
	store       *store.Store
	fallbackDir string
}

// New constructs a Composer. fallbackDir is the root of the on-disk
// prompts/ directory holding the per-action fallback files.
func New(st *store.Store, fallbackDir string) *Composer {
	return &Composer{store: st, fallbackDir: fallbackDir}
}

// Compose builds the full system prompt for action, scoped to projectID for
// the SOLUTION layer override, then interpolates vars into the result.
// action is a dotted name such as "extract.schema" or
// "extract.lineage.package"; dots are preserved in the action_prompt_config
// lookup and only swapped for underscores in the filesystem fallback path.
func (c *Composer) Compose(ctx context.Context, action, projectID string, vars map[string]string) (string, error) {
	cfg, err := c.store.ActionPromptConfigByName(ctx, action)
	if err != nil {
		return "", fmt.Errorf("resolve action prompt config %q: %w", action, err)
	}

	var solutionID *string
	if projectID != "" {
		solutionID, err = c.store.ProjectActionConfigSolutionLayer(ctx, projectID, action)
		if err != nil {
			return "", fmt.Errorf("resolve solution layer %q: %w", action, err)
		}
	}

	if cfg == nil && solutionID == nil {
		text, err := c.loadFallback(action)
		if err != nil {
			return "", err
		}
		return Interpolate(text, vars), nil
	}

	var sections []string

	if cfg != nil && cfg.BaseID != nil {
		base, err := c.store.PromptLayerContent(ctx, *cfg.BaseID)
		if err != nil {
			return "", fmt.Errorf("load base layer: %w", err)
		}
		sections = append(sections, base)
	}
	if cfg != nil && cfg.DomainID != nil {
		domain, err := c.store.PromptLayerContent(ctx, *cfg.DomainID)
		if err != nil {
			return "", fmt.Errorf("load domain layer: %w", err)
		}
		sections = append(sections, headerDomain+"\n\n"+domain)
	}
	if cfg != nil && cfg.OrgID != nil {
		org, err := c.store.PromptLayerContent(ctx, *cfg.OrgID)
		if err != nil {
			return "", fmt.Errorf("load org layer: %w", err)
		}
		sections = append(sections, headerOrg+"\n\n"+org)
	}
	if solutionID != nil {
		solution, err := c.store.PromptLayerContent(ctx, *solutionID)
		if err != nil {
			return "", fmt.Errorf("load solution layer: %w", err)
		}
		sections = append(sections, headerSolution+"\n\n"+solution)
	}
	if cfg != nil && cfg.ReasonerID != nil {
		reasoner, err := c.store.PromptLayerContent(ctx, *cfg.ReasonerID)
		if err != nil {
			return "", fmt.Errorf("load reasoner layer: %w", err)
		}
		sections = append(sections, headerReasoner+"\n\n"+reasoner)
	}

	if len(sections) == 0 {
		text, err := c.loadFallback(action)
		if err != nil {
			return "", err
		}
		return Interpolate(text, vars), nil
	}

	return Interpolate(strings.Join(sections, "\n\n"), vars), nil
}

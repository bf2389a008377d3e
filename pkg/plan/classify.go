package plan

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lineagekit/discovery/pkg/models"
)

var (
	schemaPathPattern  = regexp.MustCompile(`(?i)(schema|migration)`)
	docsPathPattern    = regexp.MustCompile(`(?i)(readme|contract|docs)`)
	packagesPathPattern = regexp.MustCompile(`(?i)(jobs|pipelines)`)
)

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}
var docTextExts = map[string]bool{".md": true, ".json": true, ".txt": true}
var packageExts = map[string]bool{".dtsx": true, ".dsx": true}
var scriptExts = map[string]bool{".py": true, ".sh": true, ".bat": true, ".ps1": true}
var configExts = map[string]bool{".xml": true, ".config": true, ".yaml": true, ".yml": true, ".env": true}
var foundationExts = map[string]bool{".sql": true, ".ddl": true}

// Classification is the (area, strategy) pair the Planner assigns to a file.
type Classification struct {
	Area     models.AreaName
	Strategy models.Strategy
}

// Classify applies the first-match-wins area/strategy predicate table.
func Classify(path string, action models.RecommendedAction) Classification {
	if action == models.ActionSkip {
		return Classification{Area: models.AreaAux, Strategy: models.StrategySkip}
	}

	ext := strings.ToLower(filepath.Ext(path))
	slashPath := filepath.ToSlash(path)

	switch {
	case foundationExts[ext] || schemaPathPattern.MatchString(slashPath):
		return Classification{Area: models.AreaFoundation, Strategy: models.StrategyParserPlusLLM}
	case docTextExts[ext] && docsPathPattern.MatchString(slashPath):
		return Classification{Area: models.AreaDocs, Strategy: models.StrategyLLMOnly}
	case imageExts[ext]:
		return Classification{Area: models.AreaDocs, Strategy: models.StrategyVLMExtract}
	case packageExts[ext]:
		return Classification{Area: models.AreaPackages, Strategy: models.StrategyParserPlusLLM}
	case packagesPathPattern.MatchString(slashPath):
		return Classification{Area: models.AreaPackages, Strategy: models.StrategyLLMOnly}
	case scriptExts[ext]:
		return Classification{Area: models.AreaAux, Strategy: models.StrategyLLMOnly}
	case configExts[ext]:
		return Classification{Area: models.AreaAux, Strategy: models.StrategyParserOnly}
	default:
		return Classification{Area: models.AreaAux, Strategy: models.StrategyLLMOnly}
	}
}

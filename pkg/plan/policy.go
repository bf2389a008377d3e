package plan

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lineagekit/discovery/pkg/models"
)

// maxReviewBytes is the oversize threshold above which a file is routed to
// human REVIEW instead of being auto-processed.
const maxReviewBytes = 20 * 1024 * 1024

var (
	lockfilePattern = regexp.MustCompile(`(?i)(package-lock\.json|yarn\.lock|Gemfile\.lock|poetry\.lock|Cargo\.lock|composer\.lock|go\.sum)$`)
	testDataPattern = regexp.MustCompile(`(?i)(^|/)(testdata|test_data|fixtures|__snapshots__)(/|$)`)
	binaryExts      = map[string]bool{
		".exe": true, ".dll": true, ".so": true, ".dylib": true, ".bin": true,
		".jar": true, ".war": true, ".class": true, ".pyc": true,
		".zip": true, ".tar": true, ".gz": true, ".7z": true, ".rar": true,
	}

	// forceProcessExts are always PROCESS regardless of what Decide would
	// otherwise say.
	forceProcessExts = map[string]bool{".sql": true, ".dtsx": true, ".dsx": true}
)

// Decide is the policy engine: a pure function of a file's path and size
// returning PROCESS/SKIP/REVIEW and a human-readable reason.
func Decide(path string, sizeBytes int64) (models.RecommendedAction, string) {
	ext := strings.ToLower(filepath.Ext(path))

	if lockfilePattern.MatchString(path) {
		return models.ActionSkip, "Dependency lockfile"
	}
	if testDataPattern.MatchString(filepath.ToSlash(path)) {
		return models.ActionSkip, "Test fixture data"
	}
	if binaryExts[ext] {
		return models.ActionSkip, "Binary artifact"
	}
	if sizeBytes > maxReviewBytes {
		return models.ActionReview, "File exceeds size threshold"
	}
	return models.ActionProcess, "Eligible for processing"
}

// ApplyOverrides forces PROCESS for sql/dtsx/dsx: those files carry
// schema and lineage signal regardless of what Decide's heuristics said.
func ApplyOverrides(path string, action models.RecommendedAction, reason string) (models.RecommendedAction, string) {
	ext := strings.ToLower(filepath.Ext(path))
	if forceProcessExts[ext] && action != models.ActionProcess {
		return models.ActionProcess, "Schema/package file (override)"
	}
	return action, reason
}

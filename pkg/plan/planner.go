// Package plan implements the planner, policy engine, and estimator:
// it walks a localized artifact, classifies every
// file into an (area, strategy) pair, estimates its processing cost, and
// persists the result as an approvable Plan.
package plan

import (
	"context"
	"fmt"

	"github.com/lineagekit/discovery/pkg/models"
	"github.com/lineagekit/discovery/pkg/store"
)

// Planner builds a Plan from a localized artifact root.
type Planner struct {
	store *store.Store
}

// New constructs a Planner against st.
func New(st *store.Store) *Planner {
	return &Planner{store: st}
}

// BuildAndPersist walks rootDir, classifies and estimates every file, and
// persists a ready Plan attached to jobID. It does not decide approval;
// that is the orchestrator's call, since auto-approval of a
// requires_approval=false job happens together with the job's subsequent
// state transition.
func (p *Planner) BuildAndPersist(ctx context.Context, jobID, projectID, rootDir string) (*models.Plan, error) {
	files, err := walkBreadthFirst(rootDir)
	if err != nil {
		return nil, fmt.Errorf("%s: walk artifact: %w", models.ErrPlanner, err)
	}
	if err := hashAll(ctx, files); err != nil {
		return nil, fmt.Errorf("%s: hash artifact: %w", models.ErrPlanner, err)
	}

	areaItems := map[models.AreaName][]*models.PlanItem{}
	var totalCost, totalTime float64

	for _, f := range files {
		action, reason := Decide(f.Path, f.SizeBytes)
		action, reason = ApplyOverrides(f.Path, action, reason)

		unchanged, err := p.store.EvidenceExistsWithHash(ctx, projectID, f.Path, f.Hash)
		if err != nil {
			return nil, fmt.Errorf("%s: evidence lookup: %w", models.ErrPlanner, err)
		}
		if unchanged {
			action, reason = models.ActionSkip, "Unchanged (already processed)"
		}

		class := Classify(f.Path, action)
		est := Estimate(f.SizeBytes, class.Strategy)

		item := &models.PlanItem{
			Path:              f.Path,
			FileHash:          f.Hash,
			SizeBytes:         f.SizeBytes,
			FileType:          fileExt(f.Path),
			Classifier:        reason,
			Strategy:          class.Strategy,
			RecommendedAction: action,
			Enabled:           action != models.ActionReview,
			Estimate:          est,
			Status:            models.ItemPending,
		}
		areaItems[class.Area] = append(areaItems[class.Area], item)
		totalCost += est.CostUSD
		totalTime += est.TimeSeconds
	}

	plan := &models.Plan{
		JobID:        jobID,
		Status:       models.PlanReady,
		Mode:         models.ModeStandard,
		TotalFiles:   len(files),
		TotalCostEst: totalCost,
		TotalTimeEst: totalTime,
	}

	for _, area := range []models.AreaName{models.AreaFoundation, models.AreaPackages, models.AreaDocs, models.AreaAux} {
		items, ok := areaItems[area]
		if !ok {
			continue
		}
		for i, item := range items {
			item.OrderIndex = i
		}
		plan.Areas = append(plan.Areas, &models.PlanArea{
			Name:       area,
			OrderIndex: area.OrderIndex(),
			Items:      items,
		})
	}

	if err := p.store.CreatePlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("%s: persist plan: %w", models.ErrPlanner, err)
	}
	return plan, nil
}

func fileExt(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i+1:]
		}
		if path[i] == '/' {
			break
		}
	}
	return ""
}

package differ

import (
	"fmt"

	"github.com/yairfalse/apidrift/internal/logger"
	"github.com/yairfalse/apidrift/pkg/types"
)

// DifferEngine is the main implementation of the Differ interface
type DifferEngine struct {
	matcher    SurfaceMatcher
	comparer   Comparer
	classifier ChangeClassifier
	log        logger.Logger
}

// NewDifferEngine creates a new differ engine with default components
func NewDifferEngine(log logger.Logger) *DifferEngine {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &DifferEngine{
		matcher:    &KeyMatcher{},
		comparer:   &DefaultComparer{},
		classifier: NewDefaultClassifier(),
		log:        log.WithField("component", "differ"),
	}
}

// Compare loads both API model files and diffs them. An empty baselinePath
// means the package has no baseline and every public export is an addition.
func (d *DifferEngine) Compare(currentPath, baselinePath, packageName string) ([]types.Change, error) {
	current, err := types.LoadAPIModel(currentPath)
	if err != nil {
		return nil, fmt.Errorf("current snapshot for %s: %w", packageName, err)
	}

	var baseline *types.Node
	if baselinePath != "" {
		if baseline, err = types.LoadAPIModel(baselinePath); err != nil {
			return nil, fmt.Errorf("baseline snapshot for %s: %w", packageName, err)
		}
	}

	return d.CompareModels(current, baseline, packageName), nil
}

// CompareModels diffs two parsed trees. The result is grouped removed,
// added, modified and sorted by item within each group.
func (d *DifferEngine) CompareModels(current, baseline *types.Node, packageName string) []types.Change {
	currentSurface := d.matcher.Surface(current)

	var findings []Finding
	if baseline == nil {
		_, added, _ := d.matcher.Match(nil, currentSurface)
		for _, key := range added {
			findings = append(findings, exportFinding(key, types.ActionAdded, nil, currentSurface[key]))
		}
	} else {
		baselineSurface := d.matcher.Surface(baseline)
		matched, added, removed := d.matcher.Match(baselineSurface, currentSurface)

		for _, key := range removed {
			findings = append(findings, exportFinding(key, types.ActionRemoved, baselineSurface[key], nil))
		}
		for _, key := range added {
			findings = append(findings, exportFinding(key, types.ActionAdded, nil, currentSurface[key]))
		}
		for _, key := range matched {
			findings = append(findings, d.comparer.CompareNodes(key, baselineSurface[key], currentSurface[key])...)
		}
	}

	sortFindings(findings)

	changes := make([]types.Change, 0, len(findings))
	for _, f := range findings {
		changes = append(changes, d.toChange(packageName, f))
	}

	d.log.WithFields(map[string]interface{}{
		"package":     packageName,
		"exports":     len(currentSurface),
		"changes":     len(changes),
		"new_package": baseline == nil,
	}).Debug("API diff complete")

	return changes
}

func (d *DifferEngine) toChange(packageName string, f Finding) types.Change {
	changeType, severity := d.classifier.Classify(f)
	change := types.Change{
		Type:        changeType,
		Severity:    severity,
		Category:    types.CategoryFor(f.Family),
		Action:      f.Action,
		ItemName:    f.Item,
		Description: d.classifier.Describe(f),
	}
	if f.Before != nil {
		change.Before = f.Before.SignatureText()
	}
	if f.After != nil {
		change.After = f.After.SignatureText()
	}
	if n := f.node(); n != nil {
		change.Location = n.FileURLPath
	}
	change.ID = types.ChangeID(packageName, change.Category, change.ItemName, change.Action)
	return change
}

func exportFinding(key string, action types.ChangeAction, before, after *types.Node) Finding {
	reason, node := ReasonExportAdded, after
	if action == types.ActionRemoved {
		reason, node = ReasonExportRemoved, before
	}
	return Finding{
		Item:   key,
		Action: action,
		Family: node.Kind.Family(),
		Reason: reason,
		Before: before,
		After:  after,
	}
}

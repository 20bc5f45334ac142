package differ

import (
	"github.com/yairfalse/apidrift/pkg/types"
)

// Differ compares the public API model of a package against its baseline
type Differ interface {
	Compare(currentPath, baselinePath, packageName string) ([]types.Change, error)
	CompareModels(current, baseline *types.Node, packageName string) []types.Change
}

// SurfaceMatcher pairs up the public keys of two API trees
type SurfaceMatcher interface {
	Surface(root *types.Node) map[string]*types.Node
	Match(baseline, current map[string]*types.Node) (matched, added, removed []string)
}

// Comparer finds the differences between two versions of one export
type Comparer interface {
	CompareNodes(key string, baseline, current *types.Node) []Finding
}

// ChangeClassifier assigns compatibility and severity to a finding
type ChangeClassifier interface {
	Classify(f Finding) (types.ChangeType, types.Severity)
	Describe(f Finding) string
}

// Reason records which rule produced a finding
type Reason string

const (
	ReasonExportRemoved       Reason = "export_removed"
	ReasonExportAdded         Reason = "export_added"
	ReasonSignatureBreaking   Reason = "signature_breaking"
	ReasonSignatureCompatible Reason = "signature_compatible"
	ReasonHeaderChanged       Reason = "header_changed"
	ReasonMemberRemoved       Reason = "member_removed"
	ReasonRequiredMemberAdded Reason = "required_member_added"
	ReasonMemberAdded         Reason = "member_added"
	ReasonMemberChanged       Reason = "member_changed"
	ReasonDeclarationChanged  Reason = "declaration_changed"
)

// Finding is one unclassified difference. Item is the export key, extended
// with the member key for member-level findings.
type Finding struct {
	Item   string
	Action types.ChangeAction
	Family types.KindFamily
	Reason Reason
	Before *types.Node
	After  *types.Node
}

// node returns whichever side of the finding is present, preferring the current one
func (f Finding) node() *types.Node {
	if f.After != nil {
		return f.After
	}
	return f.Before
}

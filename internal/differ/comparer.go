package differ

import (
	"sort"

	"github.com/yairfalse/apidrift/pkg/types"
)

// DefaultComparer dispatches on the kind family of an export
type DefaultComparer struct{}

// CompareNodes returns the findings for one key present in both trees.
// Identical declarations produce no findings.
func (c *DefaultComparer) CompareNodes(key string, baseline, current *types.Node) []Finding {
	if baseline.Kind.Family() != current.Kind.Family() {
		return []Finding{modified(key, current, ReasonDeclarationChanged, baseline, current)}
	}

	switch {
	case current.Kind == types.KindNamespace:
		// members are keyed separately, only the header matters here
		if baseline.SignatureText() != current.SignatureText() {
			return []Finding{modified(key, current, ReasonDeclarationChanged, baseline, current)}
		}
		return nil
	case current.Kind.Family() == types.FamilyFunction:
		return c.compareFunction(key, baseline, current)
	case current.Kind.Family() == types.FamilyInterface:
		return c.compareMembers(key, baseline, current, true)
	case current.Kind.Family() == types.FamilyEnum:
		return c.compareMembers(key, baseline, current, false)
	default:
		if baseline.Fingerprint() != current.Fingerprint() {
			return []Finding{modified(key, current, ReasonDeclarationChanged, baseline, current)}
		}
		return nil
	}
}

// compareFunction treats a signature as breaking when callers must now pass
// more arguments or may no longer pass ones they used to
func (c *DefaultComparer) compareFunction(key string, baseline, current *types.Node) []Finding {
	if baseline.SignatureText() == current.SignatureText() && sameParameters(baseline.Parameters, current.Parameters) {
		return nil
	}

	reason := ReasonSignatureCompatible
	if current.RequiredParameters() > baseline.RequiredParameters() ||
		len(current.Parameters) < len(baseline.Parameters) {
		reason = ReasonSignatureBreaking
	}
	return []Finding{modified(key, current, reason, baseline, current)}
}

// compareMembers diffs interface and enum members. Interfaces distinguish
// required from optional additions; enum members have no such notion.
func (c *DefaultComparer) compareMembers(key string, baseline, current *types.Node, requiredAware bool) []Finding {
	family := current.Kind.Family()
	var findings []Finding

	if baseline.SignatureText() != current.SignatureText() {
		findings = append(findings, modified(key, current, ReasonHeaderChanged, baseline, current))
	}

	before := membersByKey(baseline)
	after := membersByKey(current)
	matched, added, removed := (&KeyMatcher{}).Match(before, after)

	for _, k := range removed {
		findings = append(findings, Finding{
			Item:   joinKey(key, k),
			Action: types.ActionRemoved,
			Family: family,
			Reason: ReasonMemberRemoved,
			Before: before[k],
		})
	}

	for _, k := range added {
		reason := ReasonMemberAdded
		if requiredAware && !after[k].IsOptional {
			reason = ReasonRequiredMemberAdded
		}
		findings = append(findings, Finding{
			Item:   joinKey(key, k),
			Action: types.ActionAdded,
			Family: family,
			Reason: reason,
			After:  after[k],
		})
	}

	for _, k := range matched {
		b, a := before[k], after[k]
		if b.Fingerprint() == a.Fingerprint() && b.IsOptional == a.IsOptional {
			continue
		}
		findings = append(findings, Finding{
			Item:   joinKey(key, k),
			Action: types.ActionModified,
			Family: family,
			Reason: ReasonMemberChanged,
			Before: b,
			After:  a,
		})
	}

	return findings
}

func membersByKey(n *types.Node) map[string]*types.Node {
	grouped := make(map[string][]*types.Node)
	for _, m := range n.Members {
		if m == nil || !m.IsPublic() {
			continue
		}
		k := memberKey(m)
		grouped[k] = append(grouped[k], m)
	}

	members := make(map[string]*types.Node, len(grouped))
	for k, nodes := range grouped {
		if len(nodes) == 1 {
			members[k] = nodes[0]
			continue
		}
		for dk, dn := range disambiguate(k, nodes) {
			members[dk] = dn
		}
	}
	return members
}

func sameParameters(a, b []types.Parameter) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func modified(key string, current *types.Node, reason Reason, before, after *types.Node) Finding {
	return Finding{
		Item:   key,
		Action: types.ActionModified,
		Family: current.Kind.Family(),
		Reason: reason,
		Before: before,
		After:  after,
	}
}

// sortFindings orders findings removed, added, modified, each by item
func sortFindings(findings []Finding) {
	rank := map[types.ChangeAction]int{
		types.ActionRemoved:  0,
		types.ActionAdded:    1,
		types.ActionModified: 2,
	}
	sort.SliceStable(findings, func(i, j int) bool {
		if rank[findings[i].Action] != rank[findings[j].Action] {
			return rank[findings[i].Action] < rank[findings[j].Action]
		}
		return findings[i].Item < findings[j].Item
	})
}

package differ

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yairfalse/apidrift/pkg/types"
)

// KeyMatcher implements SurfaceMatcher using dot-joined display-name paths
type KeyMatcher struct{}

// Surface flattens the public API of a tree into a key -> node map.
// Package and entry-point containers add no path segment; namespaces are
// keys themselves and prefix their members. Underscore names are skipped
// along with everything below them.
func (m *KeyMatcher) Surface(root *types.Node) map[string]*types.Node {
	collected := make(map[string][]*types.Node)
	if root != nil {
		if root.Kind.IsContainer() || root.Kind == "" {
			collectMembers(root, "", collected)
		} else if root.IsPublic() {
			collectNode(root, "", collected)
		}
	}

	surface := make(map[string]*types.Node, len(collected))
	for key, nodes := range collected {
		if len(nodes) == 1 {
			surface[key] = nodes[0]
			continue
		}
		for k, n := range disambiguate(key, nodes) {
			surface[k] = n
		}
	}
	return surface
}

func collectMembers(parent *types.Node, prefix string, out map[string][]*types.Node) {
	for _, member := range parent.Members {
		if member == nil || !member.IsPublic() {
			continue
		}
		if member.Kind.IsContainer() {
			collectMembers(member, prefix, out)
			continue
		}
		collectNode(member, prefix, out)
	}
}

func collectNode(n *types.Node, prefix string, out map[string][]*types.Node) {
	key := joinKey(prefix, n.MemberKey())
	out[key] = append(out[key], n)
	if n.Kind == types.KindNamespace {
		collectMembers(n, key, out)
	}
}

// disambiguate splits merged declarations sharing one name (an interface
// and a namespace called Foo, say) by suffixing the kind. Same-kind
// duplicates fall back to fingerprint order.
func disambiguate(key string, nodes []*types.Node) map[string]*types.Node {
	sorted := make([]*types.Node, len(nodes))
	copy(sorted, nodes)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Kind != sorted[j].Kind {
			return sorted[i].Kind < sorted[j].Kind
		}
		return sorted[i].Fingerprint() < sorted[j].Fingerprint()
	})

	result := make(map[string]*types.Node, len(sorted))
	seen := make(map[types.NodeKind]int)
	for _, n := range sorted {
		seen[n.Kind]++
		k := fmt.Sprintf("%s#%s", key, strings.ToLower(string(n.Kind)))
		if seen[n.Kind] > 1 {
			k = fmt.Sprintf("%s#%d", k, seen[n.Kind])
		}
		result[k] = n
	}
	return result
}

// Match splits two surfaces into keys present in both, only in current and
// only in baseline. Each slice is sorted.
func (m *KeyMatcher) Match(baseline, current map[string]*types.Node) (matched, added, removed []string) {
	for key := range current {
		if _, ok := baseline[key]; ok {
			matched = append(matched, key)
		} else {
			added = append(added, key)
		}
	}
	for key := range baseline {
		if _, ok := current[key]; !ok {
			removed = append(removed, key)
		}
	}

	sort.Strings(matched)
	sort.Strings(added)
	sort.Strings(removed)
	return matched, added, removed
}

// memberKey identifies a member inside its parent. Unnamed members such as
// call and index signatures are keyed by kind.
func memberKey(n *types.Node) string {
	if n.Name != "" {
		return n.MemberKey()
	}
	key := "(" + strings.ToLower(string(n.Kind)) + ")"
	if n.OverloadIndex > 1 {
		key = fmt.Sprintf("%s:%d", key, n.OverloadIndex)
	}
	return key
}

func joinKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

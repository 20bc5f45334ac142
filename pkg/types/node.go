package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// NodeKind is the declaration kind reported by the API model extractor
type NodeKind string

const (
	KindPackage           NodeKind = "Package"
	KindEntryPoint        NodeKind = "EntryPoint"
	KindNamespace         NodeKind = "Namespace"
	KindFunction          NodeKind = "Function"
	KindInterface         NodeKind = "Interface"
	KindClass             NodeKind = "Class"
	KindEnum              NodeKind = "Enum"
	KindTypeAlias         NodeKind = "TypeAlias"
	KindVariable          NodeKind = "Variable"
	KindPropertySignature NodeKind = "PropertySignature"
	KindMethodSignature   NodeKind = "MethodSignature"
	KindCallSignature     NodeKind = "CallSignature"
	KindIndexSignature    NodeKind = "IndexSignature"
	KindProperty          NodeKind = "Property"
	KindMethod            NodeKind = "Method"
	KindConstructor       NodeKind = "Constructor"
	KindEnumMember        NodeKind = "EnumMember"
)

// KindFamily groups extractor kinds into the families the differ dispatches on
type KindFamily string

const (
	FamilyFunction  KindFamily = "function"
	FamilyInterface KindFamily = "interface"
	FamilyClass     KindFamily = "class"
	FamilyEnum      KindFamily = "enum"
	FamilyTypeAlias KindFamily = "type-alias"
	FamilyOther     KindFamily = "other"
)

// Family returns the kind family used for classification
func (k NodeKind) Family() KindFamily {
	switch k {
	case KindFunction:
		return FamilyFunction
	case KindInterface:
		return FamilyInterface
	case KindClass:
		return FamilyClass
	case KindEnum:
		return FamilyEnum
	case KindTypeAlias:
		return FamilyTypeAlias
	default:
		return FamilyOther
	}
}

// IsContainer reports whether the kind only groups exports and is not itself part of the surface
func (k NodeKind) IsContainer() bool {
	return k == KindPackage || k == KindEntryPoint
}

// ExcerptToken is one token of a declaration excerpt
type ExcerptToken struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// Parameter describes one function or method parameter
type Parameter struct {
	Name       string `json:"parameterName"`
	IsOptional bool   `json:"isOptional"`
}

// Node is one exported symbol in a package's public API model
type Node struct {
	Kind          NodeKind       `json:"kind"`
	Name          string         `json:"name"`
	ExcerptTokens []ExcerptToken `json:"excerptTokens,omitempty"`
	Members       []*Node        `json:"members,omitempty"`
	Parameters    []Parameter    `json:"parameters,omitempty"`
	IsOptional    bool           `json:"isOptional,omitempty"`
	OverloadIndex int            `json:"overloadIndex,omitempty"`
	FileURLPath   string         `json:"fileUrlPath,omitempty"`
}

// SignatureText returns the excerpt tokens concatenated with whitespace collapsed
func (n *Node) SignatureText() string {
	var sb strings.Builder
	for _, tok := range n.ExcerptTokens {
		sb.WriteString(tok.Text)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// Fingerprint returns the signature text plus the fingerprints of all members.
// Members are sorted so the result does not depend on declaration order.
func (n *Node) Fingerprint() string {
	if len(n.Members) == 0 {
		return n.SignatureText()
	}

	parts := make([]string, 0, len(n.Members))
	for _, m := range n.Members {
		parts = append(parts, m.Fingerprint())
	}
	sort.Strings(parts)

	return n.SignatureText() + " {" + strings.Join(parts, "; ") + "}"
}

// RequiredParameters counts parameters that are not optional
func (n *Node) RequiredParameters() int {
	count := 0
	for _, p := range n.Parameters {
		if !p.IsOptional {
			count++
		}
	}
	return count
}

// IsPublic reports whether the node belongs to the public surface
func (n *Node) IsPublic() bool {
	return !strings.HasPrefix(n.Name, "_")
}

// MemberKey returns the key identifying the node among its siblings
func (n *Node) MemberKey() string {
	if n.OverloadIndex > 1 {
		return fmt.Sprintf("%s:%d", n.Name, n.OverloadIndex)
	}
	return n.Name
}

// Validate checks the node tree for missing kinds
func (n *Node) Validate() error {
	if n.Kind == "" {
		return errors.New("node kind is required")
	}
	if !n.Kind.IsContainer() && strings.TrimSpace(n.Name) == "" && n.Kind != KindCallSignature &&
		n.Kind != KindIndexSignature && n.Kind != KindConstructor {
		return fmt.Errorf("%s node has no name", n.Kind)
	}
	for _, m := range n.Members {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%s: %w", n.Name, err)
		}
	}
	return nil
}

// LoadAPIModel reads a serialized API model tree from disk
func LoadAPIModel(path string) (*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read API model %s: %w", path, err)
	}

	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse API model %s: %w", path, err)
	}
	if err := root.Validate(); err != nil {
		return nil, fmt.Errorf("invalid API model %s: %w", path, err)
	}

	return &root, nil
}

package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ChangeType is the compatibility class of a detected change
type ChangeType string

const (
	ChangeBreaking    ChangeType = "breaking"
	ChangeNonBreaking ChangeType = "non-breaking"
	ChangeAddition    ChangeType = "addition"
)

// Severity is the semver component a change requires
type Severity string

const (
	SeverityMajor Severity = "major"
	SeverityMinor Severity = "minor"
	SeverityPatch Severity = "patch"
)

// ChangeCategory names the kind of API item that changed
type ChangeCategory string

const (
	CategoryFunction  ChangeCategory = "function"
	CategoryInterface ChangeCategory = "interface"
	CategoryClass     ChangeCategory = "class"
	CategoryEnum      ChangeCategory = "enum"
	CategoryType      ChangeCategory = "type"
	CategoryExport    ChangeCategory = "export"
)

// CategoryFor maps a kind family onto the reported change category
func CategoryFor(family KindFamily) ChangeCategory {
	switch family {
	case FamilyFunction:
		return CategoryFunction
	case FamilyInterface:
		return CategoryInterface
	case FamilyClass:
		return CategoryClass
	case FamilyEnum:
		return CategoryEnum
	case FamilyTypeAlias:
		return CategoryType
	default:
		return CategoryExport
	}
}

// ChangeAction is what happened to the item
type ChangeAction string

const (
	ActionAdded    ChangeAction = "added"
	ActionRemoved  ChangeAction = "removed"
	ActionModified ChangeAction = "modified"
)

// Change is one classified difference between two API models
type Change struct {
	ID                string         `json:"id"`
	Type              ChangeType     `json:"type"`
	Severity          Severity       `json:"severity"`
	Category          ChangeCategory `json:"category"`
	Action            ChangeAction   `json:"action"`
	ItemName          string         `json:"itemName"`
	Description       string         `json:"description"`
	Before            string         `json:"beforeSnippet,omitempty"`
	After             string         `json:"afterSnippet,omitempty"`
	Location          string         `json:"location,omitempty"`
	IsSuppressed      bool           `json:"isSuppressed"`
	SuppressionReason string         `json:"suppressionReason,omitempty"`
}

// IsBreaking reports whether the change is classified as breaking
func (c *Change) IsBreaking() bool {
	return c.Type == ChangeBreaking
}

// Gating reports whether the change counts toward failing CI
func (c *Change) Gating() bool {
	return !c.IsSuppressed && c.Severity == SeverityMajor
}

// ChangeID derives the stable identifier for a change. It depends only on
// the package, category, item and action so re-runs and suppression rules agree.
func ChangeID(packageName string, category ChangeCategory, itemName string, action ChangeAction) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s:%s", packageName, category, itemName, action)))
	return hex.EncodeToString(sum[:])[:16]
}

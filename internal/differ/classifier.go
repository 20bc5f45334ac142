package differ

import (
	"fmt"
	"strings"

	"github.com/yairfalse/apidrift/pkg/types"
)

// DefaultClassifier maps finding reasons onto change types and severities
type DefaultClassifier struct {
	rules map[Reason]ClassificationRule
}

// ClassificationRule defines how to classify a finding
type ClassificationRule struct {
	Type     types.ChangeType
	Severity types.Severity
	Template string
}

// NewDefaultClassifier creates a classifier with default rules
func NewDefaultClassifier() *DefaultClassifier {
	classifier := &DefaultClassifier{
		rules: make(map[Reason]ClassificationRule),
	}

	classifier.initializeRules()
	return classifier
}

func (c *DefaultClassifier) initializeRules() {
	breaking := func(template string) ClassificationRule {
		return ClassificationRule{Type: types.ChangeBreaking, Severity: types.SeverityMajor, Template: template}
	}

	c.rules[ReasonExportRemoved] = breaking("%s '%s' was removed")
	c.rules[ReasonSignatureBreaking] = breaking("%s '%s' changed signature incompatibly")
	c.rules[ReasonHeaderChanged] = breaking("%s '%s' changed its declaration header")
	c.rules[ReasonMemberRemoved] = breaking("%s member '%s' was removed")
	c.rules[ReasonRequiredMemberAdded] = breaking("Required %s member '%s' was added")
	c.rules[ReasonMemberChanged] = breaking("%s member '%s' was changed")
	c.rules[ReasonDeclarationChanged] = breaking("%s '%s' was changed")

	c.rules[ReasonExportAdded] = ClassificationRule{
		Type:     types.ChangeAddition,
		Severity: types.SeverityMinor,
		Template: "%s '%s' was added",
	}
	c.rules[ReasonMemberAdded] = ClassificationRule{
		Type:     types.ChangeAddition,
		Severity: types.SeverityMinor,
		Template: "%s member '%s' was added",
	}
	c.rules[ReasonSignatureCompatible] = ClassificationRule{
		Type:     types.ChangeNonBreaking,
		Severity: types.SeverityMinor,
		Template: "%s '%s' changed signature compatibly",
	}
}

// Classify returns the change type and severity for a finding. Unknown
// reasons are treated as breaking.
func (c *DefaultClassifier) Classify(f Finding) (types.ChangeType, types.Severity) {
	if rule, ok := c.rules[f.Reason]; ok {
		return rule.Type, rule.Severity
	}
	return types.ChangeBreaking, types.SeverityMajor
}

// Describe renders a one-line human description of a finding
func (c *DefaultClassifier) Describe(f Finding) string {
	label := kindLabel(f)
	template := "%s '%s' was changed"
	if rule, ok := c.rules[f.Reason]; ok {
		template = rule.Template
	}

	desc := fmt.Sprintf(template, label, f.Item)
	if f.Reason == ReasonSignatureBreaking || f.Reason == ReasonSignatureCompatible {
		desc += fmt.Sprintf(" (parameters %d->%d, required %d->%d)",
			len(f.Before.Parameters), len(f.After.Parameters),
			f.Before.RequiredParameters(), f.After.RequiredParameters())
	}
	// sentence case for templates that start with the label
	return strings.ToUpper(desc[:1]) + desc[1:]
}

func kindLabel(f Finding) string {
	switch f.Family {
	case types.FamilyTypeAlias:
		return "type alias"
	case types.FamilyOther:
		if n := f.node(); n != nil && n.Kind != "" {
			return strings.ToLower(string(n.Kind))
		}
		return "export"
	default:
		return string(f.Family)
	}
}

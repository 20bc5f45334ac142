package suppression

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yairfalse/apidrift/internal/logger"
	"github.com/yairfalse/apidrift/pkg/types"
)

// fileRule is the on-disk shape of a rule. Expires stays a string so date
// only values, RFC 3339 timestamps and quoted JSON strings all parse the
// same way.
type fileRule struct {
	Package  string `yaml:"package"`
	ChangeID string `yaml:"changeId"`
	Reason   string `yaml:"reason"`
	Expires  string `yaml:"expires"`
}

type file struct {
	Suppressions []fileRule `yaml:"suppressions"`
}

// LoadFile reads suppression rules from a YAML or JSON file. The file is
// either a list of rules or a mapping with a "suppressions" list. An empty
// path yields no rules.
func LoadFile(path string) ([]types.SuppressionRule, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suppression file: %w", err)
	}

	raw, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse suppression file %s: %w", path, err)
	}

	rules := make([]types.SuppressionRule, 0, len(raw))
	for i, r := range raw {
		rule, err := r.toRule()
		if err != nil {
			return nil, fmt.Errorf("suppression %d in %s: %w", i+1, path, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parse(data []byte) ([]fileRule, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' || trimmed[0] == '-' {
		var list []fileRule
		if err := yaml.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var f file
	if err := yaml.Unmarshal(trimmed, &f); err != nil {
		return nil, err
	}
	return f.Suppressions, nil
}

func (r fileRule) toRule() (types.SuppressionRule, error) {
	rule := types.SuppressionRule{
		Package:  strings.TrimSpace(r.Package),
		ChangeID: strings.TrimSpace(r.ChangeID),
		Reason:   strings.TrimSpace(r.Reason),
	}
	if rule.Package == "" {
		return rule, fmt.Errorf("package is required")
	}
	if rule.ChangeID == "" {
		return rule, fmt.Errorf("changeId is required")
	}

	if exp := strings.TrimSpace(r.Expires); exp != "" {
		t, err := parseExpiry(exp)
		if err != nil {
			return rule, err
		}
		rule.Expires = &t
	}
	return rule, nil
}

func parseExpiry(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid expires %q (use YYYY-MM-DD or RFC 3339)", value)
}

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides the clock used for expiry checks
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger used when suppressions are applied
func WithLogger(log logger.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// Manager answers whether a change id of a package is suppressed
type Manager struct {
	rules map[string]types.SuppressionRule
	order []string
	now   func() time.Time
	log   logger.Logger
}

// NewManager indexes rules by package and change id. A later rule for the
// same pair replaces an earlier one.
func NewManager(rules []types.SuppressionRule, opts ...Option) *Manager {
	m := &Manager{
		rules: make(map[string]types.SuppressionRule, len(rules)),
		now:   time.Now,
		log:   logger.NewDiscard(),
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, r := range rules {
		k := ruleKey(r.Package, r.ChangeID)
		if _, ok := m.rules[k]; !ok {
			m.order = append(m.order, k)
		}
		m.rules[k] = r
	}
	return m
}

// IsSuppressed returns the matching unexpired rule, or nil
func (m *Manager) IsSuppressed(packageName, changeID string) *types.SuppressionRule {
	r, ok := m.rules[ruleKey(packageName, changeID)]
	if !ok || !r.ActiveAt(m.now()) {
		return nil
	}
	return &r
}

// Apply marks suppressed changes in place and returns how many matched.
// Type and severity are left untouched.
func (m *Manager) Apply(packageName string, changes []types.Change) int {
	applied := 0
	for i := range changes {
		rule := m.IsSuppressed(packageName, changes[i].ID)
		if rule == nil {
			continue
		}
		changes[i].IsSuppressed = true
		changes[i].SuppressionReason = rule.Reason
		applied++

		m.log.WithFields(map[string]interface{}{
			"package":   packageName,
			"change_id": changes[i].ID,
			"item":      changes[i].ItemName,
		}).Debug("Change suppressed: " + rule.Reason)
	}
	return applied
}

// Active lists unexpired rules sorted by package then change id
func (m *Manager) Active() []types.SuppressionRule {
	now := m.now()
	active := make([]types.SuppressionRule, 0, len(m.order))
	for _, k := range m.order {
		if r := m.rules[k]; r.ActiveAt(now) {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Package != active[j].Package {
			return active[i].Package < active[j].Package
		}
		return active[i].ChangeID < active[j].ChangeID
	})
	return active
}

func ruleKey(packageName, changeID string) string {
	return packageName + "\x00" + changeID
}

package differ

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/apidrift/pkg/types"
)

func excerpt(text string) []types.ExcerptToken {
	return []types.ExcerptToken{{Kind: "Content", Text: text}}
}

func pkg(members ...*types.Node) *types.Node {
	return &types.Node{Kind: types.KindPackage, Name: "@acme/widgets", Members: members}
}

func fn(name, sig string, params ...types.Parameter) *types.Node {
	return &types.Node{Kind: types.KindFunction, Name: name, ExcerptTokens: excerpt(sig), Parameters: params, FileURLPath: "src/" + name + ".ts"}
}

func param(name string, optional bool) types.Parameter {
	return types.Parameter{Name: name, IsOptional: optional}
}

func overload(n *types.Node, index int) *types.Node {
	n.OverloadIndex = index
	return n
}

func iface(name, header string, members ...*types.Node) *types.Node {
	return &types.Node{Kind: types.KindInterface, Name: name, ExcerptTokens: excerpt(header), Members: members}
}

func prop(name string, optional bool) *types.Node {
	sig := name + ": string;"
	if optional {
		sig = name + "?: string;"
	}
	return &types.Node{Kind: types.KindPropertySignature, Name: name, ExcerptTokens: excerpt(sig), IsOptional: optional}
}

func withSig(n *types.Node, sig string) *types.Node {
	n.ExcerptTokens = excerpt(sig)
	return n
}

func enum(name string, members ...*types.Node) *types.Node {
	return &types.Node{Kind: types.KindEnum, Name: name, ExcerptTokens: excerpt("export declare enum " + name), Members: members}
}

func enumMember(name, sig string) *types.Node {
	return &types.Node{Kind: types.KindEnumMember, Name: name, ExcerptTokens: excerpt(sig)}
}

func class(name string, members ...*types.Node) *types.Node {
	return &types.Node{Kind: types.KindClass, Name: name, ExcerptTokens: excerpt("export declare class " + name), Members: members}
}

func method(name, sig string) *types.Node {
	return &types.Node{Kind: types.KindMethod, Name: name, ExcerptTokens: excerpt(sig)}
}

func ns(name string, members ...*types.Node) *types.Node {
	return &types.Node{Kind: types.KindNamespace, Name: name, ExcerptTokens: excerpt("export declare namespace " + name), Members: members}
}

func variable(name, sig string) *types.Node {
	return &types.Node{Kind: types.KindVariable, Name: name, ExcerptTokens: excerpt(sig)}
}

func baselineModel() *types.Node {
	return pkg(
		fn("format", "export declare function format(value: number): string;", param("value", false)),
		fn("legacyFormat", "export declare function legacyFormat(): string;"),
		iface("Options", "export interface Options", prop("locale", true)),
		enum("Unit", enumMember("Px", "Px = \"px\"")),
		class("Widget", method("render", "render(): void;")),
	)
}

func currentModel() *types.Node {
	return pkg(
		fn("format", "export declare function format(value: number, unit: Unit): string;",
			param("value", false), param("unit", false)),
		iface("Options", "export interface Options", prop("locale", true), prop("timezone", true)),
		enum("Unit", enumMember("Px", "Px = \"px\""), enumMember("Rem", "Rem = \"rem\"")),
		class("Widget", method("render", "render(): void;")),
		variable("VERSION", "VERSION: string"),
	)
}

func TestDifferEngine_CompareModels(t *testing.T) {
	engine := NewDifferEngine(nil)

	changes := engine.CompareModels(currentModel(), baselineModel(), "@acme/widgets")

	type summary struct {
		Item   string
		Action types.ChangeAction
		Type   types.ChangeType
	}
	got := make([]summary, 0, len(changes))
	for _, c := range changes {
		got = append(got, summary{c.ItemName, c.Action, c.Type})
	}

	assert.Equal(t, []summary{
		{"legacyFormat", types.ActionRemoved, types.ChangeBreaking},
		{"Options.timezone", types.ActionAdded, types.ChangeAddition},
		{"Unit.Rem", types.ActionAdded, types.ChangeAddition},
		{"VERSION", types.ActionAdded, types.ChangeAddition},
		{"format", types.ActionModified, types.ChangeBreaking},
	}, got)
}

func TestDifferEngine_ChangeFields(t *testing.T) {
	changes := NewDifferEngine(nil).CompareModels(currentModel(), baselineModel(), "@acme/widgets")

	var format types.Change
	for _, c := range changes {
		if c.ItemName == "format" {
			format = c
		}
	}

	assert.Equal(t, types.SeverityMajor, format.Severity)
	assert.Equal(t, types.CategoryFunction, format.Category)
	assert.Equal(t, "export declare function format(value: number): string;", format.Before)
	assert.Equal(t, "export declare function format(value: number, unit: Unit): string;", format.After)
	assert.Equal(t, "src/format.ts", format.Location)
	assert.Equal(t, types.ChangeID("@acme/widgets", types.CategoryFunction, "format", types.ActionModified), format.ID)
	assert.False(t, format.IsSuppressed)
}

func TestDifferEngine_Deterministic(t *testing.T) {
	engine := NewDifferEngine(nil)

	first := engine.CompareModels(currentModel(), baselineModel(), "@acme/widgets")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, engine.CompareModels(currentModel(), baselineModel(), "@acme/widgets"))
	}
}

func TestDifferEngine_IdenticalTreesHaveNoChanges(t *testing.T) {
	changes := NewDifferEngine(nil).CompareModels(baselineModel(), baselineModel(), "@acme/widgets")
	assert.Empty(t, changes)
}

func TestDifferEngine_NewPackage(t *testing.T) {
	changes := NewDifferEngine(nil).CompareModels(currentModel(), nil, "@acme/widgets")

	require.Len(t, changes, 5)
	for _, c := range changes {
		assert.Equal(t, types.ChangeAddition, c.Type)
		assert.Equal(t, types.SeverityMinor, c.Severity)
		assert.Equal(t, types.ActionAdded, c.Action)
	}
}

func TestDifferEngine_ReAddedExportGetsNewID(t *testing.T) {
	engine := NewDifferEngine(nil)
	with := pkg(fn("helper", "export declare function helper(): void;"))
	without := pkg()

	removed := engine.CompareModels(without, with, "@acme/widgets")
	readded := engine.CompareModels(with, without, "@acme/widgets")

	require.Len(t, removed, 1)
	require.Len(t, readded, 1)
	assert.NotEqual(t, removed[0].ID, readded[0].ID)
	assert.Equal(t, types.ChangeID("@acme/widgets", types.CategoryFunction, "helper", types.ActionRemoved), removed[0].ID)
}

func TestDifferEngine_Compare(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, tree *types.Node) string {
		data, err := json.Marshal(tree)
		require.NoError(t, err)
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, data, 0644))
		return p
	}
	currentPath := write("current.api.json", currentModel())
	baselinePath := write("baseline.api.json", baselineModel())

	engine := NewDifferEngine(nil)

	t.Run("with baseline", func(t *testing.T) {
		changes, err := engine.Compare(currentPath, baselinePath, "@acme/widgets")
		require.NoError(t, err)
		assert.Len(t, changes, 5)
	})

	t.Run("without baseline", func(t *testing.T) {
		changes, err := engine.Compare(currentPath, "", "@acme/widgets")
		require.NoError(t, err)
		assert.Len(t, changes, 5)
	})

	t.Run("unreadable current snapshot", func(t *testing.T) {
		_, err := engine.Compare(filepath.Join(dir, "missing.api.json"), baselinePath, "@acme/widgets")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "current snapshot for @acme/widgets")
	})

	t.Run("malformed baseline", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.api.json")
		require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0644))
		_, err := engine.Compare(currentPath, bad, "@acme/widgets")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "baseline snapshot")
	})
}

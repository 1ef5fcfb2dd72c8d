package scoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-hq/ABMX/crm"
)

func TestDefaultRulesCompile(t *testing.T) {
	rs, err := DefaultRules()
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseScore, rs.BaseScore)
	assert.Contains(t, rs.Tables, "company")
	assert.Contains(t, rs.Tables, "contact")

	weights := rs.Weights()
	assert.Equal(t, 0.2, weights["hiring"])
	assert.Equal(t, 0.2, weights["funding"])
	assert.Equal(t, 0.15, weights["engaged"])
}

func TestCompileRejectsBadDocuments(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"no tables", `base_score: 0.5`},
		{"base out of range", "base_score: 1.5\ntables:\n  company:\n    - name: a\n      weight: 0.1\n      when: 'true'"},
		{"weight out of range", "tables:\n  company:\n    - name: a\n      weight: 2.0\n      when: 'true'"},
		{"missing name", "tables:\n  company:\n    - weight: 0.1\n      when: 'true'"},
		{"duplicate name", "tables:\n  company:\n    - name: a\n      weight: 0.1\n      when: 'true'\n    - name: a\n      weight: 0.2\n      when: 'true'"},
		{"missing predicate", "tables:\n  company:\n    - name: a\n      weight: 0.1"},
		{"unknown component", "tables:\n  company:\n    - name: a\n      weight: 0.1\n      component: seo\n      when: 'true'"},
		{"predicate does not compile", "tables:\n  company:\n    - name: a\n      weight: 0.1\n      when: 'has(('"},
		{"not yaml", `{{{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadRulesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	doc := "base_score: 0.3\ntables:\n  company:\n    - name: hiring\n      weight: 0.25\n      when: 'has(e.hiring) && e.hiring == true'"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	rs, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, 0.3, rs.BaseScore)
	assert.Equal(t, 0.25, rs.Weights()["hiring"])
}

func TestLoadRulesMissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestTableFor(t *testing.T) {
	rs, err := DefaultRules()
	require.NoError(t, err)

	companyTable, known := rs.TableFor(crm.TypeCompany)
	require.True(t, known)
	require.NotEmpty(t, companyTable)

	// Deals have no table of their own and share the company rules.
	dealTable, known := rs.TableFor(crm.TypeDeal)
	assert.True(t, known)
	assert.Equal(t, len(companyTable), len(dealTable))

	_, known = rs.TableFor(crm.TypeUnknown)
	assert.False(t, known)
	_, known = rs.TableFor(crm.EntityType("ticket"))
	assert.False(t, known)
}

func TestWithBaseScoreLeavesOriginal(t *testing.T) {
	rs, err := DefaultRules()
	require.NoError(t, err)

	low := rs.WithBaseScore(0.2)
	assert.Equal(t, 0.2, low.BaseScore)
	assert.Equal(t, DefaultBaseScore, rs.BaseScore)
}

func TestSetWeightCrossesTables(t *testing.T) {
	doc := "tables:\n  company:\n    - name: shared\n      weight: 0.1\n      when: 'true'\n  contact:\n    - name: shared\n      weight: 0.1\n      when: 'true'"
	rs, err := Compile([]byte(doc))
	require.NoError(t, err)

	next := rs.clone()
	require.True(t, next.setWeight("shared", 0.3))
	for _, table := range []string{"company", "contact"} {
		assert.Equal(t, 0.3, next.Tables[table][0].Weight, table)
		assert.Equal(t, 0.1, rs.Tables[table][0].Weight, table)
	}
	assert.False(t, next.setWeight("absent", 0.5))
}

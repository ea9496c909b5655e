package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Personas(t *testing.T) {
	t.Parallel()

	c := Default()
	personas := c.Personas()
	require.Len(t, personas, 14)

	coord, ok := c.Persona("coordinator")
	require.True(t, ok)
	assert.Equal(t, "协调员", coord.Name)
	assert.Equal(t, RoleAssistant, coord.Role)
	assert.Contains(t, coord.Capabilities, "coordination")
	assert.Contains(t, coord.Capabilities, "project_management")
	assert.NotEmpty(t, coord.Instructions)

	proxy, ok := c.Persona("user_proxy")
	require.True(t, ok)
	assert.Equal(t, RoleUserProxy, proxy.Role)

	_, ok = c.Persona("astronaut")
	assert.False(t, ok)
}

func TestDefault_Templates(t *testing.T) {
	t.Parallel()

	c := Default()
	templates := c.Templates()
	require.Len(t, templates, 8)

	want := map[string]string{
		"product_development":  "sequential",
		"research_project":     "sequential",
		"business_analysis":    "group_chat",
		"software_development": "round_robin",
		"marketing_campaign":   "group_chat",
		"legal_compliance":     "sequential",
		"content_creation":     "sequential",
		"user_experience":      "group_chat",
	}
	for _, tpl := range templates {
		assert.Equal(t, want[tpl.ID], tpl.Workflow, tpl.ID)
		assert.NotEmpty(t, tpl.Phases, tpl.ID)
		for _, m := range tpl.Members {
			_, ok := c.Persona(m.Type)
			assert.True(t, ok, "template %s references unknown persona %s", tpl.ID, m.Type)
		}
	}

	pd, ok := c.Template("product_development")
	require.True(t, ok)
	assert.Equal(t, "2-4 周", pd.EstimatedTime)
	assert.Equal(t, []string{"产品", "开发", "团队协作"}, pd.Tags)
	assert.Equal(t, Phase{Phase: "requirements", Agent: "product_manager", Description: "需求分析与产品规划"}, pd.Phases[0])
}

func TestPersona_ReturnsCopy(t *testing.T) {
	t.Parallel()

	c := NewStatic([]Persona{{TypeID: "a", Name: "A", Capabilities: []string{"x"}}}, nil)
	p, _ := c.Persona("a")
	p.Capabilities[0] = "mutated"

	again, _ := c.Persona("a")
	assert.Equal(t, "x", again.Capabilities[0])
}

func TestParse_RejectsInvalid(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("- name: nameless-type"), []byte("[]"))
	assert.Error(t, err)

	_, err = Parse([]byte("[]"), []byte("- id: empty"))
	assert.Error(t, err)

	_, err = Parse([]byte("{{"), []byte("[]"))
	assert.Error(t, err)
}

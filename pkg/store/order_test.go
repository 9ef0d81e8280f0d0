package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDependencyGraph(t *testing.T) {
	s := newFixtureStore(t)

	g, err := s.DependencyGraph()
	require.NoError(t, err)

	assert.Equal(t, s.TypeNames(), g.Nodes)
	assert.Contains(t, g.Edges, DependencyEdge{From: "vpcs", To: "vsi", Field: "subnets", Many: true})
	assert.Contains(t, g.Edges, DependencyEdge{From: "vpn_gateways", To: "tunnels", Field: "gateway"})

	order := g.Order()
	require.Len(t, order, len(g.Nodes))
	pos := make(map[string]int)
	for i, name := range order {
		pos[name] = i
	}
	for _, e := range g.Edges {
		assert.Less(t, pos[e.From], pos[rootName(e.To)], "%s -> %s", e.From, e.To)
	}
	assert.Equal(t, []string{"vlans", "vpcs", "power", "cbr_zones"}, g.Levels[0])
}

func TestDependencyGraph_Cycle(t *testing.T) {
	s := New()
	require.NoError(t, s.Register("a", FieldDefinition{References: []Reference{{Field: "b", Target: "b"}}}))
	require.NoError(t, s.Register("b", FieldDefinition{References: []Reference{{Field: "a", Target: "a"}}}))

	_, err := s.DependencyGraph()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDependencyCycle)
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestOrderDiagnostics(t *testing.T) {
	s := New()
	require.NoError(t, s.Register("vsi", FieldDefinition{References: []Reference{
		{Field: "vpc", Target: "vpcs"},
		{Field: "image", Target: "images"},
	}}))
	require.NoError(t, s.Register("vpcs", FieldDefinition{}))

	diags := s.OrderDiagnostics()
	require.Len(t, diags, 2)
	assert.Equal(t, "vpc", diags[0].Field)
	assert.Contains(t, diags[0].Message, "registered after vsi")
	assert.Equal(t, "images", diags[1].Target)

	assert.Empty(t, newFixtureStore(t).OrderDiagnostics())
}

func TestDependencyGraph_ToDOT(t *testing.T) {
	s := newFixtureStore(t)
	g, err := s.DependencyGraph()
	require.NoError(t, err)

	dot := g.ToDOT()
	assert.True(t, strings.HasPrefix(dot, "digraph EntityTypes {"))
	assert.Contains(t, dot, `"power" -> "power_instances" [label="workspace", style=solid];`)
	assert.Contains(t, dot, `"vpcs" -> "transit_gateways" [label="vpcs", style=dashed];`)
	assert.Contains(t, dot, "cluster_level_0")
}

func TestDescribeEntityType(t *testing.T) {
	s := newFixtureStore(t)

	desc, err := s.DescribeEntityType("vsi")
	require.NoError(t, err)
	assert.Equal(t, "vsi", desc.Name)
	assert.Equal(t, "name", desc.KeyField)
	assert.Equal(t, KindCollection, desc.Kind)
	assert.Equal(t, []Entity{}, desc.Default)
	assert.Equal(t, []string{"name", "vpc"}, desc.Required)
	require.Len(t, desc.Fields, 4)

	subnets := desc.Fields[2]
	assert.Equal(t, "subnets", subnets.Name)
	assert.Equal(t, FieldMultiSelect, subnets.Type)
	assert.Equal(t, "vpcs.subnets", subnets.Reference)
	assert.True(t, subnets.Many)
	assert.True(t, subnets.Dynamic)

	vlans, err := s.DescribeEntityType("vlans")
	require.NoError(t, err)
	assert.Equal(t, []string{"PUBLIC", "PRIVATE"}, vlans.Fields[1].Values)

	vpcs, err := s.DescribeEntityType("vpcs")
	require.NoError(t, err)
	require.Len(t, vpcs.Subs, 2)
	assert.Equal(t, "vpcs.subnets", vpcs.Subs[0].Name)
	assert.Equal(t, "vpc", vpcs.Subs[0].ParentField)

	_, err = s.DescribeEntityType("nope")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestDescribeAllEntityTypes(t *testing.T) {
	s := newFixtureStore(t)
	all := s.DescribeAllEntityTypes()

	names := make([]string, 0, len(all))
	for _, d := range all {
		names = append(names, d.Name)
	}
	assert.Equal(t, s.TypeNames(), names)

	before := docJSON(t, s)
	s.DescribeAllEntityTypes()
	assert.Equal(t, before, docJSON(t, s))
}

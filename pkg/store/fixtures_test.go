package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// newFixtureStore registers a small network catalog:
//
//	vlans
//	vpcs (subnets, acls)
//	vpn_gateways
//	tunnels        keyed by gateway, pruned with it
//	transit_gateways
//	power          (workspaces)
//	power_instances
//	vsi
//	cbr_zones
func newFixtureStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s := New(opts...)

	require.NoError(t, s.Register("vlans", FieldDefinition{
		Fields: []*FieldSpec{
			{Name: "name", Type: FieldText, Invalid: NameInvalid("name")},
			{Name: "type", Type: FieldSelect, Values: []string{"PUBLIC", "PRIVATE"}},
		},
		Required: []string{"name"},
	}))

	require.NoError(t, s.Register("vpcs", FieldDefinition{
		Fields: []*FieldSpec{
			{Name: "name", Type: FieldText, Invalid: NameInvalid("name")},
		},
		Required: []string{"name"},
		SubComponents: []*FieldDefinition{
			{
				Name:        "subnets",
				ParentField: "vpc",
				Fields: []*FieldSpec{
					{Name: "name", Type: FieldText, Invalid: NameInvalid("name")},
					{Name: "cidr", Type: FieldText, Invalid: EmptyString("cidr")},
				},
				Required: []string{"name", "cidr"},
			},
			{
				Name:        "acls",
				ParentField: "vpc",
			},
		},
	}))

	require.NoError(t, s.Register("vpn_gateways", FieldDefinition{
		References: []Reference{{Field: "vpc", Target: "vpcs"}},
	}))

	require.NoError(t, s.Register("tunnels", FieldDefinition{
		KeyField:   "gateway",
		References: []Reference{{Field: "gateway", Target: "vpn_gateways", OnMissing: MissingPrune}},
	}))

	require.NoError(t, s.Register("transit_gateways", FieldDefinition{
		References: []Reference{{Field: "vpcs", Target: "vpcs", Many: true}},
	}))

	require.NoError(t, s.Register("power", FieldDefinition{}))

	require.NoError(t, s.Register("power_instances", FieldDefinition{
		References: []Reference{{Field: "workspace", Target: "power"}},
		Mirrors:    []Mirror{{Field: "zone", From: "workspace", Source: "zone"}},
	}))

	require.NoError(t, s.Register("vsi", FieldDefinition{
		Fields: []*FieldSpec{
			{Name: "name", Type: FieldText, Invalid: NameInvalid("name")},
			{Name: "vpc", Type: FieldSelect, Groups: KeysOf("vpcs"), Invalid: ParentMissing("vpc", "vpcs")},
			{Name: "subnets", Type: FieldMultiSelect, Groups: KeysUnder("vpcs.subnets", "vpc")},
			{Name: "public_vlan", Type: FieldSelect, Optional: true},
		},
		Required: []string{"name", "vpc"},
		References: []Reference{
			{Field: "vpc", Target: "vpcs"},
			{Field: "subnets", Target: "vpcs.subnets", Many: true, Scope: "vpc"},
			{Field: "public_vlan", Target: "vlans"},
		},
	}))

	require.NoError(t, s.Register("cbr_zones", FieldDefinition{}))

	return s
}

func find(t *testing.T, s *Store, typeName, parentKey, key string) Entity {
	t.Helper()
	e := s.View().Find(typeName, parentKey, key)
	require.NotNil(t, e, "%s %q not found", typeName, key)
	return e
}

func docJSON(t *testing.T, s *Store) string {
	t.Helper()
	data, err := s.JSON()
	require.NoError(t, err)
	return string(data)
}

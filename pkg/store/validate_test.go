package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidationStore(t *testing.T) *Store {
	t.Helper()
	s := newFixtureStore(t)
	require.NoError(t, s.Register("ssh_keys", FieldDefinition{
		Fields: []*FieldSpec{
			{Name: "name", Type: FieldText, Invalid: NameInvalid("name"), InvalidText: NameInvalidText("name")},
			{Name: "use_data", Type: FieldToggle, Default: false},
			{
				Name:     "public_key",
				Type:     FieldPublicKey,
				Invalid:  EmptyString("public_key"),
				HideWhen: FieldEquals("use_data", true),
			},
			{Name: "resource_group", Type: FieldSelect, Optional: true, Groups: KeysOf("resource_groups")},
		},
		Required: []string{"name", "public_key"},
	}))
	return s
}

func TestShouldDisableSave(t *testing.T) {
	s := newValidationStore(t)
	s.MustType("ssh_keys").Create(Entity{"name": "taken", "public_key": "ssh-rsa AAAA"}, Options{})
	keys := s.MustType("ssh_keys")

	tests := []struct {
		name      string
		candidate Entity
		original  Entity
		want      bool
	}{
		{
			name:      "valid",
			candidate: Entity{"name": "dev", "public_key": "ssh-rsa AAAA"},
			want:      false,
		},
		{
			name:      "missing key material",
			candidate: Entity{"name": "dev"},
			want:      true,
		},
		{
			name:      "hidden required field is skipped",
			candidate: Entity{"name": "dev", "use_data": true},
			want:      false,
		},
		{
			name:      "bad name",
			candidate: Entity{"name": "Dev_Key", "public_key": "ssh-rsa AAAA"},
			want:      true,
		},
		{
			name:      "duplicate name",
			candidate: Entity{"name": "taken", "public_key": "ssh-rsa BBBB"},
			want:      true,
		},
		{
			name:      "editing keeps own name",
			candidate: Entity{"name": "taken", "public_key": "ssh-rsa BBBB"},
			original:  Entity{"name": "taken"},
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := docJSON(t, s)
			got := keys.ShouldDisableSave(tt.candidate, keys.Context("", tt.original))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, before, docJSON(t, s), "validation must not touch the document")
		})
	}
}

func TestShouldDisableSave_Override(t *testing.T) {
	s := New()
	require.NoError(t, s.Register("cbr_zones", FieldDefinition{
		Fields:   []*FieldSpec{{Name: "name", Invalid: InvalidName("name")}},
		Required: []string{"name"},
		ShouldDisableSave: func(candidate Entity, _ *Context) bool {
			return len(candidate.Entities("addresses")) == 0
		},
	}))
	zones := s.MustType("cbr_zones")

	assert.True(t, zones.ShouldDisableSave(Entity{"name": "zone"}, nil))
	assert.False(t, zones.ShouldDisableSave(Entity{
		"name":      "BAD NAME",
		"addresses": []Entity{{"type": "ipAddress", "value": "10.0.0.1"}},
	}, nil))
}

func TestShouldDisableSave_SubType(t *testing.T) {
	s := newFixtureStore(t)
	s.MustType("vpcs").Create(Entity{"name": "edge"}, Options{})
	s.MustType("vpcs").Create(Entity{"name": "core"}, Options{})
	subnets := s.MustType("vpcs.subnets")
	subnets.Create(Entity{"name": "zone-1", "cidr": "10.0.0.0/24"}, Options{Parent: "edge"})

	candidate := Entity{"name": "zone-1", "cidr": "10.1.0.0/24"}
	assert.True(t, subnets.ShouldDisableSave(candidate, subnets.Context("edge", nil)))
	assert.False(t, subnets.ShouldDisableSave(candidate, subnets.Context("core", nil)))
}

func TestCheck_Report(t *testing.T) {
	s := newValidationStore(t)
	keys := s.MustType("ssh_keys")

	report := keys.Check(Entity{"name": "-bad", "use_data": false}, nil)
	assert.True(t, report.Blocks)
	assert.Equal(t, "ssh_keys", report.Type)
	assert.Equal(t, []string{"name", "public_key"}, report.InvalidFields())

	require.Len(t, report.Fields, 4)
	assert.Equal(t, "Name must follow the regex pattern: ^[a-z][a-z0-9-]*[a-z0-9]$", report.Fields[0].Message)
	assert.Equal(t, "Invalid public_key", report.Fields[2].Message)
	assert.True(t, report.Fields[2].Required)
	assert.False(t, report.Fields[3].Required)
}

func TestCheckAll(t *testing.T) {
	s := newFixtureStore(t)
	require.NoError(t, s.LoadJSON([]byte(`{
		"vlans": [{"name": "pub"}, {"name": "pub"}, {"name": "Bad"}],
		"vpcs": [{"name": "edge", "subnets": [{"name": "zone-1"}]}]
	}`)))

	blocked := map[string]int{}
	for _, r := range s.CheckAll() {
		if r.Blocks {
			blocked[r.Type]++
		}
	}
	// each entity is checked as its own original, so duplicates only show up
	// in DuplicateKeys
	assert.Equal(t, 1, blocked["vlans"])
	assert.Equal(t, 1, blocked["vpcs.subnets"])
	assert.Zero(t, blocked["vpcs"])

	assert.Equal(t, []string{"pub"}, s.DuplicateKeys("vlans"))
	assert.Empty(t, s.DuplicateKeys("vpcs"))
	assert.Empty(t, s.DuplicateKeys("nope"))
}

func TestFieldAccessors(t *testing.T) {
	s := newFixtureStore(t)
	s.MustType("vpcs").Create(Entity{"name": "edge"}, Options{})
	s.MustType("vpcs").Create(Entity{"name": "core"}, Options{})
	s.MustType("vpcs.subnets").Create(Entity{"name": "zone-1", "cidr": "10.0.0.0/24"}, Options{Parent: "core"})

	vsi := s.MustType("vsi")
	ctx := vsi.Context("", nil)

	assert.Equal(t, []string{"edge", "core"}, vsi.MustField("vpc").Groups(Entity{}, ctx))
	assert.Equal(t, []string{"zone-1"}, vsi.MustField("subnets").Groups(Entity{"vpc": "core"}, ctx))
	assert.Empty(t, vsi.MustField("subnets").Groups(Entity{"vpc": "edge"}, ctx))
	assert.True(t, vsi.MustField("vpc").Invalid(Entity{"vpc": "gone"}, ctx))
	assert.False(t, vsi.MustField("vpc").Invalid(Entity{"vpc": "edge"}, ctx))

	vlanType := s.MustType("vlans").MustField("type")
	assert.Equal(t, []string{"PUBLIC", "PRIVATE"}, vlanType.Groups(Entity{}, nil))
	assert.False(t, vlanType.Hidden(Entity{}, nil))
	assert.Equal(t, "PUBLIC", vlanType.OnRender(Entity{"type": "PUBLIC"}, nil))
	assert.Equal(t, "PUBLIC", vlanType.OnInputChange(Entity{"type": "PUBLIC"}, nil))
	assert.NotPanics(t, func() { vlanType.OnStateChange(Entity{}, nil) })
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		pred Predicate
		in   Entity
		want bool
	}{
		{"valid name", InvalidName("name"), Entity{"name": "vpc-1"}, false},
		{"trailing dash", InvalidName("name"), Entity{"name": "vpc-"}, true},
		{"leading digit", InvalidName("name"), Entity{"name": "1vpc"}, true},
		{"missing name", InvalidName("name"), Entity{}, true},
		{"empty string", EmptyString("cidr"), Entity{"cidr": ""}, true},
		{"nil string", EmptyString("cidr"), Entity{"cidr": nil}, true},
		{"set string", EmptyString("cidr"), Entity{"cidr": "10.0.0.0/8"}, false},
		{"empty list", EmptyList("vpcs"), Entity{"vpcs": []string{}}, true},
		{"empty any list", EmptyList("vpcs"), Entity{"vpcs": []any{}}, true},
		{"full list", EmptyList("vpcs"), Entity{"vpcs": []any{"a"}}, false},
		{"any of", AnyOf(EmptyString("a"), EmptyString("b")), Entity{"a": "x"}, true},
		{"not", Not(EmptyString("a")), Entity{"a": "x"}, true},
		{"field equals", FieldEquals("use_data", true), Entity{"use_data": true}, true},
		{"field equals wrong type", FieldEquals("use_data", true), Entity{"use_data": "true"}, false},
		{"parent missing without view", ParentMissing("vpc", "vpcs"), Entity{"vpc": "edge"}, false},
		{"parent empty", ParentMissing("vpc", "vpcs"), Entity{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pred(tt.in, nil))
		})
	}
}

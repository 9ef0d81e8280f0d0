package catalog

import (
	"slices"

	"github.com/IBM/CRAIG-sub005/pkg/store"
)

var zones = []string{"1", "2", "3"}

func vpcsDefinition() store.FieldDefinition {
	return store.FieldDefinition{
		Fields: []*store.FieldSpec{
			nameField(),
			resourceGroupField(),
			{
				Name:    "classic_access",
				Type:    store.FieldToggle,
				Default: false,
			},
			{
				Name:     "bucket",
				Type:     store.FieldSelect,
				Optional: true,
				Groups:   store.KeysOf("object_storage.buckets"),
			},
		},
		Required:   []string{"name", "resource_group"},
		References: []store.Reference{resourceGroupReference(), {Field: "bucket", Target: "object_storage.buckets"}},
		SubComponents: []*store.FieldDefinition{
			subnetsDefinition(),
			aclsDefinition(),
		},
	}
}

func subnetsDefinition() *store.FieldDefinition {
	return &store.FieldDefinition{
		Name:        "subnets",
		ParentField: "vpc",
		Fields: []*store.FieldSpec{
			nameField(),
			{
				Name:        "cidr",
				Type:        store.FieldText,
				Invalid:     invalidCIDR("cidr"),
				InvalidText: staticText("Invalid CIDR block"),
			},
			{
				Name:   "zone",
				Type:   store.FieldSelect,
				Values: zones,
				Invalid: func(c store.Entity, _ *store.Context) bool {
					return !slices.Contains(zones, c.Str("zone"))
				},
			},
			{
				Name:     "network_acl",
				Type:     store.FieldSelect,
				Optional: true,
				Groups:   store.KeysUnder("vpcs.acls", "vpc"),
			},
			{
				Name:    "public_gateway",
				Type:    store.FieldToggle,
				Default: false,
			},
		},
		Required: []string{"name", "cidr", "zone"},
		References: []store.Reference{
			{Field: "network_acl", Target: "vpcs.acls", Scope: "vpc"},
		},
	}
}

func aclsDefinition() *store.FieldDefinition {
	return &store.FieldDefinition{
		Name:        "acls",
		ParentField: "vpc",
		Fields: []*store.FieldSpec{
			nameField(),
			{Name: "rules", Type: store.FieldTextArea, Default: []any{}, Optional: true},
		},
		Required: []string{"name"},
	}
}

func vpnGatewaysDefinition() store.FieldDefinition {
	return store.FieldDefinition{
		Fields: []*store.FieldSpec{
			nameField(),
			resourceGroupField(),
			{
				Name:    "vpc",
				Type:    store.FieldSelect,
				Groups:  store.KeysOf("vpcs"),
				Invalid: store.ParentMissing("vpc", "vpcs"),
			},
			{
				Name:   "subnet",
				Type:   store.FieldSelect,
				Groups: store.KeysUnder("vpcs.subnets", "vpc"),
				Invalid: func(c store.Entity, ctx *store.Context) bool {
					if c.IsNull("subnet") {
						return true
					}
					return ctx != nil && !ctx.View.HasIn("vpcs.subnets", c.Str("vpc"), c.Str("subnet"))
				},
			},
		},
		Required: []string{"name", "resource_group", "vpc", "subnet"},
		References: []store.Reference{
			resourceGroupReference(),
			{Field: "vpc", Target: "vpcs"},
			{Field: "subnet", Target: "vpcs.subnets", Scope: "vpc"},
		},
	}
}

// tunnels are keyed by their gateway and have no meaning without it.
func tunnelsDefinition() store.FieldDefinition {
	return store.FieldDefinition{
		KeyField: "gateway",
		Fields: []*store.FieldSpec{
			{
				Name:    "gateway",
				Type:    store.FieldSelect,
				Groups:  store.KeysOf("vpn_gateways"),
				Invalid: store.ParentMissing("gateway", "vpn_gateways"),
			},
			{
				Name:        "peer_address",
				Type:        store.FieldText,
				Invalid:     invalidIP("peer_address"),
				InvalidText: staticText("Enter a valid IPv4 address"),
			},
			{
				Name:        "peer_cidr",
				Type:        store.FieldText,
				Invalid:     invalidCIDR("peer_cidr"),
				InvalidText: staticText("Invalid CIDR block"),
			},
		},
		Required: []string{"gateway", "peer_address", "peer_cidr"},
		References: []store.Reference{
			{Field: "gateway", Target: "vpn_gateways", OnMissing: store.MissingPrune},
		},
	}
}

func transitGatewaysDefinition() store.FieldDefinition {
	return store.FieldDefinition{
		Fields: []*store.FieldSpec{
			nameField(),
			resourceGroupField(),
			{Name: "global", Type: store.FieldToggle, Default: false},
			{
				Name:        "vpcs",
				Type:        store.FieldMultiSelect,
				Default:     []string{},
				Groups:      store.KeysOf("vpcs"),
				Invalid:     store.EmptyList("vpcs"),
				InvalidText: staticText("Select at least one VPC"),
			},
		},
		Required: []string{"name", "resource_group", "vpcs"},
		References: []store.Reference{
			resourceGroupReference(),
			{Field: "vpcs", Target: "vpcs", Many: true},
		},
	}
}

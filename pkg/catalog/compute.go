package catalog

import (
	"github.com/IBM/CRAIG-sub005/pkg/store"
)

var (
	datacenters = []string{"dal10", "dal12", "dal13", "wdc04", "wdc06", "wdc07", "lon04", "fra02", "tok02"}
	powerZones  = []string{"dal10", "dal12", "wdc06", "wdc07", "lon04", "lon06", "tok04", "syd05"}
)

func vsiDefinition() store.FieldDefinition {
	return store.FieldDefinition{
		Fields: []*store.FieldSpec{
			nameField(),
			resourceGroupField(),
			{
				Name:    "vpc",
				Type:    store.FieldSelect,
				Groups:  store.KeysOf("vpcs"),
				Invalid: store.ParentMissing("vpc", "vpcs"),
				OnStateChange: func(c store.Entity, _ *store.Context) {
					c["subnets"] = []string{}
				},
			},
			{
				Name:        "subnets",
				Type:        store.FieldMultiSelect,
				Default:     []string{},
				Groups:      store.KeysUnder("vpcs.subnets", "vpc"),
				Invalid:     store.EmptyList("subnets"),
				InvalidText: staticText("Select at least one subnet"),
			},
			{
				Name:        "ssh_keys",
				Type:        store.FieldMultiSelect,
				Default:     []string{},
				Groups:      store.KeysOf("ssh_keys"),
				Invalid:     store.EmptyList("ssh_keys"),
				InvalidText: staticText("Select at least one SSH key"),
			},
			{
				Name:     "encryption_key",
				Type:     store.FieldSelect,
				Optional: true,
				Groups:   store.KeysOf("key_management.keys"),
			},
			{Name: "image", Type: store.FieldSelect, Invalid: store.EmptyString("image")},
			{Name: "profile", Type: store.FieldSelect, Invalid: store.EmptyString("profile")},
			{
				Name:    "vsi_per_subnet",
				Type:    store.FieldNumber,
				Default: 1,
				Invalid: invalidNumber("vsi_per_subnet", 1, 10),
				OnInputChange: func(c store.Entity, _ *store.Context) any {
					if f, ok := c["vsi_per_subnet"].(float64); ok {
						return int(f)
					}
					return c["vsi_per_subnet"]
				},
			},
		},
		Required: []string{"name", "resource_group", "vpc", "subnets", "ssh_keys", "image", "profile", "vsi_per_subnet"},
		References: []store.Reference{
			resourceGroupReference(),
			{Field: "vpc", Target: "vpcs"},
			{Field: "subnets", Target: "vpcs.subnets", Many: true, Scope: "vpc"},
			{Field: "ssh_keys", Target: "ssh_keys", Many: true},
			{Field: "encryption_key", Target: "key_management.keys"},
		},
	}
}

func classicVlansDefinition() store.FieldDefinition {
	return store.FieldDefinition{
		Fields: []*store.FieldSpec{
			nameField(),
			{Name: "datacenter", Type: store.FieldSelect, Values: datacenters, Invalid: store.EmptyString("datacenter")},
			{Name: "type", Type: store.FieldSelect, Values: []string{"PUBLIC", "PRIVATE"}, Invalid: store.EmptyString("type")},
		},
		Required: []string{"name", "datacenter", "type"},
	}
}

// vlansOfType lists classic VLANs of one type in the candidate's datacenter.
func vlansOfType(vlanType string) store.GroupsFunc {
	return func(c store.Entity, ctx *store.Context) []string {
		if ctx == nil {
			return nil
		}
		out := []string{}
		for _, vlan := range ctx.View.Records("classic_vlans", "") {
			if vlan.Str("type") == vlanType && vlan.Str("datacenter") == c.Str("datacenter") {
				out = append(out, vlan.Str("name"))
			}
		}
		return out
	}
}

func classicVsiDefinition() store.FieldDefinition {
	return store.FieldDefinition{
		Fields: []*store.FieldSpec{
			nameField(),
			{Name: "datacenter", Type: store.FieldSelect, Values: datacenters, Invalid: store.EmptyString("datacenter")},
			{
				Name:     "public_vlan",
				Type:     store.FieldSelect,
				Optional: true,
				Groups:   vlansOfType("PUBLIC"),
				HideWhen: store.FieldEquals("private_network_only", true),
			},
			{
				Name:    "private_vlan",
				Type:    store.FieldSelect,
				Groups:  vlansOfType("PRIVATE"),
				Invalid: store.ParentMissing("private_vlan", "classic_vlans"),
			},
			{Name: "private_network_only", Type: store.FieldToggle, Default: false},
			{Name: "domain", Type: store.FieldText, Invalid: invalidTag("domain", "fqdn")},
			{Name: "cores", Type: store.FieldNumber, Default: 4, Invalid: invalidNumber("cores", 1, 56)},
			{Name: "memory", Type: store.FieldNumber, Default: 4096, Invalid: invalidNumber("memory", 1024, 245760)},
		},
		Required: []string{"name", "datacenter", "private_vlan", "domain", "cores", "memory"},
		References: []store.Reference{
			{Field: "public_vlan", Target: "classic_vlans"},
			{Field: "private_vlan", Target: "classic_vlans"},
		},
	}
}

func powerDefinition() store.FieldDefinition {
	return store.FieldDefinition{
		Fields: []*store.FieldSpec{
			nameField(),
			resourceGroupField(),
			{
				Name:    "zone",
				Type:    store.FieldSelect,
				Values:  powerZones,
				Invalid: store.EmptyString("zone"),
			},
			{Name: "imageNames", Type: store.FieldMultiSelect, Default: []string{}},
		},
		Required:   []string{"name", "resource_group", "zone"},
		References: []store.Reference{resourceGroupReference()},
		SubComponents: []*store.FieldDefinition{
			{
				Name:        "ssh_keys",
				ParentField: "workspace",
				Fields: []*store.FieldSpec{
					nameField(),
					{Name: "public_key", Type: store.FieldPublicKey, Invalid: invalidPublicKey("public_key")},
				},
				Required: []string{"name", "public_key"},
			},
			{
				Name:        "network",
				ParentField: "workspace",
				Fields: []*store.FieldSpec{
					nameField(),
					{Name: "pi_network_type", Type: store.FieldSelect, Values: []string{"vlan", "pub-vlan"}, Default: "vlan"},
					{Name: "pi_cidr", Type: store.FieldText, Invalid: invalidCIDR("pi_cidr")},
					{Name: "pi_dns", Type: store.FieldMultiSelect, Default: []string{"127.0.0.1"}},
				},
				Required: []string{"name", "pi_cidr"},
			},
		},
	}
}

func powerInstancesDefinition() store.FieldDefinition {
	return store.FieldDefinition{
		Fields: []*store.FieldSpec{
			nameField(),
			{
				Name:    "workspace",
				Type:    store.FieldSelect,
				Groups:  store.KeysOf("power"),
				Invalid: store.ParentMissing("workspace", "power"),
				OnStateChange: func(c store.Entity, _ *store.Context) {
					c["network"] = []string{}
					c["ssh_key"] = nil
				},
			},
			{
				Name:     "zone",
				Type:     store.FieldText,
				HideWhen: func(store.Entity, *store.Context) bool { return true },
			},
			{
				Name:        "network",
				Type:        store.FieldMultiSelect,
				Default:     []string{},
				Groups:      store.KeysUnder("power.network", "workspace"),
				Invalid:     store.EmptyList("network"),
				InvalidText: staticText("Select at least one network interface"),
			},
			{
				Name:    "ssh_key",
				Type:    store.FieldSelect,
				Groups:  store.KeysUnder("power.ssh_keys", "workspace"),
				Invalid: store.EmptyString("ssh_key"),
			},
			{Name: "pi_proc_type", Type: store.FieldSelect, Values: []string{"shared", "capped", "dedicated"}, Default: "shared"},
			{Name: "pi_processors", Type: store.FieldText, Default: "0.25"},
			{Name: "pi_memory", Type: store.FieldNumber, Default: 4, Invalid: invalidNumber("pi_memory", 2, 934)},
		},
		Required: []string{"name", "workspace", "network", "ssh_key", "pi_memory"},
		References: []store.Reference{
			{Field: "workspace", Target: "power"},
			{Field: "network", Target: "power.network", Many: true, Scope: "workspace"},
			{Field: "ssh_key", Target: "power.ssh_keys", Scope: "workspace"},
		},
		Mirrors: []store.Mirror{
			{Field: "zone", From: "workspace", Source: "zone"},
		},
	}
}

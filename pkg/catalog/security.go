package catalog

import (
	"strings"

	"github.com/IBM/CRAIG-sub005/pkg/store"
)

var regions = []string{"us-south", "us-east", "eu-de", "eu-gb", "jp-tok", "au-syd", "ca-tor", "br-sao"}

func optionsDefinition() store.FieldDefinition {
	return store.FieldDefinition{
		Kind: store.KindObject,
		Default: func() any {
			return store.Entity{
				"prefix":          "iac",
				"region":          "us-south",
				"zones":           3,
				"tags":            []string{},
				"fs_cloud":        false,
				"dynamic_subnets": true,
			}
		},
		Fields: []*store.FieldSpec{
			{
				Name:        "prefix",
				Type:        store.FieldText,
				Invalid:     store.InvalidName("prefix"),
				InvalidText: staticText("Invalid prefix"),
			},
			{
				Name:   "region",
				Type:   store.FieldSelect,
				Values: regions,
				Invalid: func(c store.Entity, _ *store.Context) bool {
					return validate.Var(c.Str("region"), "required,oneof=us-south us-east eu-de eu-gb jp-tok au-syd ca-tor br-sao") != nil
				},
			},
			{
				Name:    "zones",
				Type:    store.FieldNumber,
				Invalid: invalidNumber("zones", 1, 3),
			},
			{Name: "tags", Type: store.FieldMultiSelect, Optional: true},
			{Name: "fs_cloud", Type: store.FieldToggle},
			{Name: "dynamic_subnets", Type: store.FieldToggle},
		},
		Required: []string{"prefix", "region", "zones"},
	}
}

func resourceGroupsDefinition() store.FieldDefinition {
	return store.FieldDefinition{
		Fields: []*store.FieldSpec{
			nameField(),
			{Name: "use_data", Type: store.FieldToggle, Default: false},
			{Name: "use_prefix", Type: store.FieldToggle, Default: true, HideWhen: usesData},
		},
		Required: []string{"name"},
	}
}

func keyManagementDefinition() store.FieldDefinition {
	return store.FieldDefinition{
		Fields: []*store.FieldSpec{
			nameField(),
			resourceGroupField(),
			{Name: "use_hs_crypto", Type: store.FieldToggle, Default: false},
			{Name: "use_data", Type: store.FieldToggle, Default: false},
		},
		Required:   []string{"name", "resource_group"},
		References: []store.Reference{resourceGroupReference()},
		SubComponents: []*store.FieldDefinition{
			{
				Name:        "keys",
				ParentField: "key_management",
				Fields: []*store.FieldSpec{
					nameField(),
					{Name: "key_ring", Type: store.FieldText, Optional: true},
					{Name: "root_key", Type: store.FieldToggle, Default: true},
					{
						Name:    "rotation",
						Type:    store.FieldNumber,
						Default: 1,
						Invalid: invalidNumber("rotation", 1, 12),
					},
				},
				Required: []string{"name", "rotation"},
			},
		},
	}
}

func sshKeysDefinition() store.FieldDefinition {
	return store.FieldDefinition{
		Fields: []*store.FieldSpec{
			nameField(),
			resourceGroupField(),
			{Name: "use_data", Type: store.FieldToggle, Default: false},
			{
				Name:        "public_key",
				Type:        store.FieldPublicKey,
				Invalid:     invalidPublicKey("public_key"),
				InvalidText: staticText("Provide a unique SSH public key that does not exist in the IBM Cloud account in your region"),
				HideWhen:    usesData,
			},
		},
		Required:   []string{"name", "resource_group", "public_key"},
		References: []store.Reference{resourceGroupReference()},
	}
}

var cbrAddressTypes = []string{"ipAddress", "ipRange", "subnet", "vpc", "serviceRef"}

func cbrAddressDefinition(name string) *store.FieldDefinition {
	return &store.FieldDefinition{
		Name:        name,
		ParentField: "cbr_zone",
		Fields: []*store.FieldSpec{
			nameField(),
			{Name: "account_id", Type: store.FieldText, Optional: true},
			{Name: "type", Type: store.FieldSelect, Values: cbrAddressTypes},
			{
				Name:        "value",
				Type:        store.FieldText,
				Invalid:     invalidAddressValue,
				InvalidText: staticText("Invalid value for address type"),
			},
		},
		Required: []string{"name", "value"},
	}
}

// invalidAddressValue checks the value against the validator tag matching
// the address type.
func invalidAddressValue(c store.Entity, _ *store.Context) bool {
	value := c.Str("value")
	if value == "" {
		return true
	}
	switch c.Str("type") {
	case "ipAddress":
		return validate.Var(value, "ip") != nil
	case "subnet":
		return validate.Var(value, "cidr") != nil
	case "ipRange":
		lo, hi, ok := strings.Cut(value, "-")
		return !ok || validate.Var(lo, "ip") != nil || validate.Var(hi, "ip") != nil
	default:
		return false
	}
}

func cbrZonesDefinition() store.FieldDefinition {
	return store.FieldDefinition{
		Fields: []*store.FieldSpec{
			nameField(),
			{Name: "account_id", Type: store.FieldText, Optional: true},
			{Name: "description", Type: store.FieldTextArea, Optional: true},
		},
		Required: []string{"name"},
		SubComponents: []*store.FieldDefinition{
			cbrAddressDefinition("addresses"),
			cbrAddressDefinition("exclusions"),
		},
	}
}

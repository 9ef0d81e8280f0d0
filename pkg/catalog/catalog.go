package catalog

import (
	"fmt"

	"github.com/IBM/CRAIG-sub005/pkg/store"
)

// entry is one catalog type. Order matters: repair hooks run in this order,
// so every type is listed after the types it references.
type entry struct {
	name string
	def  func() store.FieldDefinition
}

var entries = []entry{
	{"options", optionsDefinition},
	{"resource_groups", resourceGroupsDefinition},
	{"key_management", keyManagementDefinition},
	{"object_storage", objectStorageDefinition},
	{"vpcs", vpcsDefinition},
	{"ssh_keys", sshKeysDefinition},
	{"vpn_gateways", vpnGatewaysDefinition},
	{"tunnels", tunnelsDefinition},
	{"transit_gateways", transitGatewaysDefinition},
	{"vsi", vsiDefinition},
	{"cbr_zones", cbrZonesDefinition},
	{"classic_vlans", classicVlansDefinition},
	{"classic_vsi", classicVsiDefinition},
	{"power", powerDefinition},
	{"power_instances", powerInstancesDefinition},
}

// Names returns the catalog's type names in registration order.
func Names() []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.name)
	}
	return names
}

// Register adds every catalog type to s in dependency order.
func Register(s *store.Store) error {
	for _, e := range entries {
		if err := s.Register(e.name, e.def()); err != nil {
			return fmt.Errorf("failed to register %s: %w", e.name, err)
		}
	}
	return nil
}

// New returns a store with the catalog registered.
func New(opts ...store.Option) (*store.Store, error) {
	s := store.New(opts...)
	if err := Register(s); err != nil {
		return nil, err
	}
	return s, nil
}

func nameField() *store.FieldSpec {
	return &store.FieldSpec{
		Name:        "name",
		Type:        store.FieldText,
		Default:     "",
		Invalid:     store.NameInvalid("name"),
		InvalidText: store.NameInvalidText("name"),
	}
}

func resourceGroupField() *store.FieldSpec {
	return &store.FieldSpec{
		Name:        "resource_group",
		Type:        store.FieldSelect,
		Invalid:     store.ParentMissing("resource_group", "resource_groups"),
		InvalidText: staticText("Select a resource group"),
		Groups:      store.KeysOf("resource_groups"),
	}
}

func resourceGroupReference() store.Reference {
	return store.Reference{Field: "resource_group", Target: "resource_groups"}
}

func staticText(msg string) store.TextFunc {
	return func(store.Entity, *store.Context) string {
		return msg
	}
}

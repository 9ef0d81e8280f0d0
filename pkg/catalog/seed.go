package catalog

import (
	"github.com/IBM/CRAIG-sub005/pkg/store"
)

// Seed fills a catalog store with a minimal landing zone: one resource
// group, a key management instance with a key, an encrypted bucket, a
// management VPC with one subnet per zone, an SSH key and a VSI deployment.
func Seed(s *store.Store, prefix string) error {
	if prefix == "" {
		prefix = "iac"
	}

	steps := []struct {
		typ  string
		data store.Entity
		opts store.Options
	}{
		{"options", store.Entity{"prefix": prefix}, store.Options{}},
		{"resource_groups", store.Entity{"name": "management-rg", "use_data": false, "use_prefix": true}, store.Options{}},
		{"key_management", store.Entity{"name": "kms", "resource_group": "management-rg"}, store.Options{}},
		{"key_management.keys", store.Entity{"name": "root-key", "root_key": true, "rotation": 1}, store.Options{Parent: "kms"}},
		{"object_storage", store.Entity{"name": "cos", "resource_group": "management-rg", "kms": "kms", "plan": "standard"}, store.Options{}},
		{"object_storage.buckets", store.Entity{"name": "flowlogs", "storage_class": "standard", "kms_key": "root-key"}, store.Options{Parent: "cos"}},
		{"vpcs", store.Entity{"name": "management", "resource_group": "management-rg", "bucket": "flowlogs"}, store.Options{}},
		{"vpcs.acls", store.Entity{"name": "management-acl", "rules": []any{}}, store.Options{Parent: "management"}},
		{"vpcs.subnets", store.Entity{"name": "vsi-zone-1", "cidr": "10.10.10.0/24", "zone": "1", "network_acl": "management-acl"}, store.Options{Parent: "management"}},
		{"vpcs.subnets", store.Entity{"name": "vsi-zone-2", "cidr": "10.20.10.0/24", "zone": "2", "network_acl": "management-acl"}, store.Options{Parent: "management"}},
		{"vpcs.subnets", store.Entity{"name": "vsi-zone-3", "cidr": "10.30.10.0/24", "zone": "3", "network_acl": "management-acl"}, store.Options{Parent: "management"}},
		{"ssh_keys", store.Entity{"name": SeedKeyName, "resource_group": "management-rg", "public_key": "NONE"}, store.Options{}},
		{"vsi", store.Entity{
			"name":           "management-server",
			"resource_group": "management-rg",
			"vpc":            "management",
			"subnets":        []string{"vsi-zone-1", "vsi-zone-2", "vsi-zone-3"},
			"ssh_keys":       []string{SeedKeyName},
			"encryption_key": "root-key",
			"image":          "ibm-ubuntu-22-04-3-minimal-amd64-1",
			"profile":        "cx2-4x8",
			"vsi_per_subnet": 1,
		}, store.Options{}},
	}

	for _, step := range steps {
		if err := s.Create(step.typ, step.data, step.opts); err != nil {
			return err
		}
	}
	return nil
}

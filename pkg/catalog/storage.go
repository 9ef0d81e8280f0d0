package catalog

import (
	"github.com/IBM/CRAIG-sub005/pkg/store"
)

var storageClasses = []string{"standard", "vault", "cold", "smart"}

func objectStorageDefinition() store.FieldDefinition {
	return store.FieldDefinition{
		Fields: []*store.FieldSpec{
			nameField(),
			resourceGroupField(),
			{
				Name:     "kms",
				Type:     store.FieldSelect,
				Optional: true,
				Groups:   store.KeysOf("key_management"),
			},
			{Name: "plan", Type: store.FieldSelect, Values: []string{"standard", "lite"}, Default: "standard"},
			{Name: "use_data", Type: store.FieldToggle, Default: false},
			{Name: "use_random_suffix", Type: store.FieldToggle, Default: true},
		},
		Required: []string{"name", "resource_group"},
		References: []store.Reference{
			resourceGroupReference(),
			{Field: "kms", Target: "key_management"},
		},
		OnStoreUpdate: repairObjectStorage,
		SubComponents: []*store.FieldDefinition{
			{
				Name:        "buckets",
				ParentField: "instance",
				Fields: []*store.FieldSpec{
					nameField(),
					{
						Name:    "storage_class",
						Type:    store.FieldSelect,
						Values:  storageClasses,
						Default: "standard",
					},
					{
						Name:   "kms_key",
						Type:   store.FieldSelect,
						Groups: bucketKeys,
						Invalid: func(c store.Entity, _ *store.Context) bool {
							return c.IsNull("kms_key") && !c.Bool("allow_unencrypted")
						},
						InvalidText: staticText("Select an encryption key"),
					},
					{Name: "allow_unencrypted", Type: store.FieldToggle, Default: false},
					{Name: "force_delete", Type: store.FieldToggle, Default: true},
				},
				Required: []string{"name", "kms_key"},
				References: []store.Reference{
					{Field: "kms_key", Target: "key_management.keys"},
				},
			},
		},
	}
}

// bucketKeys lists the keys of the key management instance selected by the
// bucket's parent instance.
func bucketKeys(_ store.Entity, ctx *store.Context) []string {
	if ctx == nil || ctx.Parent == "" {
		return nil
	}
	cos := ctx.View.Find("object_storage", "", ctx.Parent)
	if cos == nil || cos.IsNull("kms") {
		return []string{}
	}
	return ctx.View.KeysIn("key_management.keys", cos.Str("kms"))
}

// repairObjectStorage runs the standard repair and then scopes each bucket's
// kms_key to the key management instance its parent instance uses. The
// scope lives on the parent, so a declared Reference cannot express it.
func repairObjectStorage(s *store.Store) {
	s.StandardRepair("object_storage")

	cleared := 0
	s.EnsureCollection("object_storage").Each(func(cos store.Entity) {
		kms := cos.Str("kms")
		s.SubPath("object_storage.buckets", cos).Each(func(bucket store.Entity) {
			before := bucket["kms_key"]
			store.NullIfMissing(bucket, "kms_key", func(key string) bool {
				return kms != "" && s.HasIn("key_management.keys", kms, key)
			})
			if before != nil && bucket["kms_key"] == nil {
				cleared++
			}
		})
	})

	if cleared > 0 {
		s.Logger().Debug().
			Int("buckets", cleared).
			Msg("Cleared bucket encryption keys no longer in scope")
	}
}

package policy

// GetBuiltinPolicies returns all built-in policies. Each call returns fresh
// values, so enabling or disabling one engine's copy does not leak.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		entityNamingPolicy(),
		encryptionPolicy(),
		sshKeysPolicy(),
		subnetOverlapPolicy(),
		unknownCollectionsPolicy(),
	}
}

func builtin(name, description string, severity Severity, tags []string, src string) Policy {
	return Policy{
		Name:        name,
		Description: description,
		Severity:    severity,
		Enabled:     true,
		Tags:        tags,
		Source:      SourceBuiltin,
		Rego:        src,
	}
}

// entityNamingPolicy enforces the cloud naming rules on top-level entities
// and their sub-entities, and warns when the prefixed name gets too long.
func entityNamingPolicy() Policy {
	return builtin("entity-naming",
		"Entity names must be lowercase letters, numbers and hyphens and fit in 63 characters with the prefix",
		SeverityError,
		[]string{"naming"},
		`package craig.policies.naming

import rego.v1

valid_name(name) if regex.match("^[a-z]([a-z0-9-]*[a-z0-9])?$", name)

deny contains violation if {
	some collection, entities in input.document
	is_array(entities)
	some entity in entities
	is_string(entity.name)
	not valid_name(entity.name)
	violation := {
		"message": sprintf("%s name '%s' must start with a letter and contain only lowercase letters, numbers and hyphens", [collection, entity.name]),
		"severity": "error",
		"entity": sprintf("%s/%s", [collection, entity.name]),
	}
}

deny contains violation if {
	some collection, entities in input.document
	is_array(entities)
	some parent in entities
	is_object(parent)
	some sub, children in parent
	is_array(children)
	some child in children
	is_object(child)
	is_string(child.name)
	not valid_name(child.name)
	violation := {
		"message": sprintf("%s.%s name '%s' must start with a letter and contain only lowercase letters, numbers and hyphens", [collection, sub, child.name]),
		"severity": "error",
		"entity": sprintf("%s.%s/%s/%s", [collection, sub, parent.name, child.name]),
	}
}

deny contains violation if {
	prefix := input.document.options.prefix
	is_string(prefix)
	some collection, entities in input.document
	is_array(entities)
	some entity in entities
	is_string(entity.name)
	full := sprintf("%s-%s", [prefix, entity.name])
	count(full) > 63
	violation := {
		"message": sprintf("%s name '%s' is longer than 63 characters", [collection, full]),
		"severity": "warning",
		"entity": sprintf("%s/%s", [collection, entity.name]),
	}
}
`)
}

// encryptionPolicy requires buckets to be encrypted unless explicitly
// allowed, and flags instances without a boot volume key.
func encryptionPolicy() Policy {
	return builtin("encryption",
		"Buckets must name an encryption key; VSI deployments should",
		SeverityError,
		[]string{"security", "encryption"},
		`package craig.policies.encryption

import rego.v1

has_key(entity, field) if {
	is_string(entity[field])
	entity[field] != ""
}

deny contains violation if {
	some cos in input.document.object_storage
	some bucket in cos.buckets
	not has_key(bucket, "kms_key")
	not bucket.allow_unencrypted
	violation := {
		"message": sprintf("bucket '%s' in '%s' has no encryption key", [bucket.name, cos.name]),
		"severity": "error",
		"entity": sprintf("object_storage.buckets/%s/%s", [cos.name, bucket.name]),
	}
}

deny contains violation if {
	some cos in input.document.object_storage
	some bucket in cos.buckets
	bucket.allow_unencrypted == true
	violation := {
		"message": sprintf("bucket '%s' in '%s' allows unencrypted storage", [bucket.name, cos.name]),
		"severity": "warning",
		"entity": sprintf("object_storage.buckets/%s/%s", [cos.name, bucket.name]),
	}
}

deny contains violation if {
	some vsi in input.document.vsi
	not has_key(vsi, "encryption_key")
	violation := {
		"message": sprintf("vsi '%s' boot volumes use provider managed encryption", [vsi.name]),
		"severity": "warning",
		"entity": sprintf("vsi/%s", [vsi.name]),
	}
}
`)
}

// sshKeysPolicy checks that deployments can be logged into.
func sshKeysPolicy() Policy {
	return builtin("ssh-keys",
		"VSI deployments need SSH keys and keys need real public key material",
		SeverityError,
		[]string{"security", "compute"},
		`package craig.policies.ssh

import rego.v1

has_keys(vsi) if {
	is_array(vsi.ssh_keys)
	count(vsi.ssh_keys) > 0
}

deny contains violation if {
	some vsi in input.document.vsi
	not has_keys(vsi)
	violation := {
		"message": sprintf("vsi '%s' has no ssh keys", [vsi.name]),
		"severity": "error",
		"entity": sprintf("vsi/%s", [vsi.name]),
	}
}

deny contains violation if {
	some key in input.document.ssh_keys
	key.public_key == "NONE"
	not key.use_data
	violation := {
		"message": sprintf("ssh key '%s' uses a placeholder public key", [key.name]),
		"severity": "warning",
		"entity": sprintf("ssh_keys/%s", [key.name]),
	}
}
`)
}

// subnetOverlapPolicy rejects subnets whose CIDR blocks intersect within a
// VPC.
func subnetOverlapPolicy() Policy {
	return builtin("subnet-overlap",
		"Subnets in the same VPC must not have overlapping CIDR blocks",
		SeverityError,
		[]string{"network"},
		`package craig.policies.network

import rego.v1

deny contains violation if {
	some vpc in input.document.vpcs
	some i, a in vpc.subnets
	some j, b in vpc.subnets
	i < j
	is_string(a.cidr)
	is_string(b.cidr)
	net.cidr_intersects(a.cidr, b.cidr)
	violation := {
		"message": sprintf("subnets '%s' (%s) and '%s' (%s) in vpc '%s' overlap", [a.name, a.cidr, b.name, b.cidr, vpc.name]),
		"severity": "error",
		"entity": sprintf("vpcs.subnets/%s/%s", [vpc.name, b.name]),
	}
}
`)
}

// unknownCollectionsPolicy reports top-level keys that no registered entity
// type owns. It needs data.craig.types (see Engine.SetData) and reports
// nothing without it.
func unknownCollectionsPolicy() Policy {
	return builtin("unknown-collections",
		"Top-level document keys should belong to a registered entity type",
		SeverityWarning,
		[]string{"catalog"},
		`package craig.policies.catalog

import rego.v1

deny contains violation if {
	types := data.craig.types
	some collection, _ in input.document
	not collection in types
	violation := {
		"message": sprintf("'%s' is not a registered entity type", [collection]),
		"severity": "warning",
		"entity": collection,
	}
}
`)
}

// Package policy lints configuration documents with Open Policy Agent.
//
// The store decides whether a single edit can be saved. Policies look at the
// whole document instead, for example overlapping subnets across a VPC or
// names that will not fit once the prefix is added. They run
// from "craig validate" and after every reload in "craig watch".
//
// # Usage
//
//	eng, err := policy.NewEngine(logger)
//	if err != nil {
//	    return err
//	}
//	if err := eng.LoadPolicies(ctx, []string{"policies/"}); err != nil {
//	    return err
//	}
//
//	result, err := eng.Evaluate(ctx, s.Snapshot(), &policy.EvalContext{Operation: "validate"})
//	if err != nil {
//	    return err
//	}
//	for _, v := range result.Violations {
//	    fmt.Printf("%s %s: %s\n", v.Severity, v.Entity, v.Message)
//	}
//
// # Writing Policies
//
// The document is input.document in its JSON shape. Every policy defines a
// deny set. Members are message strings or objects with message, severity
// and entity keys:
//
//	# Buckets should use the cold storage class.
//	# severity: info
//	package craig.custom.buckets
//
//	import rego.v1
//
//	deny contains violation if {
//	    some cos in input.document.object_storage
//	    some bucket in cos.buckets
//	    bucket.storage_class != "cold"
//	    violation := {
//	        "message": sprintf("bucket %s is not cold", [bucket.name]),
//	        "entity": sprintf("object_storage.buckets/%s/%s", [cos.name, bucket.name]),
//	    }
//	}
//
// Engine.SetData publishes extra data to policies; the CLI sets
// data.craig.types to the registered entity type names.
//
// # Built-in Policies
//
//	entity-naming        name format and prefixed length
//	encryption           bucket and boot volume keys
//	ssh-keys             VSI login keys
//	subnet-overlap       CIDR overlap within a VPC
//	unknown-collections  top-level keys no entity type owns
//
// A result is not allowed when any violation has severity error or
// critical.
package policy

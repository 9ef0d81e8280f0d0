// Package catalog registers a sample set of cloud infrastructure entity
// types with a store: resource groups, key management, object storage,
// VPC networking, VSI deployments, context-based restriction zones, classic
// infrastructure and Power workspaces.
//
// Types are registered in dependency order so that a single reconciliation
// pass settles every cascade:
//
//	s, err := catalog.New(store.WithLogger(log.Logger))
//	if err != nil {
//		return err
//	}
//	if err := catalog.Seed(s, "slz"); err != nil {
//		return err
//	}
package catalog

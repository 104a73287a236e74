// Package directory provides built-in partition directory implementations.
//
// A partition directory lists existing partitions page by page and creates
// new ones. The package includes:
//
//   - Memory: In-process paginated directory for tests and demos
//   - IdentityToolkit: Tenants of a Google Cloud Identity Platform project
//
// Custom directories can be implemented by satisfying the
// types.PartitionDirectory interface.
package directory

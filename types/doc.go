// Package types provides core type definitions and interfaces for the fanout engine.
//
// This package contains shared types that are used across multiple packages in the
// module. By keeping these types in a separate package, we avoid import cycles
// between the root fanout package and its internal implementations.
//
// Key types:
//   - WorkItem: Opaque unit of work pulled from an ItemSource
//   - Partition: Isolated execution context ("tenant") owned by one worker
//   - State: Run controller lifecycle state
//   - ItemSource, PartitionDirectory, EffectAdapter: External collaborator contracts
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types

// Package source provides built-in item source implementations.
//
// Item sources hand out bounded batches of claimed work items. The package
// includes:
//
//   - Static: Fixed in-memory list, each item handed out once
//   - Postgres: Claim function or claim query on a PostgreSQL database
//   - JetStream: Durable NATS JetStream pull consumer
//
// Custom sources can be implemented by satisfying the types.ItemSource interface.
package source

// Package effect provides built-in effect adapters.
//
// An effect adapter performs the two remote calls applied to every work item
// inside its partition: an idempotent principal upsert followed by a
// notification. The package includes:
//
//   - IdentityToolkit: Creates an Identity Platform tenant user and sends a password reset email
//   - Func: Adapts plain functions, for tests and small embedders
//
// Custom adapters can be implemented by satisfying the types.EffectAdapter
// interface.
package effect

// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Interfaces
//
//   - FormatFilter: Converts a source bitstream into a derived bitstream
//   - FilterSession: Execution scope handed to filter hooks
//   - FilterRegistry: Selects the filters applicable to a source format
//   - ItemStore: Item and bundle persistence
//   - BitstreamStore: Bitstream record persistence
//   - FormatRegistry: Bitstream format catalogue
//   - AssetStore: Bitstream content storage
//   - SchedulerStore: Scheduled task state and history
//   - ConfigStore: Application configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or filter package
package driven

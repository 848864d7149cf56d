/*
Package ports defines the driven ports (interfaces) for the storyline engine.

These interfaces decouple playback from external implementations, allowing the
engine to work with various mission sources, progress backends and notification
channels.

# Key Interfaces

  - MissionLoader: Responsible for loading Mission definitions (e.g., from Loam or Memory).
  - ProgressStore: Responsible for persisting and loading ProgressRecords.
  - CompletionNotifier: Receives the mission-completed notification.
  - DistributedLocker: Provides distributed locking for concurrent progress writes.
*/
package ports

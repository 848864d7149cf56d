/*
Package observability provides Prometheus metrics and logging hooks for the
playback engine.

Both are expressed as domain.LifecycleHooks, so they plug into any engine or
session via WithLifecycleHooks and can be stacked with Combine.
*/
package observability

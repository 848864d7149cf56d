/*
Package session serializes progress writes.

Manager wraps a ports.ProgressStore with per-record locks, reference counted so
that idle keys are collected, and optionally a distributed lock so replicas
sharing the store do not interleave read-modify-write cycles on one record.
*/
package session

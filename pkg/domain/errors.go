package domain

import "errors"

// ErrMissionNotFound is returned when a mission ID cannot be found by the loader.
var ErrMissionNotFound = errors.New("mission not found")

// ErrSessionNotFound is returned when a live playback session ID is unknown.
var ErrSessionNotFound = errors.New("session not found")

// ErrProgressNotFound is returned when no progress record exists for a user and mission.
var ErrProgressNotFound = errors.New("progress not found")

// ErrSessionClosed is returned when a command is sent to a session that already stopped.
var ErrSessionClosed = errors.New("session closed")

// ErrUnknownCommand is returned when a playback command name is not recognized.
var ErrUnknownCommand = errors.New("unknown command")

// ErrActionIDRequired is returned when an action completion does not name the mounted action.
var ErrActionIDRequired = errors.New("action id required")

// ErrEmptyMission is returned when a mission without scenes is played.
var ErrEmptyMission = errors.New("mission has no scenes")

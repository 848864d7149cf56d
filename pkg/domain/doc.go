/*
Package domain contains the core domain models of the storyline playback engine.

It defines the authored content (Mission, Scene, Dialogue, Character, Action), the
ephemeral per-scene PlaybackState published by the dialogue state machine, and the
persisted ProgressRecord. This package is kept pure and free of external dependencies
like I/O or persistence.

# Key Entities

  - Mission: an ordered list of Scenes with an identifier and a title.
  - Scene: a background plus an ordered list of Dialogues and a characters map.
  - Dialogue: one turn of speaker text, optional narration audio and optional Action.
  - PlaybackState: the snapshot of the running scene (phase, flags, revealed text).
  - ProgressRecord: the checkpoint persisted after every scene advance.
*/
package domain

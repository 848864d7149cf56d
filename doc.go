/*
Package storyline is a scene and dialogue playback engine for narrative missions.

A mission is an ordered list of scenes; a scene is a background, a cast of
characters and an ordered list of dialogues. Each dialogue may carry narration
audio, typewriter text and an embedded mini-game ("action"). The engine drives
the timing of all of them: background transitions, character entrances,
narration-synchronized typing, action overlays and user advance, and it
checkpoints the player's progress after every scene.

# Concept

The engine is headless. It owns the playback state and emits events; the host
(a browser over HTTP/SSE, a terminal player, an agent over MCP) renders them
and sends commands back. Content, progress storage and completion
notifications are ports with interchangeable adapters.

# Usage

	eng, err := storyline.New("./missions")
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	sess, err := eng.Start(ctx, "user-1", "intro")
	if err != nil {
		log.Fatal(err)
	}

	events, cancel, _ := sess.Subscribe(ctx, 64)
	defer cancel()

	for e := range events {
		if e.Type == domain.EventAdvanceReady {
			_, _ = sess.Send(ctx, storyline.CmdContinue)
		}
	}

Every session runs on its own goroutine; commands and timer callbacks are
serialized there, so the playback core needs no locking.
*/
package storyline

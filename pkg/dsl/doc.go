/*
Package dsl provides a Go DSL for programmatically constructing missions.

It replaces hand-written YAML with a fluent builder, which is useful for tests,
generated content and IDE completion.

Example usage:

	b := dsl.New()

	intro := b.Mission("intro").Title("Welcome Aboard").Intro()

	s1 := intro.Scene("briefing").Background("office").
		Character("hacker", "The Hacker", "hacker.png", domain.PositionRight)

	s1.Say("robot", "Hello, agent.").Narration("audio/intro-1.mp3")
	s1.Say("hacker", "Nobody guesses my password.")
	s1.Action("quiz", map[string]any{"question": "Is 123456 safe?"})

	// The result satisfies ports.MissionLoader.
	loader, err := b.Build()
*/
package dsl

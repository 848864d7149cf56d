package validate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/storyline/pkg/action"
	"github.com/aretw0/storyline/pkg/adapters/memory"
	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/validate"
)

func validMission() *domain.Mission {
	return &domain.Mission{
		ID: "m1",
		Scenes: []domain.Scene{{
			ID:         "s1",
			Background: "office",
			Characters: map[string]domain.Character{"hacker": {Name: "Hacker"}},
			Dialogues: []domain.Dialogue{
				{Speaker: "Robot", Text: "Welcome.", Narration: "a/1.mp3"},
				{Speaker: "hacker", Text: "Hi."},
				{Action: &domain.Action{Type: action.TypeWait}, HasOnlyAction: true},
			},
		}},
	}
}

func TestMission_Valid(t *testing.T) {
	r := validate.Mission(validMission(), validate.WithActions(action.DefaultRegistry()))
	assert.True(t, r.OK(), "unexpected error: %v", r.Err)
	assert.Empty(t, r.Warnings)
}

func TestMission_Errors(t *testing.T) {
	m := validMission()
	m.Scenes = append(m.Scenes, domain.Scene{
		ID: "s1",
		Dialogues: []domain.Dialogue{
			{Text: "both", HasOnlyNarration: true, HasOnlyAction: true, Narration: "x.mp3", Action: &domain.Action{Type: "quiz"}},
			{Text: "no action", HasOnlyAction: true},
			{Text: "no narration", HasOnlyNarration: true},
			{Speaker: "ghost", Text: "boo"},
			{Text: "typeless", Action: &domain.Action{}},
		},
	})

	r := validate.Mission(m)
	require.False(t, r.OK())

	errs := validate.ValidationErrors(r.Err)
	paths := make([]string, 0, len(errs))
	for _, e := range errs {
		var ve *validate.ValidationError
		require.ErrorAs(t, e, &ve)
		paths = append(paths, ve.Path)
	}

	assert.ElementsMatch(t, []string{
		"scenes[1].id",
		"scenes[1].dialogues[0]",
		"scenes[1].dialogues[1].action",
		"scenes[1].dialogues[2].narration",
		"scenes[1].dialogues[3].speaker",
		"scenes[1].dialogues[4].action.type",
	}, paths)
}

func TestMission_NoScenes(t *testing.T) {
	r := validate.Mission(&domain.Mission{ID: "empty"})
	require.Error(t, r.Err)
	assert.Contains(t, r.Err.Error(), "at least one scene")
}

func TestMission_WarningsAndStrict(t *testing.T) {
	m := validMission()
	m.Scenes[0].Dialogues = append(m.Scenes[0].Dialogues,
		domain.Dialogue{Text: "play", Action: &domain.Action{Type: "quiz"}},
		domain.Dialogue{Text: "wav", Narration: "a/2.wav"},
		domain.Dialogue{Text: "declared", Narration: "a/3.wav", NarrationDuration: time.Second},
	)

	r := validate.Mission(m, validate.WithActions(action.DefaultRegistry()))
	assert.True(t, r.OK())
	require.Len(t, r.Warnings, 2)
	assert.Contains(t, r.Warnings[0], `"quiz"`)
	assert.Contains(t, r.Warnings[1], "a/2.wav")

	strict := validate.Mission(m, validate.WithActions(action.DefaultRegistry()), validate.WithStrict(true))
	assert.False(t, strict.OK())
	assert.Len(t, validate.ValidationErrors(strict.Err), 2)
}

func TestLoader(t *testing.T) {
	bad := &domain.Mission{ID: "bad"}
	loader, err := memory.NewLoader(validMission(), bad)
	require.NoError(t, err)

	reports, err := validate.Loader(context.Background(), loader)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "bad", reports[0].MissionID)
	assert.False(t, reports[0].OK())
	assert.Equal(t, "m1", reports[1].MissionID)
	assert.True(t, reports[1].OK())
}

func TestAggregateError_Message(t *testing.T) {
	one := &validate.AggregateError{MissionID: "intro", Errors: []error{
		&validate.ValidationError{Path: "scenes", Reason: "mission needs at least one scene"},
	}}
	assert.Equal(t, "mission intro: scenes: mission needs at least one scene", one.Error())

	many := &validate.AggregateError{MissionID: "intro", Errors: []error{
		&validate.ValidationError{Path: "scenes[0].id", Reason: "duplicate scene id", Value: "s1"},
		&validate.ValidationError{Path: "scenes[1].dialogues[0]", Reason: "only-action dialogue needs an action"},
	}}
	assert.Equal(t, "mission intro: 2 problems\n"+
		"  - scenes[0].id: duplicate scene id (got s1)\n"+
		"  - scenes[1].dialogues[0]: only-action dialogue needs an action", many.Error())
	assert.Nil(t, validate.ValidationErrors(errors.New("plain")))
}

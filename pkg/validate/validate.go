// Package validate checks missions for authoring mistakes before they are played.
//
// The engine tolerates every problem reported here at runtime (it skips or
// falls back), so validation is an authoring aid rather than a gate.
package validate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/storyline/pkg/action"
	"github.com/aretw0/storyline/pkg/audio"
	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/ports"
)

// Report is the outcome of validating one mission.
type Report struct {
	MissionID string
	// Err is an *AggregateError, or nil when the mission is valid.
	Err      error
	Warnings []string
}

// OK reports whether the mission has no errors.
func (r Report) OK() bool { return r.Err == nil }

type config struct {
	actions *action.Registry
	strict  bool
}

// Option configures validation.
type Option func(*config)

// WithActions checks action types against reg; unknown types become warnings.
func WithActions(reg *action.Registry) Option {
	return func(c *config) { c.actions = reg }
}

// WithStrict turns warnings into errors.
func WithStrict(strict bool) Option {
	return func(c *config) { c.strict = strict }
}

// Mission validates a single mission.
func Mission(m *domain.Mission, opts ...Option) Report {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	v := &checker{cfg: cfg}
	if m == nil {
		v.fail("mission", "is nil", nil)
		return v.report("")
	}
	v.mission(m)
	return v.report(m.ID)
}

// Loader validates every mission the loader lists, ordered by id.
// Load failures are reported as errors of the affected mission.
func Loader(ctx context.Context, loader ports.MissionLoader, opts ...Option) ([]Report, error) {
	list, err := loader.ListMissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}

	reports := make([]Report, 0, len(list))
	for _, s := range list {
		m, err := loader.GetMission(ctx, s.ID)
		if err != nil {
			reports = append(reports, Report{
				MissionID: s.ID,
				Err:       &AggregateError{MissionID: s.ID, Errors: []error{&ValidationError{Path: "mission", Reason: err.Error()}}},
			})
			continue
		}
		reports = append(reports, Mission(m, opts...))
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].MissionID < reports[j].MissionID })
	return reports, nil
}

type checker struct {
	cfg      config
	errs     []error
	warnings []string
}

func (v *checker) fail(path, reason string, value any) {
	v.errs = append(v.errs, &ValidationError{Path: path, Reason: reason, Value: value})
}

func (v *checker) warn(path, reason string) {
	if v.cfg.strict {
		v.fail(path, reason, nil)
		return
	}
	v.warnings = append(v.warnings, path+": "+reason)
}

func (v *checker) report(id string) Report {
	r := Report{MissionID: id, Warnings: v.warnings}
	if len(v.errs) > 0 {
		r.Err = &AggregateError{MissionID: id, Errors: v.errs}
	}
	return r
}

func (v *checker) mission(m *domain.Mission) {
	if m.ID == "" {
		v.fail("id", "required", nil)
	}
	if len(m.Scenes) == 0 {
		v.fail("scenes", "mission needs at least one scene", nil)
	}

	seen := make(map[string]int)
	for i := range m.Scenes {
		s := &m.Scenes[i]
		path := fmt.Sprintf("scenes[%d]", i)

		if s.ID == "" {
			v.warn(path+".id", "scene has no id; progress records will store an empty scene")
		} else if prev, dup := seen[s.ID]; dup {
			v.fail(path+".id", fmt.Sprintf("duplicate scene id, first used by scenes[%d]", prev), s.ID)
		} else {
			seen[s.ID] = i
		}

		if len(s.Dialogues) == 0 {
			v.warn(path+".dialogues", "scene has no dialogues and completes immediately")
		}
		for j, d := range s.Dialogues {
			v.dialogue(fmt.Sprintf("%s.dialogues[%d]", path, j), m, s, d)
		}
	}
}

func (v *checker) dialogue(path string, m *domain.Mission, s *domain.Scene, d domain.Dialogue) {
	if d.HasOnlyNarration && d.HasOnlyAction {
		v.fail(path, "has_only_narration and has_only_action are mutually exclusive", nil)
	}
	if d.HasOnlyAction && !d.HasAction() {
		v.fail(path+".action", "has_only_action requires an action with a type", nil)
	}
	if d.HasOnlyNarration && !d.HasNarration() {
		v.fail(path+".narration", "has_only_narration requires a narration asset", nil)
	}
	if d.Action != nil && d.Action.Type == "" {
		v.fail(path+".action.type", "required", nil)
	}

	if d.Speaker != "" && !strings.EqualFold(d.Speaker, m.NarratorID()) {
		if _, ok := s.Characters[d.Speaker]; !ok {
			v.fail(path+".speaker", "speaker is not a character of the scene", d.Speaker)
		}
	}

	if d.HasAction() && v.cfg.actions != nil && !v.cfg.actions.Has(d.Action.Type) {
		v.warn(path+".action.type", fmt.Sprintf("no component registered for %q; the overlay will stay empty", d.Action.Type))
	}

	if d.HasNarration() && d.NarrationDuration <= 0 && !audio.Measurable(d.Narration) {
		v.warn(path+".narration", fmt.Sprintf("duration of %q cannot be measured; set narration_duration", d.Narration))
	}
	if d.NarrationDuration < 0 {
		v.fail(path+".narration_duration", "must not be negative", d.NarrationDuration)
	}
}

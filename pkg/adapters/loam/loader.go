// Package loam loads missions from a Loam content repository.
//
// Each mission is one document (Markdown with frontmatter, YAML or JSON). The
// frontmatter carries the mission fields and the body, when present, becomes
// the description.
package loam

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/loam"
	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/ports"
)

var (
	_ ports.MissionLoader = (*Loader)(nil)
	_ ports.Watchable     = (*Loader)(nil)
)

// Loader adapts a Loam repository to ports.MissionLoader.
type Loader struct {
	Repo *loam.TypedRepository[MissionMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[MissionMetadata]) *Loader {
	return &Loader{Repo: repo}
}

// Open initializes a read-only, strict Loam repository at dir.
func Open(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	// Strict mode keeps numbers as json.Number across serializers.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[MissionMetadata](repo)), nil
}

// GetMission retrieves a mission by ID. The document name is tried first, then
// the id declared in the frontmatter.
func (l *Loader) GetMission(ctx context.Context, id string) (*domain.Mission, error) {
	doc, err := l.Repo.Get(ctx, id)
	if err == nil {
		m, err := toMission(doc.ID, doc.Data, doc.Content)
		if err != nil {
			return nil, err
		}
		if m.ID == id {
			return m, nil
		}
	}

	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}
	for _, doc := range docs {
		if missionID(doc.ID, doc.Data) != id {
			continue
		}
		return toMission(doc.ID, doc.Data, doc.Content)
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrMissionNotFound, id)
}

// ListMissions lists all missions in the repository ordered by ID.
func (l *Loader) ListMissions(ctx context.Context) ([]domain.MissionSummary, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	out := make([]domain.MissionSummary, 0, len(docs))

	for _, doc := range docs {
		id := missionID(doc.ID, doc.Data)

		if existing, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: mission '%s' is defined in both '%s' and '%s'", id, existing, doc.ID)
		}
		seen[id] = doc.ID

		title := doc.Data.Title
		if title == "" {
			title = id
		}
		out = append(out, domain.MissionSummary{ID: id, Title: title, Scenes: len(doc.Data.Scenes)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Watch implements ports.Watchable. Bursts of changes collapse into one signal.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan struct{}, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()

	return ch, nil
}

func missionID(docID string, meta MissionMetadata) string {
	if meta.ID != "" {
		return trimExtension(meta.ID)
	}
	return trimExtension(docID)
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

func toMission(docID string, meta MissionMetadata, content string) (*domain.Mission, error) {
	m := &domain.Mission{
		ID:          missionID(docID, meta),
		Title:       meta.Title,
		Intro:       meta.Intro,
		HomeBase:    meta.HomeBase,
		Narrator:    meta.Narrator,
		Description: meta.Description,
	}
	if m.Description == "" {
		m.Description = strings.TrimSpace(content)
	}

	scenes, err := DecodeScenes(meta.Scenes)
	if err != nil {
		return nil, fmt.Errorf("mission %s: %w", m.ID, err)
	}
	m.Scenes = scenes
	return m, nil
}

// DecodeScenes converts raw frontmatter scenes into domain scenes.
// Durations accept Go duration strings ("2.5s") or a number of milliseconds.
func DecodeScenes(raw []any) ([]domain.Scene, error) {
	scenes := make([]domain.Scene, 0, len(raw))
	if len(raw) == 0 {
		return scenes, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &scenes,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			millisecondsToDuration,
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode scenes: %w", err)
	}
	return scenes, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func millisecondsToDuration(from, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	switch v := data.(type) {
	case json.Number:
		ms, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q: %w", v, err)
		}
		return time.Duration(ms * float64(time.Millisecond)), nil
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case int64:
		return time.Duration(v) * time.Millisecond, nil
	case float64:
		return time.Duration(v * float64(time.Millisecond)), nil
	}
	return data, nil
}

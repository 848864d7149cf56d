package loam

// MissionMetadata is the frontmatter of a mission document.
// Scenes stay raw so durations and numbers can be decoded with the loader's
// own hooks regardless of how the serializer typed them.
type MissionMetadata struct {
	ID       string `json:"id" mapstructure:"id"`
	Title    string `json:"title" mapstructure:"title"`
	Intro    bool   `json:"intro" mapstructure:"intro"`
	HomeBase string `json:"home_base" mapstructure:"home_base"`
	Narrator string `json:"narrator" mapstructure:"narrator"`

	// Description overrides the document body.
	Description string `json:"description,omitempty" mapstructure:"description"`

	Scenes []any `json:"scenes" mapstructure:"scenes"`
}

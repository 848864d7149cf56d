package domain

// Action describes an embedded mini-game declared on a dialogue.
type Action struct {
	Type string         `json:"type" yaml:"type" mapstructure:"type"`
	Data map[string]any `json:"data,omitempty" yaml:"data,omitempty" mapstructure:"data"`
}

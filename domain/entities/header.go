package entities

// Header is the identity and layout record a library declares about itself.
// The host reads it before any library code runs and rejects the library if
// the identity, version or layout is incompatible.
type Header struct {
	// BaseName is the root module family, "viow_plugin" for every loader library.
	BaseName string `json:"base_name" yaml:"base_name" validate:"required"`

	// Name is the logical name of the root module.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Version is the semantic version of the contract the library was built against.
	Version string `json:"version" yaml:"version" validate:"required,semver"`

	// PluginFields is the number of ViowPlugin table fields the library provides.
	PluginFields int `json:"plugin_fields" yaml:"plugin_fields" validate:"gte=1"`

	// LoaderFields is the number of FiletypeLoader table fields; 0 when the
	// plugin offers no loader.
	LoaderFields int `json:"loader_fields,omitempty" yaml:"loader_fields,omitempty" validate:"gte=0"`

	// SessionFields is the number of WaveLoad table fields.
	SessionFields int `json:"session_fields,omitempty" yaml:"session_fields,omitempty" validate:"gte=0"`

	// Description is free text shown by tooling.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

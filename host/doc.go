// Package host loads viow plugin libraries into a wazero runtime.
//
// A library is a wasip1 reactor module. Before any of its code runs, the
// executor reads its header from the "viow_plugin" custom section (or a
// <name>.viow.yaml sidecar), checks identity, version and layout, and checks
// that every export backing a declared table field is present with the right
// signature. Only then is the module instantiated and its exports bound into
// viow.ViowPlugin, viow.FiletypeLoader and viow.WaveLoad tables.
//
// Calls into one instance are serialized; instances run independently.
package host

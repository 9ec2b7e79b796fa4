// Package ports defines the interfaces that connect the domain to plugin
// implementations and infrastructure adapters.
package ports

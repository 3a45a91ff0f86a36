// Package cli defines the Cobra command tree for the projbuilder CLI. The root
// command builds a project; doctor, config and version are subcommands.
// Commands delegate to internal packages for the work and only handle flag
// parsing, output formatting and user interaction.
package cli

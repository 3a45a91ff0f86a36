// Package config manages user-level settings stored at ~/.projbuilder/config.yaml.
// Values resolve in viper order: command-line flag, PROJBUILDER_* environment
// variable, config file, then the defaults registered here.
package config

// Package config loads process settings from the environment and
// provisioning documents (services, collections, accounts) from CUE or YAML
// files.
package config

// Package config loads and validates the orchestrator configuration: where
// the credentials and ledger live, how poll loops are bounded, and which
// public port range endpoint assignment may draw from. Values come from a
// YAML file with environment variable overrides for the timeout knobs.
package config

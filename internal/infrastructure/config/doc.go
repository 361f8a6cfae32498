// Package config handles loading and validating shopgate configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (SHOPGATE_*)
//   - Validation of required fields, reported all at once
//
// Security Considerations:
//   - Secrets (JWT key, bootstrap password, broker credentials) should come from the environment
//   - The JWT secret is never defaulted; startup fails without one
//   - The development console defaults to disabled
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config

// Package config handles loading and validating the Dynalite bridge
// service configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The per-network bridge configuration (areas, presets, templates) lives in
// its own file, loaded by the dynalite package; this package only points at
// it through dynalite.config_file.
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token) should be set via
//     environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Dynalite.ConfigFile)
package config

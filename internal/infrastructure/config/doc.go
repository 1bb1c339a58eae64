// Package config handles loading and validating mysnode configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (MYSNODE_*)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Broker credentials and the InfluxDB token should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - Controller-triggered reboots stay disabled unless host.reboot.enabled is set
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Node.SketchName)
package config

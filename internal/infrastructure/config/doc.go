// Package config loads the PowerTag monitor's YAML configuration.
//
// Load reads the file, applies POWERTAG_* environment overrides, fills
// defaults (including per-encoding register lengths and regions) and
// validates the gateway, register and device tables together, so a
// device naming an unknown gateway fails at startup.
//
// The registers list is ordered. That order is the column order of
// every row, CSV line and API response, so it is kept as written.
//
// Keep webhook URLs and broker passwords in the environment rather than
// the file.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	interval := cfg.GetPollInterval()
package config

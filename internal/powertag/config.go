package powertag

import (
	"github.com/nerrad567/powertag-monitor/internal/infrastructure/config"
)

// GatewaysFromConfig returns the configured gateways in file order.
// A gateway without its own port inherits modbus.port.
func GatewaysFromConfig(cfg config.ModbusConfig) []Gateway {
	out := make([]Gateway, 0, len(cfg.Gateways))
	for _, gw := range cfg.Gateways {
		port := gw.Port
		if port == 0 {
			port = cfg.Port
		}
		out = append(out, Gateway{
			Name:   gw.Name,
			Host:   gw.Host,
			Port:   port,
			Device: gw.Device,
		})
	}
	return out
}

// TagsFromConfig returns the configured devices in file order.
func TagsFromConfig(cfgs []config.PowerTagConfig) []PowerTag {
	out := make([]PowerTag, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, PowerTag{
			DeviceID: uint8(c.DeviceID), //nolint:gosec // Range checked by config validation
			Name:     c.Name,
			Gateway:  c.Gateway,
		})
	}
	return out
}

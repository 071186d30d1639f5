// Package modbus implements the gateway session used to read PowerTag
// registers over Modbus TCP or RTU.
//
// One Client is opened per configured gateway and kept for the life of the
// process. The wire protocol is provided by github.com/simonvetter/modbus;
// this package adds unit-id switching, error classification and reconnect
// after a broken transport.
//
// # Architecture
//
//	┌──────────────┐  ReadWords   ┌──────────────┐  Modbus TCP  ┌──────────┐
//	│   sampler    │─────────────►│ modbus.Client│─────────────►│ gateway  │──► PowerTags
//	└──────────────┘              └──────────────┘              └──────────┘
//
// Client satisfies register.Source.
//
// # Addresses
//
// Gateway hosts may be IPv6 link-local addresses with a zone, for example
// "fe80::200:54ff:fee9:3aee%eth0". They are bracketed when the URL is built.
package modbus

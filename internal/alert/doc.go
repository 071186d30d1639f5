// Package alert checks decoded rows against operator thresholds.
//
// Rules (boundaries exclusive):
//   - voltage above the high limit: "HIGH VOLTAGE: <v>V"
//   - otherwise voltage below the low limit: "LOW VOLTAGE: <v>V"
//   - current above the high limit: "HIGH CURRENT: <a>A"
//
// A breaching device produces at most one Event per cooldown window. All
// messages from one row go into that single event.
package alert

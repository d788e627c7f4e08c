// Package rate throttles failed logins for the demo server.
//
// # Window semantics
//
// Fixed-window counters: INCR, then EXPIRE on the first hit. Keys:
//   - <prefix>:login:id:<identifier> counts failures per lower-cased identifier
//   - <prefix>:login:ip:<ip> counts failures per client address
//
// The package knows nothing about tokens and must not be imported by the engine.
package rate

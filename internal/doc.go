// Package internal holds the pieces of the gosession service that are not part of the
// public library API.
//
// # Sub-packages
//
//   - directory: YAML-backed user directory consulted at login
//   - rate: Redis-backed login attempt throttle
//   - server: gin HTTP surface over the engine
package internal

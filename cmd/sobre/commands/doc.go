// Package commands implements the sobre CLI surface.
//
// Identity login and credential acquisition live with the external identity
// provider; commands take the resulting identity and bearer token as flags
// and wire the messaging core around them.
package commands

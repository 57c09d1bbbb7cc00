// Package app wires application dependencies for the CLI.
//
// It builds the concrete stores, clients and services from Config, exposing
// them via the Wire struct for commands to use. Nothing here is global: the
// session object carries the backend credential, directory client and
// transport handle explicitly.
package app

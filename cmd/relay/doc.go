// Command relay runs the development directory and relay server.
//
// Configuration comes from the environment (a .env file is honored):
//
//	SOBRE_RELAY_ADDR   listen address (default :8080)
//	SOBRE_RELAY_TOKEN  optional bearer token required on /api requests
//	SOBRE_LOG_LEVEL    zerolog level (default info)
package main

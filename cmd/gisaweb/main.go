// GiSaWeb is a unification gateway for OpenAI-compatible model backends.
//
// It aggregates the model catalogs of multiple upstream connections into one
// namespace, routes chat completions to the connection owning the requested
// model, translates payloads between provider dialects, and relays streaming
// responses unchanged.
//
// Usage:
//
//	# Start the gateway with the default configuration file
//	gisaweb run
//
//	# Start with a custom configuration file
//	gisaweb run --config /etc/gisaweb/config.yaml
//
//	# Show version information
//	gisaweb version
package main

func main() {
	Execute()
}

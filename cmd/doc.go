// # Available Commands
//
//   - serve: Start the development server and rebuild when documents change
//   - build: Run the project build once
//   - routes: List the route tree as a table, JSON or YAML
//   - config: Print the resolved configuration
//   - version: Show version information
//
// # Command Examples
//
//	// Start the development server with rebuilds and live reload
//	cwrap serve --dev --port 3000
//
//	// Run the development build once and fail on errors
//	cwrap build --dev
//
//	// List routes as JSON
//	cwrap routes -o json
//
// # Configuration
//
// Commands read .cwrap.yml from the working directory unless --config or
// CWRAP_CONFIG_FILE names another file. Flags override environment variables,
// which override the file.
package cmd

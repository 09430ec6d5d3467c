// Package handlers implements the business logic for ogc commands.
//
// Each exported function backs one command. Handlers open the run
// environment (plan, inventory, providers, logger), call into the
// provisioning packages and render the outcome. Factory variables can be
// replaced in tests.
package handlers

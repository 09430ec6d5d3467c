// Package testing provides test utilities, builders, and fixtures for unit and integration tests.
//
// This package centralizes common testing patterns to avoid duplication across test files:
//   - PlanBuilder: Fluent builder for creating test plans
//   - WriteKeyPair / WriteScripts: on-disk fixtures for keys and script directories
//   - MockAdapter: testify mock of provider.Adapter
//
// Usage:
//
//	plan := testing.NewPlanBuilder(t).
//	    WithLayout("web", "fake", 3).
//	    WithScripts("web", map[string]string{"10-base": "echo ok"}).
//	    Build()
package testing

// Package async provides bounded parallel execution with join barriers.
//
// [Pool] caps how many jobs run at once. [Submit] schedules a batch of
// jobs and returns one [Future] per job; [JoinAll] waits for a batch
// under a shared deadline and reports every outcome in submission order.
// Callers build two-phase pipelines by joining one batch before
// submitting the next.
//
// [RunParallel] is the unbounded variant for a handful of independent
// cleanup steps.
package async

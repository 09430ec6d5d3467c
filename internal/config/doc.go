// Package config loads the plan file that describes the desired fleet.
//
// A [Plan] names a set of [Layout] entries, each describing one group of
// identical nodes: where they run, how many there should be, and which
// scripts prepare them. Plans are read from YAML or TOML with environment
// references expanded, normalized (keys and paths resolved, layout names
// filled in) and validated before anything touches a provider.
//
// Operational tunables that are not part of the plan (timeouts, worker
// count, data directory, artifact sink) come from OGC_* environment
// variables; see [LoadTimeouts].
package config

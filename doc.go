// Package mergetree implements the merge planner and executor of a
// log-structured, partition-oriented columnar table engine.
//
// Data for a table lives as an ordered collection of immutable, sorted parts.
// Selector chooses contiguous runs of adjacent parts worth merging; Executor
// reads the chosen parts as sorted streams, k-way merges them under one of
// several row-combining modes, and publishes the result to a PartSet with a
// single atomic swap.
package mergetree

// Command loom is the CLI for the transcript knowledge engine. It ingests
// SRT subtitle files into atom stores, drives incremental segment analysis,
// and renders the aggregated entity, topic, and graph indexes.
package main

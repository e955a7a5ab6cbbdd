// Package pipeline runs one ingestion end to end.
//
// A run is linear and single pass:
//
//	acquire -> filter -> secret scan -> decode -> count -> summarize -> chunk -> load
//
// Per-file problems (denied path, undecodable content, secret findings)
// skip the file and are logged and counted. Acquisition, configuration,
// scanner and load failures abort the run.
package pipeline

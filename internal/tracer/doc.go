// Package tracer records function call traces.
//
// Two layers exist. The Log mirrors what an instrumented module writes
// from inside WebAssembly: raw (kind, data) records in a bounded ring,
// exactly the operand pairs passed to the injected __log_call. The
// Recorder holds the human-readable trace buffer of
// "entering function X" / "exiting function X" strings. Replay bridges
// the two by walking raw records with a call stack and resolving
// function indices to names.
//
// Both layers are explicit values handed to callers, never ambient
// process state, so traces from separate runs cannot contaminate each
// other.
package tracer

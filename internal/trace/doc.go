// Package trace records what the lowering driver is doing while it runs.
//
// Events come in three scopes. ScopeDriver covers the whole invocation
// (loading the configuration, fanning units out to workers, writing
// outputs). ScopeUnit covers one unit file from load to symbol table.
// ScopeItem covers a single type or intrinsic call inside a unit and is
// only emitted at LevelDebug.
//
//	gotolower lower --trace=- --trace-level=detail demo.unit.toml
//
// A tracer travels through the pipeline in the context:
//
//	ctx = trace.WithTracer(ctx, tr)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeUnit, "unit:demo", 0)
//	defer span.End("")
//
// StreamTracer writes every event as it happens, RingTracer keeps the last
// N events for a dump after a crash, MultiTracer feeds both.
package trace

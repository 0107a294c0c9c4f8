// Package engine is the top-level orchestrator: it owns the task queue, the
// scheduler that drains it, every open per-index store, and the
// snapshot/dump/admission subsystems, and exposes the operations a
// transport layer (CLI or HTTP) calls into.
//
// Every mutation is a two-step affair: a public *Task method enqueues a
// task carrying an opaque payload, and the scheduler later dispatches it
// back into the engine through the scheduler.Runner interface. Reads
// (Search) bypass the queue and run synchronously under admission control.
package engine

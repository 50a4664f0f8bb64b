// Package trampoline generates the per-signature adapters that let a
// runtime call compiled functions through one uniform entry shape:
//
//	trampoline(ctx, callee, args, returns)
//
// where args and returns are buffers of 8-byte slots (v128 takes two).
// Each trampoline loads its arguments from args, passes the VM context and
// an optional struct-return pointer as the calling convention dictates,
// calls the callee and writes results back into returns.
//
// Whether results come back in registers or through a caller-allocated
// aggregate is decided by the target's return policy; see [ShapeOf].
// Generation runs over a worker pool and is all-or-nothing.
package trampoline

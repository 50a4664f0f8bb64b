// Package abi defines the generic calling convention shared by compiled
// code, trampolines and the host.
//
// Arguments and results travel through a Buffer of 64-bit slots. Every
// value takes one slot except v128, which takes two consecutive slots.
// SlotCount is the single definition of that rule.
//
// A callee whose result widths are not in the target's ReturnPolicy
// returns indirectly: the trampoline allocates an Aggregate, passes it as
// CallSite.SRet and copies the fields out after the call.
package abi

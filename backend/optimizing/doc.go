// Package optimizing is the mid-tier backend. Function bodies are lowered
// by wazero's optimizing compiler; lowered functions mark their
// struct-return and context parameters with ArgumentPurpose annotations,
// which trampolines re-attach at every call site.
package optimizing

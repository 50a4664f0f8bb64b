// Package aggressive is the heavyweight optimizing backend.
//
// It insists on a modern vector unit (AVX2 on x86-64, NEON on AArch64)
// and fails with MissingRequiredFeature otherwise. Lowered functions
// describe their struct-return and context pointers with LLVM-style
// parameter attributes (sret, noalias, nocapture, align, dereferenceable,
// nonnull), and NaN results are canonicalized by default.
//
// The target machine can be inspected before compiling:
//
//	cfg := aggressive.New(target.Host())
//	tm, err := cfg.TargetMachine()
//	if err != nil {
//		return err
//	}
//	fmt.Println(tm.FeatureString())
package aggressive

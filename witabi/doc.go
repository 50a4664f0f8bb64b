// Package witabi maps WIT function types onto core WebAssembly signatures
// using the canonical ABI flattening rules, so that component-level
// functions can be declared into a module's signature table and get
// trampolines like any core function.
//
//	sigs := witabi.Declare(mod, witabi.Lift, witabi.Func{
//		Name:   "greet",
//		Params: []witabi.Param{{Name: "name", Type: wit.String{}}},
//		Result: wit.String{},
//	})
package witabi

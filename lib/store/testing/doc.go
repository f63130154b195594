// Package testing provides a standardized conformance test suite for
// implementations of the positional store contract (store.Engine and
// store.IStore).
//
//   - RunEngineTests: validates the structural-edit semantics (insert,
//     delete, replace), batch atomicity, id stability, lifecycle pinning
//     and persistence of an engine implementation.
//
// Engines are expected to advertise optional capabilities through
// SupportsFeature; tests for unsupported features are skipped.
//
// Usage Example:
//
//	func Test(t *testing.T) {
//		storetesting.RunEngineTests(t, "MemStore", func() store.Engine {
//			return memstore.NewEngine(nil)
//		})
//	}
package testing

// Package csync provides small thread-safe collections.
//
// Example usage:
//
//	states := csync.NewMap[string, FileState]()
//	states.Set("main.go", FileState{Chunks: 3})
//	if st, ok := states.Get("main.go"); ok {
//		// use st
//	}
package csync

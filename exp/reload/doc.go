// Package reload swaps the module set of a running hexy application.
//
// Reconciler is the core type and performs:
// 1. build the next application from the new module set
// 2. reuse instances whose provider is unchanged and whose dependencies were not rebuilt
// 3. prewarm rebuilt singletons
// 4. atomically swap the current application
// 5. tear down expired instances of the old application in reverse construction order
//
// This package is EXPERIMENTAL and its API may change before v1.
package reload

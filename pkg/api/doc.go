// Package api defines the public contract of the sagaflow orchestration
// core: the stage and status enums, the Step and Compensator interfaces,
// the persisted Instance record, retry policies, the immutable stage
// Registry, and the Engine and Observer interfaces.
//
// The package contains no engine logic; it exists so that step
// implementations, stores, and observers can be written against stable
// types without importing internal packages.
package api

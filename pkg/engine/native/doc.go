// Package native binds the accelerator inference runtime.
//
// The real engine is compiled with the cuda build tag and links libva2f,
// a thin C shim over the vendor SDK whose contract is va2f.h in this
// directory. Default builds get a stub whose provider fails fast with
// ErrNotBuilt, keeping CI and development binaries CGO-free; the sim
// engine covers those environments.
//
// Host staging destinations must come from the bundle's NewHostBuffer:
// the shim queues asynchronous device-to-host copies and requires pinned
// memory that outlives the call.
package native

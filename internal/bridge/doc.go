// Package bridge moves gridded numeric data between host memory and the
// engine's variable space.
//
// Transfers go through a side-channel file rather than the text pipe. For
// an export the engine writes the file (ipc_save) and the bridge decodes it;
// for an import the bridge writes the file and the engine loads it
// (ipc_load). Transfer files live under the configured transfer directory,
// are named grads-<uuid>.ipc and are removed on every exit path.
//
// The file layout (version ipc1) is:
//
//	int32   nx, ny, nz, nt
//	float64 undef
//	float64 lon[nx], lat[ny], lev[nz], time[nt]
//	float32 data[nx*ny*nz*nt]
//
// Data is ordered with longitude varying fastest, then latitude, level and
// time. Time coordinates are hours since 1970-01-01 UTC. The byte order
// follows the engine's build.
package bridge

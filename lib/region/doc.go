// Package region owns the shared IPC memory regions that legacy clients reference
// by an opaque identifier.
//
// A legacy client allocates a named, fixed size memory region, registers the name
// under a process visible identifier and then only sends the identifier plus an
// offset. The Manager resolves the identifier to a name (INameResolver), maps the
// named region read/write (IMapper) and hands out a borrowed view of it.
//
// Invariants:
//
//   - At most one region is mapped at any time.
//   - Switching to another identifier unmaps the previous region and releases its
//     handle before the new one is resolved and mapped.
//   - A failed resolve leaves no region mapped.
//   - A view returned by Resolve is valid until the next Resolve with a different
//     identifier or until Close.
//
// The Manager is not safe for concurrent use. The bridge accesses it from its single
// event loop only.
//
// On unix systems the default mapper opens the named region as a file inside a
// shared memory directory (usually /dev/shm) and maps it with mmap.
package region

// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory layer for hioload-nio.
// MemoryManager allocates heap buffers (recycled through bytebufferpool) and
// direct buffers (anonymous mappings on Linux). ThreadCache keeps one
// reusable scratch record per worker slot, used to stage heap data before
// it is written to a socket.
// See bufferpool.go and threadcache.go for implementation details.
package pool

// Package buffer
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Position/limit byte buffers used by the transport engine. A ByteBuffer is
// either native (direct), backed by memory a socket channel can consume
// without copying, or heap-backed and staged through a scratch buffer
// before it reaches the wire. A CompositeBuffer chains discontiguous
// segments for scatter/gather I/O.
package buffer

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp implements the non-blocking TCP transport: lifecycle state
// machine, listening-connection registry, outbound connect, socket option
// configuration, event dispatch to protocol processors and the read/write
// engines that move bytes between buffers and sockets with explicit
// partial-operation semantics.
package tcp

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the poll-mode run-loop used by the TCP transport:
// a Runner multiplexes many non-blocking sockets on one goroutine with
// one-shot readiness interest, and a Pool distributes channels across
// runners round-robin. The Linux backend is epoll; other platforms report
// the reactor as unsupported.
package reactor

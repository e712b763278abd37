// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

// Package fake provides scripted, in-memory stand-ins for sockets, socket
// options and monitoring probes. Behavior is predictable and controllable
// so the transport engines can be tested without a network.
package fake

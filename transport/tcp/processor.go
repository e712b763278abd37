// File: transport/tcp/processor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Protocol processor capability invoked per I/O event.

package tcp

import "context"

// Processor handles connection events on behalf of a protocol layer.
// OnReadReady and OnWriteReady return true to keep the connection
// monitored for the same event.
type Processor interface {
	OnAccepted(ctx context.Context, c *Connection) error
	OnConnected(ctx context.Context, c *Connection) error
	OnReadReady(ctx context.Context, c *Connection) (bool, error)
	OnWriteReady(ctx context.Context, c *Connection) (bool, error)
}

// ProcessorFuncs adapts functions to Processor. Nil members are no-ops;
// a nil ready func stops monitoring.
type ProcessorFuncs struct {
	Accepted   func(ctx context.Context, c *Connection) error
	Connected  func(ctx context.Context, c *Connection) error
	ReadReady  func(ctx context.Context, c *Connection) (bool, error)
	WriteReady func(ctx context.Context, c *Connection) (bool, error)
}

var _ Processor = ProcessorFuncs{}

func (p ProcessorFuncs) OnAccepted(ctx context.Context, c *Connection) error {
	if p.Accepted == nil {
		return nil
	}
	return p.Accepted(ctx, c)
}

func (p ProcessorFuncs) OnConnected(ctx context.Context, c *Connection) error {
	if p.Connected == nil {
		return nil
	}
	return p.Connected(ctx, c)
}

func (p ProcessorFuncs) OnReadReady(ctx context.Context, c *Connection) (bool, error) {
	if p.ReadReady == nil {
		return false, nil
	}
	return p.ReadReady(ctx, c)
}

func (p ProcessorFuncs) OnWriteReady(ctx context.Context, c *Connection) (bool, error) {
	if p.WriteReady == nil {
		return false, nil
	}
	return p.WriteReady(ctx, c)
}

// StandaloneProcessor leaves all I/O to explicit Read and Write calls.
// It never consumes readiness and always stops monitoring.
type StandaloneProcessor struct{}

func (StandaloneProcessor) OnAccepted(context.Context, *Connection) error  { return nil }
func (StandaloneProcessor) OnConnected(context.Context, *Connection) error { return nil }

func (StandaloneProcessor) OnReadReady(context.Context, *Connection) (bool, error) {
	return false, nil
}

func (StandaloneProcessor) OnWriteReady(context.Context, *Connection) (bool, error) {
	return false, nil
}

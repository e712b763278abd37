// File: transport/tcp/configure.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ChannelConfigurer applies socket options to accepted and connected
// channels. Every option is attempted independently; a failure is logged
// and never prevents the channel from being used.

package tcp

import (
	"time"

	"go.uber.org/zap"

	"github.com/momentics/hioload-nio/api"
)

// ChannelConfigurer carries the option values taken from Config.
type ChannelConfigurer struct {
	Linger       int
	KeepAlive    bool
	NoDelay      bool
	ReuseAddress bool
	// Timeout is applied as SO_RCVTIMEO/SO_SNDTIMEO when positive.
	Timeout time.Duration
	Log     *zap.Logger
}

func newChannelConfigurer(cfg *Config) ChannelConfigurer {
	return ChannelConfigurer{
		Linger:       cfg.Linger,
		KeepAlive:    cfg.KeepAlive,
		NoDelay:      cfg.TCPNoDelay,
		ReuseAddress: cfg.ReuseAddress,
		Timeout:      cfg.ClientSocketTimeout,
		Log:          cfg.Logger,
	}
}

// Configure applies the options and returns the ones that failed.
func (c ChannelConfigurer) Configure(opts SocketOptions) []*api.OptionError {
	if opts == nil {
		return nil
	}
	var failed []*api.OptionError
	apply := func(name string, value any, set func() error) {
		if err := set(); err != nil {
			oe := &api.OptionError{Option: name, Value: value, Err: err}
			if c.Log != nil {
				c.Log.Warn("can not set socket option", zap.String("option", name),
					zap.Any("value", value), zap.Error(err))
			}
			failed = append(failed, oe)
		}
	}

	apply("nonBlocking", true, func() error { return opts.SetNonblocking(true) })
	if c.Linger >= 0 {
		apply("linger", c.Linger, func() error { return opts.SetLinger(c.Linger) })
	}
	apply("keepAlive", c.KeepAlive, func() error { return opts.SetKeepAlive(c.KeepAlive) })
	apply("tcpNoDelay", c.NoDelay, func() error { return opts.SetNoDelay(c.NoDelay) })
	apply("reuseAddress", c.ReuseAddress, func() error { return opts.SetReuseAddress(c.ReuseAddress) })
	if c.Timeout > 0 {
		apply("readTimeout", c.Timeout, func() error { return opts.SetReadTimeout(c.Timeout) })
		apply("writeTimeout", c.Timeout, func() error { return opts.SetWriteTimeout(c.Timeout) })
	}
	return failed
}

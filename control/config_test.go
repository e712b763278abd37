package control

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/momentics/hioload-nio/transport/tcp"
)

func TestReloader_AppliesToEveryTransport(t *testing.T) {
	a := tcp.New(tcp.WithName("a"))
	b := tcp.New(tcp.WithName("b"))
	r := NewReloader(a)
	r.Add(b)

	reloads := 0
	r.OnReload(func() { reloads++ })
	r.Reload(func(c *tcp.Config) { c.ReadBufferSize = 4096 })

	assert.Equal(t, 4096, a.Config().ReadBufferSize)
	assert.Equal(t, 4096, b.Config().ReadBufferSize)
	assert.Equal(t, "b", b.Name())
	assert.Equal(t, 1, reloads)
}

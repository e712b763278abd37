package control

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/transport/tcp"
)

type stateStub struct {
	name  string
	state api.State
}

func (s *stateStub) Name() string     { return s.name }
func (s *stateStub) State() api.State { return s.state }

func probeStatus(h http.Handler, path string) int {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code
}

func TestHealthHandler_ReadyOnlyWhileStarted(t *testing.T) {
	src := &stateStub{name: "edge", state: api.StateStopped}
	h := NewHealthHandler(src)

	assert.Equal(t, http.StatusOK, probeStatus(h, "/live"))
	assert.Equal(t, http.StatusServiceUnavailable, probeStatus(h, "/ready"))

	src.state = api.StateStarted
	assert.Equal(t, http.StatusOK, probeStatus(h, "/ready"))

	src.state = api.StatePaused
	assert.Equal(t, http.StatusServiceUnavailable, probeStatus(h, "/ready"))
}

func TestReadinessCheck_Transport(t *testing.T) {
	tr := tcp.New(tcp.WithName("edge"))
	err := ReadinessCheck(tr)()
	assert.EqualError(t, err, "transport edge is stopped")
}

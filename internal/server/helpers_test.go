package server

import (
	"sync"
	"testing"

	"github.com/npezzotti/harmony-hub/internal/stats"
	"github.com/npezzotti/harmony-hub/internal/testutil"
	"github.com/stretchr/testify/mock"
)

// fakeConn records every delivered message.
type fakeConn struct {
	mu     sync.Mutex
	msgs   []*ServerMessage
	full   bool
	closed bool
}

func (f *fakeConn) Deliver(msg *ServerMessage) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.full {
		return false
	}
	f.msgs = append(f.msgs, msg)
	return true
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}

func (f *fakeConn) messages() []*ServerMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*ServerMessage, len(f.msgs))
	copy(out, f.msgs)
	return out
}

func (f *fakeConn) events(name string) []*ServerMessage {
	var out []*ServerMessage
	for _, m := range f.messages() {
		if m.Event == name {
			out = append(out, m)
		}
	}
	return out
}

func newTestRelay(t *testing.T) (*Registry, *Relay) {
	logger := testutil.TestLogger(t)
	reg := NewRegistry(logger)
	return reg, NewRelay(reg, logger, stats.NoopStats{})
}

// newTestChatServer creates a ChatServer with a stats mock that accepts
// every counter update.
func newTestChatServer(t *testing.T, db Store) *ChatServer {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return().Times(4)
	su.On("Incr", mock.Anything).Return()
	su.On("Decr", mock.Anything).Return()

	cs, err := NewChatServer(testutil.TestLogger(t), db, su, 0)
	if err != nil {
		t.Fatalf("failed to create test ChatServer: %v", err)
	}
	return cs
}

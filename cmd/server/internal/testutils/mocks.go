package testutils

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// MockClient simulates a connected websocket client
type MockClient struct {
	IDVal string

	Mu     sync.Mutex
	Frames []string // raw JSON of everything sent, in order
	Closed bool
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	m.SendBytes(b)
}

func (m *MockClient) SendBytes(b []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Closed {
		return
	}
	m.Frames = append(m.Frames, string(b))
}

// Last decodes the most recent frame into a generic map.
func (m *MockClient) Last() map[string]interface{} {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Frames) == 0 {
		return nil
	}
	var out map[string]interface{}
	json.Unmarshal([]byte(m.Frames[len(m.Frames)-1]), &out)
	return out
}

func (m *MockClient) Count() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Frames)
}

// FramesOfType returns decoded frames whose "type" field matches.
func (m *MockClient) FramesOfType(msgType string) []map[string]interface{} {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	var out []map[string]interface{}
	for _, f := range m.Frames {
		var decoded map[string]interface{}
		if json.Unmarshal([]byte(f), &decoded) == nil && decoded["type"] == msgType {
			out = append(out, decoded)
		}
	}
	return out
}

// MockClock returns a fixed time advanced manually by tests
type MockClock struct {
	Mu          sync.Mutex
	CurrentTime time.Time
}

func (c *MockClock) Now() time.Time {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	return c.CurrentTime
}

func (c *MockClock) Advance(d time.Duration) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.CurrentTime = c.CurrentTime.Add(d)
}

// MockRand returns fixed values for deterministic price math
type MockRand struct {
	ValFloat float64
	ValInt   int64
}

func (r *MockRand) Float64() float64     { return r.ValFloat }
func (r *MockRand) Int63n(n int64) int64 { return r.ValInt % n }

// MockKafkaWriter records written messages
type MockKafkaWriter struct {
	Mu       sync.Mutex
	Messages []kafka.Message
	Err      error
}

func (w *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.Mu.Lock()
	defer w.Mu.Unlock()
	if w.Err != nil {
		return w.Err
	}
	w.Messages = append(w.Messages, msgs...)
	return nil
}

func (w *MockKafkaWriter) Close() error { return nil }

package stats

import "github.com/stretchr/testify/mock"

// MockBoardStats is a testify mock of StatsProvider for asserting which
// counters the realtime core touches.
type MockBoardStats struct {
	mock.Mock
}

func (m *MockBoardStats) Incr(name string) {
	m.Called(name)
}

func (m *MockBoardStats) Decr(name string) {
	m.Called(name)
}

func (m *MockBoardStats) RegisterMetric(name string) {
	m.Called(name)
}

func (m *MockBoardStats) Run() {
	m.Called()
}

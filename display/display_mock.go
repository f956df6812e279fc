package display

import (
	"context"
	"fmt"
	"sync"
)

// MockLineDisplay is an in-memory two line display that mirrors what AQM1602
// would show, including the leftover characters on line 1.
// This can be used to run the panel loop without hardware.
type MockLineDisplay struct {
	mx    sync.Mutex
	lines [LineCount][LineWidth]byte
	// OnPrint, if set, is called after every successful PrintLine.
	OnPrint func(line int, text string)
}

func NewMockLineDisplay() *MockLineDisplay {
	m := &MockLineDisplay{}
	m.clear()
	return m
}

func (m *MockLineDisplay) clear() {
	for l := range m.lines {
		for i := range m.lines[l] {
			m.lines[l][i] = ' '
		}
	}
}

func (m *MockLineDisplay) PrintLine(ctx context.Context, line int, text []byte) error {
	if line < 0 || line >= LineCount {
		return fmt.Errorf("%w: %d", ErrInvalidLine, line)
	}
	if len(text) > LineWidth {
		text = text[:LineWidth]
	}
	m.mx.Lock()
	if line == 0 {
		m.clear()
	}
	copy(m.lines[line][:], text)
	m.mx.Unlock()
	if m.OnPrint != nil {
		m.OnPrint(line, string(text))
	}
	return nil
}

func (m *MockLineDisplay) Print(ctx context.Context, line int, s string) error {
	return m.PrintLine(ctx, line, []byte(s))
}

func (m *MockLineDisplay) Clear(ctx context.Context) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.clear()
	return nil
}

// Line returns the full LineWidth characters currently shown on line.
func (m *MockLineDisplay) Line(line int) string {
	m.mx.Lock()
	defer m.mx.Unlock()
	return string(m.lines[line][:])
}

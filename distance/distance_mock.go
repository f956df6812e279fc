package distance

import (
	"context"
)

// DistanceBehaviorFunc defines the function signature for distance sensor behavior.
// It returns the distance in millimeters or an error.
type DistanceBehaviorFunc func(ctx context.Context) (uint16, error)

// MockDistanceSensor is a mock implementation of a ranging sensor that uses a behavior function
// to produce results without requiring any hardware.
// This can be used to mock any ranging sensor like VL53L1X.
type MockDistanceSensor struct {
	behavior DistanceBehaviorFunc
}

// NewMockDistanceSensor creates a new mock ranging sensor with the given behavior function.
// The behavior function is called whenever Read is invoked.
//
// Example usage:
//
//	// Target slowly moving away
//	mm := uint16(100)
//	sensor := NewMockDistanceSensor(func(ctx context.Context) (uint16, error) {
//		mm += 10
//		return mm, nil
//	})
func NewMockDistanceSensor(behavior DistanceBehaviorFunc) *MockDistanceSensor {
	return &MockDistanceSensor{behavior: behavior}
}

// Read returns the distance by calling the behavior function.
func (m *MockDistanceSensor) Read(ctx context.Context) (uint16, error) {
	return m.behavior(ctx)
}

// NewMockVL53L1X creates a new mock VL53L1X sensor (alias for NewMockDistanceSensor).
func NewMockVL53L1X(behavior DistanceBehaviorFunc) *MockDistanceSensor {
	return NewMockDistanceSensor(behavior)
}

package distance

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMockDistanceSensor_DynamicBehavior(t *testing.T) {
	mm := uint16(100)
	sensor := NewMockVL53L1X(func(ctx context.Context) (uint16, error) {
		mm += 10
		return mm, nil
	})

	ctx := context.Background()
	first, err := sensor.Read(ctx)
	assert.NoError(t, err)
	assert.Equal(t, uint16(110), first)

	second, err := sensor.Read(ctx)
	assert.NoError(t, err)
	assert.Equal(t, uint16(120), second)
}

func TestMockDistanceSensor_ErrorHandling(t *testing.T) {
	sensor := NewMockDistanceSensor(func(ctx context.Context) (uint16, error) {
		return 0, fmt.Errorf("sensor malfunction")
	})
	_, err := sensor.Read(context.Background())
	assert.EqualError(t, err, "sensor malfunction")
}

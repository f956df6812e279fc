package panel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/tofpanel"
	"github.com/mklimuk/tofpanel/display"
	"github.com/mklimuk/tofpanel/distance"
)

type printed struct {
	line int
	text string
}

func recordingDisplay() (*display.MockLineDisplay, *[]printed) {
	var prints []printed
	d := display.NewMockLineDisplay()
	d.OnPrint = func(line int, text string) {
		prints = append(prints, printed{line, text})
	}
	return d, &prints
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishDistance(ctx context.Context, mm uint16, at time.Time) error {
	return m.Called(mm, at).Error(0)
}

func TestPanel_Greet(t *testing.T) {
	d, prints := recordingDisplay()
	p := New(distance.NewMockDistanceSensor(nil), d)
	require.NoError(t, p.Greet(context.Background()))
	assert.Equal(t, []printed{{0, "VL54L1X for Nano"}, {1, "READY"}}, *prints)
}

func TestPanel_Step(t *testing.T) {
	d, prints := recordingDisplay()
	sensor := distance.NewMockVL53L1X(func(ctx context.Context) (uint16, error) { return 300, nil })
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	pub := &MockPublisher{}
	pub.On("PublishDistance", uint16(300), at).Return(nil).Once()

	p := New(sensor, d, WithPublisher(pub), WithClock(func() time.Time { return at }))
	require.NoError(t, p.Greet(context.Background()))
	*prints = nil
	mm, err := p.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(300), mm)
	assert.Equal(t, []printed{{0, "300mm"}, {1, ""}}, *prints)
	assert.Equal(t, "300mm           ", d.Line(0))
	pub.AssertExpectations(t)
}

func TestPanel_StepPublishErrorIsNotFatal(t *testing.T) {
	d, _ := recordingDisplay()
	sensor := distance.NewMockDistanceSensor(func(ctx context.Context) (uint16, error) { return 7, nil })
	pub := &MockPublisher{}
	pub.On("PublishDistance", uint16(7), mock.Anything).Return(errors.New("broker down"))

	_, err := New(sensor, d, WithPublisher(pub)).Step(context.Background())
	assert.NoError(t, err)
}

func TestPanel_RunStopsOnBusError(t *testing.T) {
	nack := errors.New("nack")
	reads := 0
	sensor := distance.NewMockDistanceSensor(func(ctx context.Context) (uint16, error) {
		reads++
		if reads == 3 {
			return 0, nack
		}
		return uint16(reads * 100), nil
	})
	d, prints := recordingDisplay()
	var slept []time.Duration
	sleeper := tofpanel.SleeperFunc(func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})

	err := New(sensor, d, WithSleeper(sleeper), WithInterval(time.Second)).Run(context.Background())
	assert.ErrorIs(t, err, nack)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, slept)
	assert.Equal(t, []printed{
		{0, "VL54L1X for Nano"}, {1, "READY"},
		{0, "100mm"}, {1, ""},
		{0, "200mm"}, {1, ""},
	}, *prints)
}

func TestPanel_RunEndsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sensor := distance.NewMockDistanceSensor(func(ctx context.Context) (uint16, error) { return 1, nil })
	d, _ := recordingDisplay()
	sleeper := tofpanel.SleeperFunc(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})
	assert.NoError(t, New(sensor, d, WithSleeper(sleeper)).Run(ctx))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0mm", Format(0))
	assert.Equal(t, "65535mm", Format(0xFFFF))
}

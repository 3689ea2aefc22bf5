package sensor

import (
	"context"
	"errors"
	"math"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"

	"brightctl/internal/config"
)

func newPlayback(ops ...i2ctest.IO) *i2ctest.Playback {
	return &i2ctest.Playback{Ops: ops, DontPanic: true}
}

func TestVEML7700Sensor(t *testing.T) {
	pb := newPlayback(
		// Gain x1, 100ms, powered on.
		i2ctest.IO{Addr: 0x10, W: []byte{0x00, 0x00, 0x00}},
		// 10000 counts.
		i2ctest.IO{Addr: 0x10, W: []byte{0x04}, R: []byte{0x10, 0x27}},
		// Shutdown on Close.
		i2ctest.IO{Addr: 0x10, W: []byte{0x00, 0x01, 0x00}},
	)

	s, err := newVEML7700(pb)
	if err != nil {
		t.Fatal(err)
	}
	lux, err := s.ReadLux(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(lux-576) > 1e-6 {
		t.Errorf("ReadLux() = %v, want 576", lux)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestVEML7700ReadLuxCanceled(t *testing.T) {
	pb := newPlayback(i2ctest.IO{Addr: 0x10, W: []byte{0x00, 0x00, 0x00}})
	s, err := newVEML7700(pb)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.ReadLux(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("ReadLux on canceled ctx = %v, want context.Canceled", err)
	}
}

func TestVEML7700ConfigureFailure(t *testing.T) {
	if _, err := newVEML7700(newPlayback()); err == nil {
		t.Fatal("expected configuration error")
	}
}

func TestMockSensorRange(t *testing.T) {
	s := NewMock(100, 20)
	for i := 0; i < 100; i++ {
		lux, err := s.ReadLux(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if lux < 80 || lux > 120 {
			t.Fatalf("ReadLux() = %v, outside 80..120", lux)
		}
	}
	if err := s.Close(); err != nil {
		t.Error(err)
	}
}

func TestMockSensorNeverNegative(t *testing.T) {
	s := NewMock(0, 50)
	for i := 0; i < 100; i++ {
		lux, _ := s.ReadLux(context.Background())
		if lux < 0 {
			t.Fatalf("ReadLux() = %v, want >= 0", lux)
		}
	}
}

func TestOpen(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sensor = config.SensorMock
	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open(mock): %v", err)
	}
	lux, err := s.ReadLux(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if lux < cfg.MinLuxThreshold || lux > cfg.MaxLuxThreshold {
		t.Errorf("mock reading %v outside configured thresholds", lux)
	}

	cfg.Sensor = "bh1750"
	if _, err := Open(cfg); !errors.Is(err, ErrUnknownSensor) {
		t.Errorf("Open(bh1750) = %v, want ErrUnknownSensor", err)
	}
}

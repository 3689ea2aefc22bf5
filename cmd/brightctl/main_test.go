package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"brightctl/internal/backlight"
	"brightctl/internal/config"
	"brightctl/internal/sensor"
)

type memBackend struct {
	value  int
	writes []int
	closed bool
}

func (b *memBackend) Current() (int, error) { return b.value, nil }

func (b *memBackend) Set(v int) error {
	b.value = v
	b.writes = append(b.writes, v)
	return nil
}

func (b *memBackend) Close() error {
	b.closed = true
	return nil
}

type fixedSensor struct{ lux float64 }

func (s fixedSensor) ReadLux(context.Context) (float64, error) { return s.lux, nil }
func (s fixedSensor) Close() error                             { return nil }

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "brightctl.conf")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func testApp(b *memBackend, lux float64) (*app, *bytes.Buffer) {
	var out bytes.Buffer
	a := newApp(&out)
	a.openBackend = func(*config.Config) (backlight.Backend, error) { return b, nil }
	a.openSensor = func(*config.Config) (sensor.LightSensor, error) { return fixedSensor{lux: lux}, nil }
	return a, &out
}

func runArgs(t *testing.T, a *app, args ...string) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.command().Run(ctx, append([]string{"brightctl"}, args...))
}

func TestMaxWithoutDurationWritesOnce(t *testing.T) {
	b := &memBackend{value: 40}
	a, _ := testApp(b, 0)
	cfg := writeConfig(t, "max_brightness = 200\n")

	if err := runArgs(t, a, "--config", cfg, "max"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{200}, b.writes); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
	if !b.closed {
		t.Error("backend was not closed")
	}
}

func TestNumericTargetWithDuration(t *testing.T) {
	b := &memBackend{value: 50}
	a, _ := testApp(b, 0)
	cfg := writeConfig(t, "")

	if err := runArgs(t, a, "--config", cfg, "60", "10"); err != nil {
		t.Fatal(err)
	}
	if len(b.writes) != 10 {
		t.Errorf("got %d writes, want 10", len(b.writes))
	}
	if b.value != 60 {
		t.Errorf("final brightness = %d, want 60", b.value)
	}
}

func TestOutOfRangeCurrentIsClamped(t *testing.T) {
	b := &memBackend{value: 1 << 40}
	a, _ := testApp(b, 0)
	cfg := writeConfig(t, "")

	if err := runArgs(t, a, "--config", cfg, "250", "100"); err != nil {
		t.Fatal(err)
	}
	// Clamped to 255, so five steps down to 250.
	if len(b.writes) != 5 || b.value != 250 {
		t.Errorf("writes = %v, want 5 steps ending at 250", b.writes)
	}
}

func TestInterruptedTransitionExitsCleanly(t *testing.T) {
	b := &memBackend{value: 0}
	a, _ := testApp(b, 0)
	cfg := writeConfig(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := a.command().Run(ctx, []string{"brightctl", "--config", cfg, "255", "10000"}); err != nil {
		t.Fatalf("Run = %v, want nil after cancellation", err)
	}
	if len(b.writes) == 0 || b.value == 255 {
		t.Errorf("writes = %v, want a partial transition", b.writes)
	}
}

func TestSymbolicTargets(t *testing.T) {
	cfg := writeConfig(t, "min_brightness = 5\noff_brightness = 2\n")
	for arg, want := range map[string]int{"min": 5, "off": 2, "max": 255} {
		b := &memBackend{value: 100}
		a, _ := testApp(b, 0)
		if err := runArgs(t, a, "--config", cfg, arg); err != nil {
			t.Fatalf("%s: %v", arg, err)
		}
		if b.value != want {
			t.Errorf("%s: brightness = %d, want %d", arg, b.value, want)
		}
	}
}

func TestUsageErrors(t *testing.T) {
	cfg := writeConfig(t, "")
	tests := []struct {
		name string
		args []string
	}{
		{"no target", nil},
		{"too many args", []string{"10", "20", "30"}},
		{"target out of range", []string{"256"}},
		{"target not a number", []string{"bright"}},
		{"duration not a number", []string{"10", "soon"}},
		{"auto with target", []string{"--auto", "10"}},
		{"auto and showlux", []string{"--auto", "--showlux"}},
		{"once without auto", []string{"--once"}},
		{"bad log level", []string{"--log-level", "loud", "max"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &memBackend{value: 1}
			a, _ := testApp(b, 0)
			err := runArgs(t, a, append([]string{"--config", cfg}, tt.args...)...)
			if !errors.Is(err, errUsage) {
				t.Fatalf("err = %v, want usage error", err)
			}
			if len(b.writes) != 0 {
				t.Errorf("unexpected writes %v", b.writes)
			}
		})
	}
}

func TestUsageListsEveryForm(t *testing.T) {
	a, _ := testApp(&memBackend{}, 0)
	err := runArgs(t, a, "--config", writeConfig(t, ""))
	for _, form := range []string{"duration_ms", "--auto [--once]", "--showlux", "--print-config"} {
		if err == nil || !strings.Contains(err.Error(), form) {
			t.Errorf("usage error %v does not mention %q", err, form)
		}
	}
}

func TestInvalidConfigFails(t *testing.T) {
	b := &memBackend{}
	a, _ := testApp(b, 0)
	cfg := writeConfig(t, "measurement_interval_ms = 0\n")
	err := runArgs(t, a, "--config", cfg, "max")
	if err == nil || !strings.Contains(err.Error(), "measurement_interval_ms") {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestBackendOpenFailure(t *testing.T) {
	a, _ := testApp(&memBackend{}, 0)
	boom := errors.New("no such device")
	a.openBackend = func(*config.Config) (backlight.Backend, error) { return nil, boom }
	if err := runArgs(t, a, "--config", writeConfig(t, ""), "max"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestAutoOnce(t *testing.T) {
	b := &memBackend{value: 255}
	a, _ := testApp(b, 0)
	cfg := writeConfig(t, "auto_transition_time_ms = 0\nsensor_warmup_ms = 0\n")
	if err := runArgs(t, a, "--config", cfg, "--auto", "--once"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{1}, b.writes); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
}

func TestShowLuxStopsOnCancel(t *testing.T) {
	a, out := testApp(&memBackend{}, 42)
	cfg := writeConfig(t, "sensor_warmup_ms = 0\nmeasurement_interval_ms = 5\n")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := a.command().Run(ctx, []string{"brightctl", "--config", cfg, "--showlux"}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "Lux: 42.00\n") {
		t.Errorf("output = %q", out.String())
	}
}

func TestPrintConfig(t *testing.T) {
	a, out := testApp(&memBackend{}, 0)
	cfg := writeConfig(t, "backend = gpio\ngpio_pin = 18\n")
	if err := runArgs(t, a, "--config", cfg, "--print-config"); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"backend: gpio", "gpio_pin: 18", "max_brightness: 255"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestParseTarget(t *testing.T) {
	cfg := config.DefaultConfig()
	tests := []struct {
		arg     string
		want    int
		wantErr bool
	}{
		{arg: "max", want: 255},
		{arg: "min", want: 1},
		{arg: "off", want: 0},
		{arg: "0", want: 0},
		{arg: "255", want: 255},
		{arg: "256", wantErr: true},
		{arg: "-1", wantErr: true},
		{arg: "1.5", wantErr: true},
		{arg: "MAX", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseTarget(tt.arg, cfg)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseTarget(%q) expected error", tt.arg)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseTarget(%q): %v", tt.arg, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseTarget(%q) = %d, want %d", tt.arg, got, tt.want)
		}
	}
}

func TestParseDuration(t *testing.T) {
	if d, err := parseDuration("1500"); err != nil || d != 1500*time.Millisecond {
		t.Errorf("parseDuration(1500) = %v, %v", d, err)
	}
	if d, err := parseDuration("0"); err != nil || d != 0 {
		t.Errorf("parseDuration(0) = %v, %v", d, err)
	}
	if _, err := parseDuration("-5"); err == nil {
		t.Error("parseDuration(-5) expected error")
	}
}

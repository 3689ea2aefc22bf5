// Package transition moves a backlight from one brightness to another over a
// fixed wall-clock duration, one unit per step, eased so the change starts
// and ends slowly.
package transition

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Setter receives each intermediate brightness value.
type Setter interface {
	Set(value int) error
}

// Sleeper waits for d or until ctx is done. Tests replace it to run
// transitions without wall-clock delay.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Ease is the quadratic ease-in-ease-out curve. It maps 0 to 0, 0.5 to 0.5
// and 1 to 1, and is monotonic in between. Inputs outside [0, 1] are clamped.
func Ease(t float64) float64 {
	switch {
	case t <= 0:
		return 0
	case t >= 1:
		return 1
	case t < 0.5:
		return 2 * t * t
	default:
		u := -2*t + 2
		return 1 - u*u/2
	}
}

// Engine runs transitions against a Setter.
type Engine struct {
	Setter Setter
	Sleep  Sleeper
}

// New returns an Engine that paces steps with the real clock.
func New(s Setter) *Engine {
	return &Engine{Setter: s, Sleep: Sleep}
}

// Steps returns the values Run writes, in order, for a transition from
// current to target. It is empty when there is nothing to do.
func Steps(current, target int) []int {
	n := abs(target - current)
	if n == 0 {
		return nil
	}
	out := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, stepValue(current, target, i, n))
	}
	return out
}

// stepValue is the i-th of n eased values from current to target. Ease(1) is
// exactly 1, so step n is target.
func stepValue(current, target, i, n int) int {
	delta := float64(target - current)
	return current + int(math.Round(delta*Ease(float64(i)/float64(n))))
}

// Run writes the eased sequence from current to target, sleeping
// duration/steps (truncated to whole milliseconds) after each write. A zero
// duration writes target once. Equal current and target write nothing.
//
// The first failed write aborts the transition and is returned.
func (e *Engine) Run(ctx context.Context, current, target int, duration time.Duration) error {
	if current == target {
		return nil
	}
	if duration <= 0 {
		return e.set(target)
	}

	n := abs(target - current)
	perStep := time.Duration(duration.Milliseconds()/int64(n)) * time.Millisecond
	for i := 1; i <= n; i++ {
		if err := e.set(stepValue(current, target, i, n)); err != nil {
			return err
		}
		if err := e.sleep(ctx, perStep); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) set(v int) error {
	if err := e.Setter.Set(v); err != nil {
		return fmt.Errorf("transition: set brightness %d: %w", v, err)
	}
	return nil
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	if e.Sleep == nil {
		return Sleep(ctx, d)
	}
	return e.Sleep(ctx, d)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

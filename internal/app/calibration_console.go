// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/relabs-tech/wheel_arbiter/internal/calibration"
	"github.com/relabs-tech/wheel_arbiter/internal/config"
	"github.com/relabs-tech/wheel_arbiter/internal/input"
	"github.com/relabs-tech/wheel_arbiter/internal/wheel"
)

var errNoJoystick = errors.New("calibration needs the wheel's joystick node ([input] joystick)")

// sweep steps m with positions from poll once per tick until it is done.
// A line is written to out for every state change.
func sweep(ctx context.Context, m *calibration.Machine, poll func() (float64, error), tick time.Duration, out io.Writer) (calibration.Progress, error) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	last := m.State()
	fmt.Fprintf(out, "  %-12s\n", last)
	for {
		select {
		case <-ctx.Done():
			return m.Progress(), ctx.Err()
		case <-ticker.C:
		}

		pos, err := poll()
		if err != nil {
			return m.Progress(), fmt.Errorf("read wheel position: %w", err)
		}
		st := m.Step(pos)
		if st != last {
			p := m.Progress()
			fmt.Fprintf(out, "  %-12s pos=%+.3f  range=[%+.3f, %+.3f]  ticks=%d\n", st, pos, p.MinPos, p.MaxPos, p.Ticks)
			last = st
		}
		if st == calibration.Done {
			return m.Progress(), nil
		}
	}
}

// RunCalibration runs one calibration sweep on the configured wheel and
// reports the travel it measured. It fails if the sweep does not finish
// within timeout.
func RunCalibration(ctx context.Context, out io.Writer, timeout time.Duration) error {
	cfg := config.Get()
	if cfg == nil {
		return errNoConfig
	}
	if cfg.Input.Joystick == "" {
		return errNoJoystick
	}

	t, err := wheel.Open(wheelOptions(cfg.Wheel))
	if err != nil {
		return fmt.Errorf("open wheel: %w", err)
	}
	link := wheel.NewLink(t)
	defer link.Close()

	js, err := input.OpenJoystick(cfg.Input.Joystick)
	if err != nil {
		return err
	}
	defer js.Close()

	m := calibration.New(link)
	m.Reset()
	link.SetRange(cfg.Wheel.Range)

	poll := func() (float64, error) {
		s, _, err := js.Poll()
		if err != nil {
			return 0, err
		}
		return s.Axis(cfg.Input.SteerAxis), nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fmt.Fprintln(out, "Calibrating, keep hands off the wheel...")
	p, err := sweep(ctx, m, poll, time.Second/time.Duration(cfg.Arbiter.TickRate), out)
	if err != nil {
		link.Reset()
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("calibration did not finish within %s (stopped in %s)", timeout, p.State)
		}
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Calibration complete")
	fmt.Fprintf(out, "  travel: %+.3f .. %+.3f over %d ticks\n", p.MinPos, p.MaxPos, p.Ticks)
	if p.MinPos > -0.8 {
		fmt.Fprintln(out, "  warning: left stop not reached, check the steering axis index")
	}
	return nil
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/calibration/main.go
//
// Guided calibration sweep for the force-feedback wheel:
//  1. Nudges the wheel left and right to confirm force output.
//  2. Drives it to the left stop.
//  3. Brings it back to center, then enables autocenter and light friction.
//
// Run with wheelctl stopped:
//
//	go run ./cmd/calibration -config wheel_config.toml
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/wheel_arbiter/internal/app"
	"github.com/relabs-tech/wheel_arbiter/internal/config"
)

func main() {
	in := bufio.NewReader(os.Stdin)

	configPath := flag.String("config", "wheel_config.toml", "Path to configuration file")
	timeout := flag.Duration("timeout", 30*time.Second, "Give up if the sweep has not finished")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	fmt.Println("Wheel calibration")
	fmt.Println("The wheel will turn on its own. Keep hands and cables clear.")
	waitEnter(in, "Press ENTER to start...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunCalibration(ctx, os.Stdout, *timeout); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func waitEnter(in *bufio.Reader, prompt string) {
	fmt.Print(prompt)
	_, _ = in.ReadString('\n')
}

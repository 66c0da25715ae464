// Package timeouts defines shared timeout defaults used across quickroll.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing the roll service.
const GRPCDial = 2 * time.Second

// GRPCRequest caps a single CLI request to the roll service.
const GRPCRequest = 5 * time.Second

// AnimationWait bounds how long message processing waits for a dice
// animation to finish before injecting content anyway.
const AnimationWait = 10 * time.Second

// AnimationPoll is the interval between animation state checks.
const AnimationPoll = 100 * time.Millisecond

// Shutdown limits how long servers and telemetry wait during graceful shutdown.
const Shutdown = 5 * time.Second

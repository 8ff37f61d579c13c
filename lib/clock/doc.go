// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that read the wall clock or wait on timers take a [Clock]
// instead of calling the time package directly: the reconnect loop in
// realtime waits out its backoff delays through Clock.After, and the
// conversation store stamps provisional timestamps with Clock.Now and
// matches server echoes against a tolerance window measured on the same
// clock. Production code passes [Real]; tests pass [Fake] and move time
// explicitly:
//
//	fake := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
//	manager := realtime.NewManager(realtime.Config{Clock: fake, ...})
//	manager.Start(credential)
//	fake.WaitForTimers(1)       // reconnect loop is sleeping
//	fake.Advance(2 * time.Second) // wake it deterministically
package clock

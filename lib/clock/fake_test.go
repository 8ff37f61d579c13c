// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestFakeNowStandsStill(t *testing.T) {
	fake := Fake(epoch)
	if !fake.Now().Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", fake.Now(), epoch)
	}
	fake.Advance(1500 * time.Millisecond)
	if want := epoch.Add(1500 * time.Millisecond); !fake.Now().Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", fake.Now(), want)
	}
}

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	fake := Fake(epoch)
	channel := fake.After(2 * time.Second)

	fake.Advance(time.Second)
	select {
	case <-channel:
		t.Fatal("After fired before its deadline")
	default:
	}

	fake.Advance(time.Second)
	select {
	case fired := <-channel:
		if want := epoch.Add(2 * time.Second); !fired.Equal(want) {
			t.Errorf("fired at %v, want %v", fired, want)
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeAfterNonPositiveIsImmediate(t *testing.T) {
	fake := Fake(epoch)
	select {
	case <-fake.After(0):
	default:
		t.Fatal("After(0) was not ready")
	}
	if fake.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", fake.Pending())
	}
}

func TestFakeAfterFuncOrderAndStop(t *testing.T) {
	fake := Fake(epoch)
	var order []string
	fake.AfterFunc(3*time.Second, func() { order = append(order, "third") })
	fake.AfterFunc(time.Second, func() { order = append(order, "first") })
	stop := fake.AfterFunc(2*time.Second, func() { order = append(order, "cancelled") })

	if !stop() {
		t.Error("stop() on a pending timer returned false")
	}
	if stop() {
		t.Error("second stop() returned true")
	}

	fake.Advance(5 * time.Second)
	if len(order) != 2 || order[0] != "first" || order[1] != "third" {
		t.Errorf("callbacks ran as %v, want [first third]", order)
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	fake := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-fake.After(time.Minute)
		close(done)
	}()

	fake.WaitForTimers(1)
	fake.Advance(time.Minute)
	select {
	case <-done:
	case <-time.After(5 * time.Second): //nolint:realclock test hang prevention
		t.Fatal("goroutine did not wake after Advance")
	}
}

package web

import (
	"fmt"
	"reflect"
	"sort"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func Test_keyedLimiter(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("ok, burst per key", func(t *testing.T) {
		l := limiterForTest(rate.Every(time.Minute), 2, 10, start)

		got := []bool{l.allow("a"), l.allow("a"), l.allow("a"), l.allow("b")}
		want := []bool{true, true, false, true}

		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("ok, idle clients are forgotten when full", func(t *testing.T) {
		now := start
		l := limiterForTest(rate.Every(time.Minute), 1, 2, start)
		l.nowFunc = func() time.Time { return now }

		l.allow("a")
		now = now.Add(limiterIdleTime + time.Second)
		l.allow("b")
		l.allow("c")

		assertKeys(t, l, []string{"b", "c"})
	})

	t.Run("ok, oldest client is forgotten when none are idle", func(t *testing.T) {
		now := start
		l := limiterForTest(rate.Every(time.Minute), 1, 3, start)
		l.nowFunc = func() time.Time { return now }

		for _, key := range []string{"a", "b", "c", "a"} {
			l.allow(key)
			now = now.Add(time.Second)
		}

		l.allow("d")

		assertKeys(t, l, []string{"a", "c", "d"})
	})

	t.Run("ok, never exceeds maximum clients", func(t *testing.T) {
		l := limiterForTest(rate.Every(time.Minute), 1, 5, start)

		for i := 0; i < 100; i++ {
			if !l.allow(fmt.Sprintf("10.0.0.%d", i)) {
				t.Fatalf("request %d: got denied, want allowed", i)
			}
		}

		if got := len(l.limiters); got != 5 {
			t.Errorf("got %d clients, want %d", got, 5)
		}
	})
}

func limiterForTest(limit rate.Limit, burst, maxClients int, now time.Time) *keyedLimiter {
	l := newKeyedLimiter(limit, burst)
	l.maxClients = maxClients
	l.nowFunc = func() time.Time { return now }
	return l
}

func assertKeys(t *testing.T, l *keyedLimiter, want []string) {
	t.Helper()

	got := make([]string, 0, len(l.limiters))
	for key := range l.limiters {
		got = append(got, key)
	}
	sort.Strings(got)

	if !reflect.DeepEqual(got, want) {
		t.Errorf("got keys %v, want %v", got, want)
	}
}

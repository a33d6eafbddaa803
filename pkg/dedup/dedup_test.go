package dedup

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestShouldProcessWithinTTL(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	d := New(time.Second, 10).WithClock(clk.Now)

	if !d.ShouldProcess("a") {
		t.Fatal("first sighting must pass")
	}
	clk.Advance(500 * time.Millisecond)
	if d.ShouldProcess("a") {
		t.Fatal("duplicate inside ttl must be dropped")
	}
	if !d.ShouldProcess("b") {
		t.Fatal("other key must pass")
	}
	clk.Advance(time.Second)
	if !d.ShouldProcess("a") {
		t.Fatal("key must pass again after ttl")
	}
}

func TestEmptyKeyAlwaysPasses(t *testing.T) {
	d := New(time.Minute, 1)
	for i := 0; i < 3; i++ {
		if !d.ShouldProcess("") {
			t.Fatal("empty key dropped")
		}
	}
}

func TestEvictsExpiredWhenFull(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	d := New(time.Second, 2).WithClock(clk.Now)
	d.ShouldProcess("a")
	d.ShouldProcess("b")
	clk.Advance(2 * time.Second)
	d.ShouldProcess("c")
	if n := d.Len(); n > 2 {
		t.Fatalf("len = %d, want <= 2", n)
	}
}

// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink

import "testing"

func TestBucketOf(t *testing.T) {
	cases := []struct {
		size, bucket int
	}{
		{0, 0}, {1, 0}, {2, 1}, {3, 2}, {4, 2}, {5, 3},
		{63, 6}, {64, 6}, {65, 7}, {1024, 10}, {1025, 11},
	}
	for _, c := range cases {
		if got := bucketOf(c.size); got != c.bucket {
			t.Fatalf("bucketOf(%d): got %d, want %d", c.size, got, c.bucket)
		}
	}
}

func TestBufferPoolRoundsUp(t *testing.T) {
	var p bufferPool
	for _, size := range []int{1, 63, 64, 65, 1000} {
		d := p.acquire(size)
		if d.Len() < size {
			t.Fatalf("acquire(%d): len %d", size, d.Len())
		}
		if d.Len()&(d.Len()-1) != 0 {
			t.Fatalf("acquire(%d): len %d is not a power of two", size, d.Len())
		}
	}
}

func TestBufferPoolLazyZeroFill(t *testing.T) {
	var p bufferPool
	d := p.acquire(64)
	for i := range d.b {
		d.b[i] = 0xff
	}
	p.release(d)
	// Release does not clear.
	if d.b[0] != 0xff {
		t.Fatalf("release cleared the buffer")
	}
	if n := p.idle(64); n != 1 {
		t.Fatalf("idle: got %d, want 1", n)
	}

	again := p.acquire(33)
	if again != d {
		t.Fatalf("acquire did not reuse the released buffer")
	}
	for i, b := range again.Bytes() {
		if b != 0 {
			t.Fatalf("byte %d not zeroed on reacquire: %#x", i, b)
		}
	}
	if n := p.idle(64); n != 0 {
		t.Fatalf("idle after reacquire: got %d, want 0", n)
	}
}

func TestSizeBuffer(t *testing.T) {
	var s SizeBuffer
	if s.Fits() {
		t.Fatalf("zero SizeBuffer reports fits")
	}
	s.store(100, false)
	if s.Size() != 100 || s.Fits() {
		t.Fatalf("store(100,false): got size %d fits %v", s.Size(), s.Fits())
	}
	s.store(100, true)
	if !s.Fits() {
		t.Fatalf("store(100,true): fits false")
	}
}

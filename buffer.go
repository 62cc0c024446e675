// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink

import (
	"math/bits"
	"sync"

	"code.hybscloud.com/atomix"
)

// Size buffer flag values.
const (
	sizeDoesntFit uint32 = 0
	sizeFits      uint32 = 1
)

// SizeBuffer is the per-request shared pair of words through which a
// responder reports the encoded reply length and whether it fit into the
// requester's data buffer.
type SizeBuffer struct {
	size atomix.Uint32
	fits atomix.Uint32
}

// Size returns the announced encoded reply length.
func (b *SizeBuffer) Size() int { return int(b.size.Load()) }

// Fits reports whether the reply has been written into the data buffer.
func (b *SizeBuffer) Fits() bool { return b.fits.Load() == sizeFits }

func (b *SizeBuffer) store(size int, fits bool) {
	b.size.Store(uint32(size))
	if fits {
		b.fits.Store(sizeFits)
	} else {
		b.fits.Store(sizeDoesntFit)
	}
}

// DataBuffer is a requester-owned byte region the responder writes the
// encoded reply into. Ordering between writer and reader is established by
// the signal buffer: bytes are written before the slot is published and read
// after the slot is taken.
type DataBuffer struct {
	b     []byte
	dirty bool
}

// Len returns the capacity of the buffer in bytes.
func (d *DataBuffer) Len() int { return len(d.b) }

// Bytes returns the underlying region.
func (d *DataBuffer) Bytes() []byte { return d.b }

// bufferPool recycles data buffers in power-of-two buckets. Released
// buffers are zero-filled lazily on their next acquisition.
type bufferPool struct {
	mu      sync.Mutex
	buckets [bits.UintSize][]*DataBuffer
}

// bucketOf returns ceil(log2(size)) for size >= 1.
func bucketOf(size int) int {
	if size <= 1 {
		return 0
	}
	return bits.Len(uint(size - 1))
}

// acquire returns a buffer of at least size bytes.
func (p *bufferPool) acquire(size int) *DataBuffer {
	k := bucketOf(size)
	p.mu.Lock()
	var d *DataBuffer
	if n := len(p.buckets[k]); n > 0 {
		d = p.buckets[k][n-1]
		p.buckets[k][n-1] = nil
		p.buckets[k] = p.buckets[k][:n-1]
	}
	p.mu.Unlock()

	if d == nil {
		return &DataBuffer{b: make([]byte, 1<<k)}
	}
	if d.dirty {
		clear(d.b)
		d.dirty = false
	}
	return d
}

// release returns d to its bucket without clearing it.
func (p *bufferPool) release(d *DataBuffer) {
	if d == nil || len(d.b) == 0 {
		return
	}
	k := bucketOf(len(d.b))
	d.dirty = true
	p.mu.Lock()
	p.buckets[k] = append(p.buckets[k], d)
	p.mu.Unlock()
}

// idle returns the number of buffers waiting in the bucket serving size.
func (p *bufferPool) idle(size int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buckets[bucketOf(size)])
}

// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"code.hybscloud.com/atomix"
)

// Serial is a monotonically increasing port pair identifier.
// Each call to NewPortPair assigns the next serial value.
type Serial = uint32

// counter is the global monotonic counter for port pair serials.
var counter atomix.Uint32

// nextSerial returns the next monotonically increasing serial.
func nextSerial() Serial {
	return counter.Add(1)
}

// IDLength is the length of request correlation ids and endpoint identities.
const IDLength = 63

const (
	idSegments   = 4
	idSegmentLen = 15
	idSegmentMax = 1<<(4*idSegmentLen) - 1
)

// NewID returns a fresh correlation id: four hyphen-joined segments of 15
// random hex digits.
func NewID() string {
	var b strings.Builder
	b.Grow(IDLength)
	for i := range idSegments {
		if i > 0 {
			b.WriteByte('-')
		}
		fmt.Fprintf(&b, "%0*x", idSegmentLen, rand.Uint64()&idSegmentMax)
	}
	if b.Len() != IDLength {
		panic("synclink: id has the wrong length")
	}
	return b.String()
}

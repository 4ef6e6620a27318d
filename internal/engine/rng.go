package engine

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Draw maps (seed, turn, label) to a uniform value in [0, 1).
//
// The draw is a pure function of its inputs: the same triple always yields
// the same value, and distinct labels at the same turn hash to independent
// positions in the output space. There is no internal state, so concurrent
// runs can share it freely.
func Draw(seed int64, turn int, label string) float64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(seed))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(turn))

	d := xxhash.New()
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(label)

	// Take the top 53 bits so the result is representable exactly as a float64.
	return float64(d.Sum64()>>11) / float64(1<<53)
}

package id

import (
	"strconv"
	"sync"
	"time"
)

// Generator provides unique identifiers for engine sessions.
// IDs are unique per instance and roughly time-ordered.
type Generator interface {
	NextID() uint64
}

// LogicalBits is the number of bits reserved for the per-millisecond
// counter. 16 bits = ~65k IDs per millisecond per instance.
const LogicalBits = 16

// LogicalMask masks the logical counter to 16 bits
const LogicalMask = (1 << LogicalBits) - 1

// InstanceBits is the number of bits reserved for the instance id.
const InstanceBits = 6

// InstanceMask masks the instance id to 6 bits
const InstanceMask = (1 << InstanceBits) - 1

// TotalShiftBits is the total bits to shift wall time (InstanceBits + LogicalBits)
const TotalShiftBits = InstanceBits + LogicalBits // 22 bits

// ClockGenerator builds IDs from a millisecond clock and a logical counter.
// Format: (physical_ms << 22) | (instance << 16) | logical
type ClockGenerator struct {
	instance uint64
	lastMS   int64
	logical  uint64
	mu       sync.Mutex
}

// NewClockGenerator creates a generator for the given instance id. Only the
// low InstanceBits of instanceID are used.
func NewClockGenerator(instanceID uint64) *ClockGenerator {
	return &ClockGenerator{
		instance: instanceID & InstanceMask,
		lastMS:   time.Now().UnixMilli(),
	}
}

// NextID generates a unique 64-bit ID.
func (g *ClockGenerator) NextID() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	nowMS := time.Now().UnixMilli()
	// Reset logical when millisecond changes to prevent overflow into instance bits
	if nowMS > g.lastMS {
		g.lastMS = nowMS
		g.logical = 0
	}

	// Exhausted this millisecond: spin until the clock moves on.
	for g.logical >= LogicalMask {
		time.Sleep(100 * time.Microsecond)
		if now := time.Now().UnixMilli(); now > g.lastMS {
			g.lastMS = now
			g.logical = 0
		}
	}

	g.logical++
	return (uint64(g.lastMS) << TotalShiftBits) | (g.instance << LogicalBits) | g.logical
}

// NextString returns NextID as 16 lowercase hex digits, so string order
// matches numeric order.
func (g *ClockGenerator) NextString() string {
	s := strconv.FormatUint(g.NextID(), 16)
	if len(s) < 16 {
		s = "0000000000000000"[len(s):] + s
	}
	return s
}

// Time extracts the wall-clock millisecond an ID was generated at.
func Time(id uint64) time.Time {
	return time.UnixMilli(int64(id >> TotalShiftBits))
}

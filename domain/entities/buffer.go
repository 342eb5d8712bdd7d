package entities

import (
	"errors"
	"fmt"
)

// ErrBufferCapacity is returned when an exchange buffer is created with a
// capacity that is not strictly positive.
var ErrBufferCapacity = errors.New("exchange buffer capacity must be greater than zero")

// DefaultMaxCapacity is the largest exchange buffer the host allocates
// unless configured otherwise.
const DefaultMaxCapacity = 64 << 20

// ErrBufferTooLarge is returned when a requested capacity exceeds the
// host's limit.
var ErrBufferTooLarge = errors.New("exchange buffer capacity exceeds the limit")

// ErrBufferOverflow is returned when data or a length does not fit in the
// buffer's fixed capacity.
var ErrBufferOverflow = errors.New("exchange buffer capacity exceeded")

// ExchangeBuffer is a caller-owned, fixed-capacity byte region handed to a
// plugin for exactly one exchange call.
//
// The region never grows: its capacity is fixed at construction so the
// backing array cannot be reallocated while a plugin holds a pointer into it.
// Used tracks the logical length and always satisfies 0 <= used <= capacity.
type ExchangeBuffer struct {
	region   []byte
	used     int
	override bool
}

// NewExchangeBuffer allocates a zeroed buffer of the given capacity.
func NewExchangeBuffer(capacity int, override bool) (*ExchangeBuffer, error) {
	if capacity <= 0 {
		return nil, ErrBufferCapacity
	}
	return &ExchangeBuffer{
		region:   make([]byte, capacity),
		override: override,
	}, nil
}

// Capacity returns the fixed size of the region in bytes.
func (b *ExchangeBuffer) Capacity() int {
	return len(b.region)
}

// Used returns the logical number of meaningful bytes.
func (b *ExchangeBuffer) Used() int {
	return b.used
}

// Override reports whether the plugin may write into the region.
func (b *ExchangeBuffer) Override() bool {
	return b.override
}

// SetUsed updates the logical length.
func (b *ExchangeBuffer) SetUsed(n int) error {
	if n < 0 || n > len(b.region) {
		return fmt.Errorf("%w: used %d, capacity %d", ErrBufferOverflow, n, len(b.region))
	}
	b.used = n
	return nil
}

// Seed copies input to the start of the region and sets Used to its length.
// Bytes past len(input) are left untouched.
func (b *ExchangeBuffer) Seed(input []byte) error {
	if len(input) > len(b.region) {
		return fmt.Errorf("%w: input %d bytes, capacity %d", ErrBufferOverflow, len(input), len(b.region))
	}
	b.used = copy(b.region, input)
	return nil
}

// Fill sets every byte of the region to v without changing Used.
func (b *ExchangeBuffer) Fill(v byte) {
	for i := range b.region {
		b.region[i] = v
	}
}

// Bytes returns the first Used bytes of the region. The slice aliases the
// region and is only valid until the next exchange.
func (b *ExchangeBuffer) Bytes() []byte {
	return b.region[:b.used]
}

// Region returns the whole fixed-capacity region. Only the host's exchange
// path and tests should need it.
func (b *ExchangeBuffer) Region() []byte {
	return b.region
}

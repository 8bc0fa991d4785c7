package buffer

import (
	"math"
	"sync"
)

type Average float64
type Minimum float64
type Maximum float64

// SampleBuffer keeps the last size samples of a per-wake reading. NaN samples
// mark a failed read and are left out of the statistics.
type SampleBuffer struct {
	position int
	size     int
	count    int
	data     []float64
	lock     sync.Mutex
}

func NewBuffer(size int) *SampleBuffer {
	if size < 1 {
		size = 1
	}
	return &SampleBuffer{
		size: size,
		data: make([]float64, size),
	}
}

func (b *SampleBuffer) AddItem(val float64) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.data[b.position] = val
	b.position++
	if b.position == b.size {
		b.position = 0
	}
	if b.count < b.size {
		b.count++
	}
}

// GetAverageMinMax covers the last numberOfItems samples, or all held samples
// when numberOfItems is 0 or larger than the buffer. ok is false when none of
// them is a number.
func (b *SampleBuffer) GetAverageMinMax(numberOfItems int) (avg Average, min Minimum, max Maximum, ok bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if numberOfItems <= 0 || numberOfItems > b.count {
		numberOfItems = b.count
	}
	lo, hi, sum, n := math.MaxFloat64, -math.MaxFloat64, 0.0, 0
	index := b.position - numberOfItems
	if index < 0 {
		// reverse wrap
		index += b.size
	}
	for i := 0; i < numberOfItems; i++ {
		x := b.data[(index+i)%b.size]
		if math.IsNaN(x) {
			continue
		}
		sum += x
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
		n++
	}
	if n == 0 {
		return Average(math.NaN()), Minimum(math.NaN()), Maximum(math.NaN()), false
	}
	return Average(sum / float64(n)), Minimum(lo), Maximum(hi), true
}

// GetLast returns the newest sample, NaN when empty.
func (b *SampleBuffer) GetLast() float64 {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.count == 0 {
		return math.NaN()
	}
	index := b.position - 1
	if index < 0 {
		index += b.size
	}
	return b.data[index]
}

func (b *SampleBuffer) Len() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.count
}

// File: work/producer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package work

import (
	"context"
	"io"
	"math/rand/v2"

	"github.com/momentics/geomesh/api"
)

// Producer supplies batches of items. Next returns io.EOF once exhausted.
type Producer interface {
	Next(ctx context.Context) ([]Item, error)
}

// Synthetic produces Total items in batches of Batch with sizes drawn
// uniformly from [1, MaxSize]. Layers cycle through 0..7.
type Synthetic struct {
	Total     int
	Batch     int
	MaxSize   uint64
	Dimension int

	rng  *rand.Rand
	made int
}

// NewSynthetic returns a deterministic synthetic producer for seed.
func NewSynthetic(total, batch int, maxSize uint64, dimension int, seed uint64) (*Synthetic, error) {
	if total < 0 || batch <= 0 || maxSize == 0 {
		return nil, api.Invalid("work: invalid synthetic producer").
			WithContext("total", total).WithContext("batch", batch)
	}
	return &Synthetic{
		Total:     total,
		Batch:     batch,
		MaxSize:   maxSize,
		Dimension: dimension,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

func (s *Synthetic) Next(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.made >= s.Total {
		return nil, io.EOF
	}
	n := min(s.Batch, s.Total-s.made)
	out := make([]Item, n)
	for i := range out {
		out[i] = Item{
			Layer:     uint8((s.made + i) % 8),
			Dimension: s.Dimension,
			Size:      1 + s.rng.Uint64N(s.MaxSize),
			Priority:  PriorityNormal,
			Data:      s.made + i,
		}
	}
	s.made += n
	return out, nil
}

// Collect drains p into one slice.
func Collect(ctx context.Context, p Producer) ([]Item, error) {
	var all []Item
	for {
		batch, err := p.Next(ctx)
		if err == io.EOF {
			return all, nil
		}
		if err != nil {
			return all, err
		}
		all = append(all, batch...)
	}
}

var _ Producer = (*Synthetic)(nil)

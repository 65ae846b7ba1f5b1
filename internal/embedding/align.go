package embedding

import (
	"context"
	"fmt"
)

// Align maps batch items back onto n inputs. When any item carries an index
// marker every item must, and the markers decide placement; otherwise the
// response order is taken as the input order.
func Align(n int, items []BatchItem) ([][]float32, error) {
	if len(items) != n {
		return nil, fmt.Errorf("%w: got %d items for %d inputs", ErrAlignmentFailure, len(items), n)
	}

	indexed := false
	for _, item := range items {
		if item.Index != nil {
			indexed = true
			break
		}
	}

	out := make([][]float32, n)
	if !indexed {
		for i, item := range items {
			out[i] = item.Embedding
		}
		return out, nil
	}

	for pos, item := range items {
		if item.Index == nil {
			return nil, fmt.Errorf("%w: item %d has no index marker", ErrAlignmentFailure, pos)
		}
		idx := *item.Index
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("%w: index %d out of range", ErrAlignmentFailure, idx)
		}
		if out[idx] != nil {
			return nil, fmt.Errorf("%w: duplicate index %d", ErrAlignmentFailure, idx)
		}
		out[idx] = item.Embedding
	}
	return out, nil
}

// EmbedManyAligned embeds texts and returns vectors in input order.
func EmbedManyAligned(ctx context.Context, p Provider, texts []string, role Role) ([][]float32, *Usage, error) {
	batch, err := p.EmbedMany(ctx, texts, role)
	if err != nil {
		return nil, nil, err
	}
	vectors, err := Align(len(texts), batch.Items)
	if err != nil {
		return nil, nil, err
	}
	spec := p.Spec()
	for _, vec := range vectors {
		if err := validateVector(spec, vec); err != nil {
			return nil, nil, err
		}
	}
	return vectors, batch.Usage, nil
}

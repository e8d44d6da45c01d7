// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package skeleton

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/gviegas/neo3/linear"
	"github.com/gviegas/neo3/node"
)

// Request holds the arguments of a New call.
// Options are applied after the ones given to LoadAll.
type Request struct {
	Root       *node.Node
	BoneOrder  []string
	Correction *linear.M4
	Options    []Option
}

// LoadAll loads every request concurrently, running at most
// limit loads at a time (no limit if limit <= 0).
// Requests must not share node trees that are modified
// while loading.
// The returned slice is ordered as reqs. If any load fails,
// the remaining ones are abandoned and the first error is
// returned alone.
func LoadAll(ctx context.Context, reqs []Request, limit int, opts ...Option) ([]*Loader, error) {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	ls := make([]*Loader, len(reqs))
	for i := range reqs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r := &reqs[i]
			l, err := New(r.Root, r.BoneOrder, r.Correction, append(opts[:len(opts):len(opts)], r.Options...)...)
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			ls[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ls, nil
}

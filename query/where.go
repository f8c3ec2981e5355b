package query

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecquery/metadata"
	"github.com/hupe1980/vecquery/selection"
)

// Evaluate resolves a filter expression against one metadata provider into
// a signed selection over that provider's offsets.
//
// Negative operators never reach the provider: NotEqual, NotIn and
// NotContains are rewritten here as exclusions over their positive
// counterparts, so "key != v" also selects records without the key at all.
//
// Junction children are evaluated concurrently; the sign algebra is
// commutative and associative, so the combination order does not affect the
// result.
func Evaluate(ctx context.Context, w metadata.Where, provider MetadataProvider) (selection.Signed, error) {
	switch node := w.(type) {
	case *metadata.Junction:
		return evaluateJunction(ctx, node, provider)
	case *metadata.Comparison:
		return evaluateComparison(ctx, node, provider)
	case *metadata.SetComparison:
		return evaluateSetComparison(ctx, node, provider)
	case *metadata.DocumentComparison:
		return evaluateDocumentComparison(ctx, node, provider)
	default:
		return selection.Signed{}, fmt.Errorf("evaluate: unsupported expression node %T", w)
	}
}

func evaluateJunction(ctx context.Context, node *metadata.Junction, provider MetadataProvider) (selection.Signed, error) {
	// Identity elements: an empty conjunction selects everything, an empty
	// disjunction nothing.
	if len(node.Children) == 0 {
		if node.Op == metadata.BoolAnd {
			return selection.Full(), nil
		}
		return selection.Empty(), nil
	}

	results := make([]selection.Signed, len(node.Children))
	g, gctx := errgroup.WithContext(ctx)
	for i, child := range node.Children {
		g.Go(func() error {
			r, err := Evaluate(gctx, child, provider)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return selection.Signed{}, err
	}

	acc := results[0]
	for _, r := range results[1:] {
		if node.Op == metadata.BoolAnd {
			acc = acc.And(r)
		} else {
			acc = acc.Or(r)
		}
	}
	return acc, nil
}

func evaluateComparison(ctx context.Context, node *metadata.Comparison, provider MetadataProvider) (selection.Signed, error) {
	op := node.Op
	negate := op == metadata.OpNotEqual
	if negate {
		op = metadata.OpEqual
	}

	bm, err := provider.Lookup(ctx, node.Key, node.Value, op)
	if err != nil {
		return selection.Signed{}, fmt.Errorf("lookup %q: %w", node.Key, err)
	}
	if negate {
		return selection.Exclude(bm), nil
	}
	return selection.Include(bm), nil
}

func evaluateSetComparison(ctx context.Context, node *metadata.SetComparison, provider MetadataProvider) (selection.Signed, error) {
	matches := make([]*roaring.Bitmap, 0, len(node.Values))
	for _, value := range node.Values {
		bm, err := provider.Lookup(ctx, node.Key, value, metadata.OpEqual)
		if err != nil {
			return selection.Signed{}, fmt.Errorf("lookup %q: %w", node.Key, err)
		}
		matches = append(matches, bm)
	}
	union := roaring.FastOr(matches...)

	if node.Op == metadata.OpNotIn {
		return selection.Exclude(union), nil
	}
	return selection.Include(union), nil
}

func evaluateDocumentComparison(ctx context.Context, node *metadata.DocumentComparison, provider MetadataProvider) (selection.Signed, error) {
	bm, err := provider.SearchDocuments(ctx, node.Pattern)
	if err != nil {
		return selection.Signed{}, fmt.Errorf("search documents: %w", err)
	}
	if node.Op == metadata.OpNotContains {
		return selection.Exclude(bm), nil
	}
	return selection.Include(bm), nil
}

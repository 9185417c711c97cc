package vectorstore

import (
	"context"
	"fmt"
	"iter"
)

// Scan walks a scroll request page by page. The sequence is finite and
// restartable: each range over it starts again from req.Offset. It stops
// when a page carries a nil cursor, or after yielding the first error.
func Scan(ctx context.Context, store Store, req ScrollRequest) iter.Seq2[ScrollPage, error] {
	return func(yield func(ScrollPage, error) bool) {
		cursor := req.Offset
		for {
			page, err := store.Scroll(ctx, ScrollRequest{
				Collection: req.Collection,
				Filter:     req.Filter,
				Limit:      req.Limit,
				Offset:     cursor,
			})
			if err != nil {
				yield(ScrollPage{}, err)
				return
			}
			if !yield(page, nil) {
				return
			}
			if page.Next == nil {
				return
			}
			if cursor != nil && *page.Next == *cursor {
				yield(ScrollPage{}, fmt.Errorf("scroll cursor did not advance past %s", cursor))
				return
			}
			cursor = page.Next
		}
	}
}

// ScanAll collects every record of a scan.
func ScanAll(ctx context.Context, store Store, req ScrollRequest) ([]Record, error) {
	var records []Record
	for page, err := range Scan(ctx, store, req) {
		if err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
	}
	return records, nil
}

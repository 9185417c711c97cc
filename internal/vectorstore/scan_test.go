package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagedStore serves fixed pages keyed by cursor.
type pagedStore struct {
	Store
	pages map[string]ScrollPage
	calls int
	err   error
}

func (p *pagedStore) Scroll(_ context.Context, req ScrollRequest) (ScrollPage, error) {
	p.calls++
	if p.err != nil {
		return ScrollPage{}, p.err
	}
	key := ""
	if req.Offset != nil {
		key = req.Offset.String()
	}
	return p.pages[key], nil
}

func ptr(id PointID) *PointID { return &id }

func TestScan_StopsOnNilCursor(t *testing.T) {
	store := &pagedStore{pages: map[string]ScrollPage{
		"":  {Records: []Record{{ID: NumID(1)}, {ID: NumID(2)}}, Next: ptr(NumID(3))},
		"3": {Records: []Record{{ID: NumID(3)}, {ID: NumID(4)}}, Next: ptr(NumID(5))},
		"5": {Records: []Record{{ID: NumID(5)}}},
	}}

	var pages int
	for page, err := range Scan(context.Background(), store, ScrollRequest{Collection: "c", Limit: 2}) {
		require.NoError(t, err)
		assert.NotEmpty(t, page.Records)
		pages++
	}
	assert.Equal(t, 3, pages)
	assert.Equal(t, 3, store.calls)
}

func TestScan_EmptyPageWithCursorContinues(t *testing.T) {
	store := &pagedStore{pages: map[string]ScrollPage{
		"":  {Next: ptr(NumID(9))},
		"9": {Records: []Record{{ID: NumID(9)}}},
	}}

	records, err := ScanAll(context.Background(), store, ScrollRequest{Collection: "c", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestScan_Restartable(t *testing.T) {
	store := &pagedStore{pages: map[string]ScrollPage{
		"":  {Records: []Record{{ID: NumID(1)}}, Next: ptr(NumID(2))},
		"2": {Records: []Record{{ID: NumID(2)}}},
	}}
	seq := Scan(context.Background(), store, ScrollRequest{Collection: "c"})

	for range 2 {
		var ids []PointID
		for page, err := range seq {
			require.NoError(t, err)
			for _, r := range page.Records {
				ids = append(ids, r.ID)
			}
		}
		assert.Equal(t, []PointID{NumID(1), NumID(2)}, ids)
	}
}

func TestScan_EarlyBreak(t *testing.T) {
	store := &pagedStore{pages: map[string]ScrollPage{
		"":  {Records: []Record{{ID: NumID(1)}}, Next: ptr(NumID(2))},
		"2": {Records: []Record{{ID: NumID(2)}}},
	}}
	for range Scan(context.Background(), store, ScrollRequest{Collection: "c"}) {
		break
	}
	assert.Equal(t, 1, store.calls)
}

func TestScan_Error(t *testing.T) {
	boom := errors.New("unavailable")
	store := &pagedStore{err: boom}

	_, err := ScanAll(context.Background(), store, ScrollRequest{Collection: "c"})
	assert.ErrorIs(t, err, boom)
}

func TestScan_StuckCursor(t *testing.T) {
	store := &pagedStore{pages: map[string]ScrollPage{
		"":  {Records: []Record{{ID: NumID(1)}}, Next: ptr(NumID(2))},
		"2": {Records: []Record{{ID: NumID(2)}}, Next: ptr(NumID(2))},
	}}
	_, err := ScanAll(context.Background(), store, ScrollRequest{Collection: "c"})
	assert.Error(t, err)
}

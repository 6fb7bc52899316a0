package editbuffer

// SetLoading flags rows as having a commit in flight, or clears the flag.
// Reserved ids are ignored.
func (b *Buffer) SetLoading(value bool, ids ...RowID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		if checkRowID(id) != nil {
			continue
		}
		if value {
			b.loading[id] = true
		} else {
			delete(b.loading, id)
		}
	}
}

// AcquireLoading flags every listed row that is not already loading and
// reports which rows were acquired and which were busy. The check and the
// flag are applied under one lock so two batches never share a row.
// Blank and reserved ids are never acquired and come back as busy.
func (b *Buffer) AcquireLoading(ids ...RowID) (acquired, busy []RowID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		if checkRowID(id) != nil || b.loading[id] {
			busy = append(busy, id)
			continue
		}
		b.loading[id] = true
		acquired = append(acquired, id)
	}
	return acquired, busy
}

// SetAllLoading marks the start (true) or end (false) of a whole-table
// batch. Batches are counted so overlapping commits keep the flag raised
// until the last one ends.
func (b *Buffer) SetAllLoading(value bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if value {
		b.batches++
		return
	}
	if b.batches > 0 {
		b.batches--
	}
}

// IsLoading reports whether the row has a commit in flight.
func (b *Buffer) IsLoading(id RowID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loading[id]
}

// AllLoading reports the aggregate flag.
func (b *Buffer) AllLoading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.batches > 0
}

// Loading snapshots the loading state keyed by row id, plus LoadingAll.
func (b *Buffer) Loading() map[string]bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]bool, len(b.loading)+1)
	for id, v := range b.loading {
		out[string(id)] = v
	}
	out[LoadingAll] = b.batches > 0
	return out
}

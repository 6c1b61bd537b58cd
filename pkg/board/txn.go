package board

// txn records the changes of one forced insert so that a failed insert can
// be undone.
type txn struct {
	b          *Board
	added      map[ItemID]bool
	addedOrder []ItemID
	saved      map[ItemID]*Item
	savedOrder []ItemID
}

func (b *Board) begin() *txn {
	return &txn{
		b:     b,
		added: make(map[ItemID]bool),
		saved: make(map[ItemID]*Item),
	}
}

func (t *txn) add(it *Item) *Item {
	it = t.b.add(it)
	t.added[it.ID] = true
	t.addedOrder = append(t.addedOrder, it.ID)
	return it
}

func (t *txn) save(id ItemID) {
	if t.added[id] {
		return
	}
	if _, ok := t.saved[id]; ok {
		return
	}
	if it := t.b.items[id]; it != nil {
		t.saved[id] = it.clone()
		t.savedOrder = append(t.savedOrder, id)
	}
}

func (t *txn) remove(id ItemID) {
	t.save(id)
	t.b.RemoveItem(id)
}

func (t *txn) modify(id ItemID, fn func(*Item)) {
	t.save(id)
	t.b.update(id, fn)
}

// rollback restores the board to its state at begin.
func (t *txn) rollback() {
	for i := len(t.addedOrder) - 1; i >= 0; i-- {
		t.b.RemoveItem(t.addedOrder[i])
	}
	for _, id := range t.savedOrder {
		t.b.RemoveItem(id)
		t.b.put(t.saved[id].clone())
	}
	t.added = map[ItemID]bool{}
	t.addedOrder = nil
	t.saved = map[ItemID]*Item{}
	t.savedOrder = nil
}

package memory

// table keeps rows keyed by name in insertion order.
type table[T any] struct {
	order []string
	rows  map[string]T
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

// insert adds row under name unless name is already present.
func (t *table[T]) insert(name string, row T) bool {
	if _, ok := t.rows[name]; ok {
		return false
	}
	t.rows[name] = row
	t.order = append(t.order, name)
	return true
}

func (t *table[T]) get(name string) (T, bool) {
	row, ok := t.rows[name]
	return row, ok
}

func (t *table[T]) remove(name string) (T, bool) {
	row, ok := t.rows[name]
	if !ok {
		return row, false
	}
	delete(t.rows, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return row, true
}

func (t *table[T]) snapshot() []T {
	out := make([]T, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.rows[name])
	}
	return out
}

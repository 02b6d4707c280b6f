// Package fifo provides an insertion-ordered map. Overwriting a key keeps its
// original position; only Delete followed by Set moves it to the back.
// Not safe for concurrent use.
package fifo

import "container/list"

type node[K comparable, V any] struct {
	key K
	val V
}

type Map[K comparable, V any] struct {
	ll    *list.List
	index map[K]*list.Element
}

func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{ll: list.New(), index: make(map[K]*list.Element)}
}

func (m *Map[K, V]) Len() int { return len(m.index) }

func (m *Map[K, V]) Get(k K) (V, bool) {
	if e, ok := m.index[k]; ok {
		return e.Value.(*node[K, V]).val, true
	}
	var zero V
	return zero, false
}

// Set stores v under k and reports whether k was newly inserted.
func (m *Map[K, V]) Set(k K, v V) bool {
	if e, ok := m.index[k]; ok {
		e.Value.(*node[K, V]).val = v
		return false
	}
	m.index[k] = m.ll.PushBack(&node[K, V]{key: k, val: v})
	return true
}

func (m *Map[K, V]) Delete(k K) bool {
	e, ok := m.index[k]
	if !ok {
		return false
	}
	m.ll.Remove(e)
	delete(m.index, k)
	return true
}

// Oldest returns the earliest inserted key still held.
func (m *Map[K, V]) Oldest() (K, V, bool) {
	e := m.ll.Front()
	if e == nil {
		var (
			zk K
			zv V
		)
		return zk, zv, false
	}
	n := e.Value.(*node[K, V])
	return n.key, n.val, true
}

// DeleteFunc removes every entry for which fn returns true, in insertion order,
// and returns the removed keys.
func (m *Map[K, V]) DeleteFunc(fn func(k K, v V) bool) []K {
	var removed []K
	for e := m.ll.Front(); e != nil; {
		next := e.Next()
		n := e.Value.(*node[K, V])
		if fn(n.key, n.val) {
			m.ll.Remove(e)
			delete(m.index, n.key)
			removed = append(removed, n.key)
		}
		e = next
	}
	return removed
}

// Keys returns the keys in insertion order.
func (m *Map[K, V]) Keys() []K {
	out := make([]K, 0, len(m.index))
	for e := m.ll.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*node[K, V]).key)
	}
	return out
}

func (m *Map[K, V]) Clear() {
	m.ll.Init()
	m.index = make(map[K]*list.Element)
}

package csync

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap_ConcurrentUpdate(t *testing.T) {
	m := NewMap[string, int]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Update("hits", func(old int, _ bool) int { return old + 1 })
		}()
	}
	wg.Wait()

	v, ok := m.Get("hits")
	assert.True(t, ok)
	assert.Equal(t, 50, v)
}

func TestMap_Basics(t *testing.T) {
	m := NewMap[string, string]()
	m.Set("b", "2")
	m.Set("a", "1")
	m.Set("c", "3")
	m.Delete("c")

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, m.ToMap())
	assert.Equal(t, []string{"a", "b"}, SortedKeys(m, func(x, y string) bool { return x < y }))

	_, ok := m.Get("c")
	assert.False(t, ok)

	visited := 0
	m.Range(func(string, string) bool {
		visited++
		return false
	})
	assert.Equal(t, 1, visited)
}

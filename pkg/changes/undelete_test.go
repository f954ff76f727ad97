package changes

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type list struct {
	values []string
}

// removeAt deletes the value at index and returns the entry restoring it.
func removeAt(l *list, index int) Undelete[*list] {
	value := l.values[index]
	l.values = slices.Delete(l.values, index, index+1)
	return UndeleteFunc[*list](func(m *list) error {
		if index > len(m.values) {
			return errors.New("index out of range")
		}
		m.values = slices.Insert(m.values, index, value)
		return nil
	})
}

func TestUndeleteAllReplaysNewestFirst(t *testing.T) {
	l := &list{values: []string{"a", "b", "c"}}
	var log UndeleteLog[*list]

	// Cascade removing each value from the front; replaying oldest first
	// would insert "a" at 0 and then "b" at 0, reversing the order.
	log.Append(removeAt(l, 0))
	log.Append(removeAt(l, 0))
	log.Append(removeAt(l, 0))
	require.Empty(t, l.values)
	require.Equal(t, 3, log.Len())

	require.NoError(t, log.UndeleteAll(l))
	assert.Equal(t, []string{"a", "b", "c"}, l.values)
}

type recorder struct {
	name   string
	order  *[]string
	err    error
	closed bool
}

func (r *recorder) Undelete(*list) error {
	*r.order = append(*r.order, r.name)
	return r.err
}

func (r *recorder) Close() { r.closed = true }

func TestUndeleteAllStopsAtFirstFailure(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	var log UndeleteLog[*list]
	log.Append(&recorder{name: "first", order: &order})
	log.Append(&recorder{name: "second", order: &order, err: boom})
	log.Append(&recorder{name: "third", order: &order})

	err := log.UndeleteAll(&list{})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"third", "second"}, order)
}

func TestCloseClosesEntries(t *testing.T) {
	var order []string
	a := &recorder{name: "a", order: &order}
	b := &recorder{name: "b", order: &order}
	var log UndeleteLog[*list]
	log.Append(a)
	log.Append(b)

	var other UndeleteLog[*list]
	other.AppendLog(&log)
	assert.Equal(t, 0, log.Len())
	assert.Equal(t, 2, other.Len())

	other.Close()

	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.Equal(t, 0, other.Len())
}

package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFS(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{
		"memory": NewMemory(),
		"fs":     fsStore,
		"s3":     newMockS3(t),
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			key := Key("0190a4c2-0000-7000-8000-000000000001", "data")

			_, err := s.Get(ctx, key)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Put(ctx, key, []byte("first")))
			require.NoError(t, s.Put(ctx, key, []byte("second")))
			got, err := s.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, []byte("second"), got)

			require.NoError(t, s.Put(ctx, Key("other", "thumb"), []byte{1, 2}))
			keys, err := s.List(ctx, "0190")
			require.NoError(t, err)
			assert.Equal(t, []string{key}, keys)

			require.NoError(t, s.Delete(ctx, key))
			assert.ErrorIs(t, s.Delete(ctx, key), ErrNotFound)
			_, err = s.Get(ctx, key)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{"plain", "abc/data", "abc/data", false},
		{"redundant slashes", "abc//data", "abc/data", false},
		{"empty", "  ", "", true},
		{"absolute", "/etc/passwd", "", true},
		{"traversal", "../secret", "", true},
		{"embedded traversal", "a/../../b", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanKey(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	in := []byte("abc")
	require.NoError(t, m.Put(ctx, "k", in))
	in[0] = 'x'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	got[1] = 'y'

	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestDrivers(t *testing.T) {
	for name, s := range stores(t) {
		assert.Equal(t, Driver(name), s.Driver())
	}
}

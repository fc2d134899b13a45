package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecret(t *testing.T) {
	t.Run("expose returns the wrapped bytes", func(t *testing.T) {
		s := NewSecret([]byte("hunter2"))
		assert.Equal(t, []byte("hunter2"), s.Expose())
		assert.Equal(t, 7, s.Len())
	})

	t.Run("close zeroizes the buffer", func(t *testing.T) {
		s := NewSecret([]byte{1, 2, 3, 4})
		s.Close()
		for _, b := range s.Expose() {
			assert.Equal(t, byte(0), b)
		}
	})

	t.Run("close is safe to call twice", func(t *testing.T) {
		s := NewSecret([]byte{1, 2, 3})
		s.Close()
		assert.NotPanics(t, func() { s.Close() })
	})

	t.Run("nil secret is safe", func(t *testing.T) {
		var s *Secret
		assert.Nil(t, s.Expose())
		assert.Equal(t, 0, s.Len())
		assert.NotPanics(t, func() { s.Close() })
	})

	t.Run("string and gostring never leak contents", func(t *testing.T) {
		s := NewSecret([]byte("top-secret"))
		assert.NotContains(t, s.String(), "top-secret")
		assert.NotContains(t, s.GoString(), "top-secret")
	})
}

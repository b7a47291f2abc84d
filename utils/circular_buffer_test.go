package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCircularBuffer(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		writes []string
		want   string
	}{
		{name: "empty", size: 4, want: ""},
		{name: "not full", size: 8, writes: []string{"ab", "cd"}, want: "abcd"},
		{name: "exactly full", size: 4, writes: []string{"abcd"}, want: "abcd"},
		{name: "overwrite oldest", size: 4, writes: []string{"abc", "def"}, want: "cdef"},
		{name: "large write", size: 3, writes: []string{"0123456789"}, want: "789"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewCircularBuffer(tt.size)
			for _, w := range tt.writes {
				n, err := cb.Write([]byte(w))
				assert.NoError(t, err)
				assert.Equal(t, len(w), n)
			}
			assert.Equal(t, tt.want, cb.String())
			assert.Equal(t, len(tt.want), cb.Len())
		})
	}
}

func TestCircularBufferDefaultSize(t *testing.T) {
	cb := NewCircularBuffer(0)
	_, _ = cb.Write(make([]byte, 64*1024+10))
	assert.Equal(t, 64*1024, cb.Len())
}

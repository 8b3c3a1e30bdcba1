package gormlog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShortCaller(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/home/ci/gachapon/internal/app/service/payment/store.go:41", "internal/app/service/payment/store.go:41"},
		{"/go/pkg/mod/gorm.io/gorm@v1.31.1/callbacks.go:12", "pkg/mod/gorm.io/gorm@v1.31.1/callbacks.go:12"},
		{"/a/b/c/d.go:3", "b/c/d.go:3"},
		{"/x.go:1", "x.go:1"},
		{"", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, shortCaller(tt.in))
	}
}

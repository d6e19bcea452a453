package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("Registry.Get", ErrToolNotFound, "hapus_siswa")
	want := "Registry.Get: hapus_siswa: tool not found"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorFormatNoDetail(t *testing.T) {
	err := NewDomainError("Store.Ping", ErrStoreUnavailable, "")
	want := "Store.Ping: attendance store unavailable"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	err := NewDomainError("Store.GetSiswa", ErrNotFound, "id 7")
	if !errors.Is(err, ErrNotFound) {
		t.Error("errors.Is should match ErrNotFound")
	}
}

func TestWrapOp(t *testing.T) {
	assert.NoError(t, WrapOp("op", nil))

	err := WrapOp("Store.ListAbsensi", ErrTimeout)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "Store.ListAbsensi: operation timed out", err.Error())
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(fmt.Errorf("x: %w", ErrRateLimit)))
	assert.True(t, IsRetryableError(ErrTimeout))
	assert.False(t, IsRetryableError(ErrAuthInvalid))
}

func TestErrorCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, CodeUnknown},
		{"sentinel", ErrToolNotFound, CodeToolNotFound},
		{"domain error", NewDomainError("Registry.Get", ErrToolNotFound, "x"), CodeToolNotFound},
		{"wrapped", fmt.Errorf("ctx: %w", ErrRateLimit), CodeRateLimit},
		{"subsystem", NewSubSystemError("siswa", "Service.resolve", ErrNotFound, "Budi"), CodeStudentNotFound},
		{"subsystem fallback", NewSubSystemError("other", "op", ErrNotFound, ""), CodeNotFound},
		{"gateway auth", ErrGatewayAuthFailed, CodeGatewayAuth},
		{"unknown", fmt.Errorf("boom"), CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCodeOf(tt.err))
		})
	}
}

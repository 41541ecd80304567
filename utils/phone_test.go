package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		cc   string
		want string
	}{
		{"already canonical", "5511912345678", "55", "5511912345678"},
		{"plus and punctuation", "+55 (11) 91234-5678", "55", "5511912345678"},
		{"dots and spaces", "55.11.91234.5678", "55", "5511912345678"},
		{"national number gains country code", "11912345678", "55", "5511912345678"},
		{"national number with plus country code config", "11912345678", "+55", "5511912345678"},
		{"double-zero dialing prefix stripped", "005511912345678", "55", "5511912345678"},
		{"no default country code", "11912345678", "", "11912345678"},
		{"foreign number with plus kept as-is", "+14155550123", "55", "14155550123"},
		{"eight digit landline", "33445566", "", "33445566"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw, tt.cc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePhoneRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"too short", "123"},
		{"empty", ""},
		{"letters only", "call me"},
		{"too long", "1234567890123456"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizePhone(tt.raw, "55")
			assert.Error(t, err)
		})
	}
}

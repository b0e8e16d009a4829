package watlink

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseVariant(t *testing.T) {
	tests := []struct {
		in   string
		want []Variant
	}{
		{"plain", []Variant{Plain}},
		{"HostFuncs", []Variant{HostFuncs}},
		{"all", []Variant{HostFuncs, Plain}},
		{"", []Variant{HostFuncs, Plain}},
	}
	for _, tt := range tests {
		got, err := ParseVariant(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
	_, err := ParseVariant("fast")
	require.Error(t, err)
}

func TestVariantNames(t *testing.T) {
	require.Equal(t, "plain", Plain.String())
	require.Equal(t, "hostfuncs", HostFuncs.String())
	require.Equal(t, "main_with_websnark.wasm", Plain.ArtifactName())
	require.Equal(t, "main_with_websnark_bignum_hostfuncs.wasm", HostFuncs.ArtifactName())
	require.False(t, Plain.UsesHostFuncs())
	require.True(t, HostFuncs.UsesHostFuncs())
}

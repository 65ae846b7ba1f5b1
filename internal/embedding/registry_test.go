package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lookup(t *testing.T) {
	small := &stubProvider{spec: Spec{Model: "text-embedding-3-small", Provider: "openai", Dimension: 1536}}
	e5 := &stubProvider{spec: Spec{Model: "multilingual-e5-large", Provider: "tei", Dimension: 1024}}

	reg, err := NewRegistry(small, e5)
	require.NoError(t, err)

	p, err := reg.Lookup("multilingual-e5-large", "tei")
	require.NoError(t, err)
	assert.Equal(t, 1024, p.Spec().Dimension)

	_, err = reg.Lookup("multilingual-e5-large", "openai")
	require.ErrorIs(t, err, ErrUnsupportedConfiguration)

	specs := reg.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, "openai", specs[0].Provider)
	assert.Equal(t, "tei", specs[1].Provider)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	a := &stubProvider{spec: Spec{Model: "m", Provider: "openai", Dimension: 768}}
	b := &stubProvider{spec: Spec{Model: "m", Provider: "openai", Dimension: 768}}

	_, err := NewRegistry(a, b)
	require.Error(t, err)
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "cohere", Model: "embed", Dimension: 1024})
	require.ErrorIs(t, err, ErrUnsupportedConfiguration)

	_, err = NewProvider(ProviderConfig{Provider: "tei", Model: "e5", Dimension: 1024})
	require.ErrorIs(t, err, ErrUnsupportedConfiguration, "tei needs a base url")
}

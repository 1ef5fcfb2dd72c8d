package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProps(t *testing.T) {
	props, err := parseProps([]string{"hiring=true", "funding=false", "amount=125000", "name=Acme Corp"})
	require.NoError(t, err)

	assert.Equal(t, true, props["hiring"])
	assert.Equal(t, false, props["funding"])
	assert.Equal(t, float64(125000), props["amount"])
	assert.Equal(t, "Acme Corp", props["name"])
}

func TestParsePropsRejectsMalformedPair(t *testing.T) {
	_, err := parseProps([]string{"hiring"})
	assert.Error(t, err)

	_, err = parseProps([]string{"=true"})
	assert.Error(t, err)
}

func TestScratchConfigIsValid(t *testing.T) {
	require.NoError(t, scratchConfig().Validate())
}

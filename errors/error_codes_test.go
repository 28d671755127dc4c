package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestERR_String(t *testing.T) {
	assert.Equal(t, "UNKNOWN", ERR_UNKNOWN.String())
	assert.Equal(t, "PROOF_INVALID", ERR_PROOF_INVALID.String())
	assert.Equal(t, "INCLUSION_PROOF_FAILED", ERR_INCLUSION_PROOF_FAILED.String())
	assert.Equal(t, "MISSING_LOCAL_BLOCKS", ERR_MISSING_LOCAL_BLOCKS.String())
	assert.Equal(t, "ERR(12345)", ERR(12345).String())
}

func TestERR_NameValueTablesAgree(t *testing.T) {
	for value, name := range ERR_name {
		assert.Equal(t, value, ERR_value[name], "name %s maps back to %d", name, value)
	}

	assert.Len(t, ERR_value, len(ERR_name))
}

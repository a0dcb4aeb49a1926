package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamwoolhether/virtualnode/business/sys/validate"
)

type listParams struct {
	Start string `json:"start"`
	Limit int    `json:"limit" validate:"min=0,max=1000"`
	Asset string `json:"asset" validate:"omitempty,objectid"`
}

func TestCheck(t *testing.T) {
	require.NoError(t, validate.Check(listParams{Limit: 10, Asset: "1.3.0"}))

	err := validate.Check(listParams{Limit: 5000, Asset: "xom"})
	require.True(t, validate.IsFieldErrors(err))

	fields := validate.GetFieldErrors(err).Fields()
	assert.Contains(t, fields, "limit")
	assert.Equal(t, "asset must be an object id like 1.2.0", fields["asset"])
}

func TestCheckObjectID(t *testing.T) {
	require.NoError(t, validate.CheckObjectID("1.2.100"))
	require.ErrorIs(t, validate.CheckObjectID("nathan"), validate.ErrInvalidID)
}

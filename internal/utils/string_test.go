package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSubject(t *testing.T) {
	assert.Equal(t, "Quarterly report", NormalizeSubject("Re: Quarterly report"))
	assert.Equal(t, "Quarterly report", NormalizeSubject("FWD: Quarterly report"))
	assert.Equal(t, "Quarterly report", NormalizeSubject("Quarterly report"))
	assert.Equal(t, "", NormalizeSubject("  "))
}

func TestGenerateNanoIDWithPrefix(t *testing.T) {
	id := GenerateNanoIDWithPrefix("acc", 16)

	assert.True(t, strings.HasPrefix(id, "acc_"))
	assert.Len(t, id, len("acc_")+16)

	other := GenerateNanoIDWithPrefix("acc", 16)
	assert.NotEqual(t, id, other)
}

func TestIsStringInSlice(t *testing.T) {
	assert.True(t, IsStringInSlice("b", []string{"a", "b"}))
	assert.False(t, IsStringInSlice("c", []string{"a", "b"}))
	assert.False(t, IsStringInSlice("a", nil))
}

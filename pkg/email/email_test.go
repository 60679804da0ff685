package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMask(t *testing.T) {
	assert.Equal(t, "a***@x.com", Mask("ana@x.com"))
	assert.Equal(t, "ñ***@x.com", Mask("ñandu@x.com"))
	assert.Equal(t, "***", Mask("@x.com"))
	assert.Equal(t, "***", Mask("plain"))
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "***00", MaskPhone("+50370000000"))
	assert.Equal(t, "***", MaskPhone("7"))
}

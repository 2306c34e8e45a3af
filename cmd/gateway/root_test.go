package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetVersionAndGetVersion(t *testing.T) {
	defer SetVersion(GetVersion())

	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", GetVersion())
}

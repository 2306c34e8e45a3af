package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskRedactsConfiguredFields(t *testing.T) {
	m := newMasker([]string{"password", "token"})
	r := Record{Arguments: map[string]interface{}{"password": "hunter2", "token": "abc", "username": "alice"}}

	masked := m.mask(r)
	assert.Equal(t, "***", masked.Arguments["password"])
	assert.Equal(t, "***", masked.Arguments["token"])
	assert.Equal(t, "alice", masked.Arguments["username"])
}

func TestMaskNoFieldsIsNoop(t *testing.T) {
	m := newMasker(nil)
	r := Record{Arguments: map[string]interface{}{"password": "hunter2"}}
	masked := m.mask(r)
	assert.Equal(t, "hunter2", masked.Arguments["password"])
}

func TestMaskNilArgumentsIsNoop(t *testing.T) {
	m := newMasker([]string{"password"})
	r := Record{}
	masked := m.mask(r)
	assert.Nil(t, masked.Arguments)
}

package gateway

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSelfUpdateRejectsDevBuild(t *testing.T) {
	defer SetVersion(GetVersion())
	SetVersion("dev")

	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	err := runSelfUpdate(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "development build")
}

func TestRunSelfUpdateRejectsEmptyVersion(t *testing.T) {
	defer SetVersion(GetVersion())
	SetVersion("")

	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	err := runSelfUpdate(cmd, nil)
	require.Error(t, err)
}

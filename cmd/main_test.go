package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"run-single", "run-from-file", "run-from-sqs", "submit-message"}, names)

	sqs, _, err := root.Find([]string{"run-from-sqs"})
	require.NoError(t, err)
	overwrite := sqs.Flags().Lookup("overwrite")
	require.NotNil(t, overwrite)
	assert.Equal(t, "true", overwrite.DefValue)
	assert.Equal(t, "2h0m0s", sqs.Flags().Lookup("visibility-timeout").DefValue)
	assert.Equal(t, "1", sqs.Flags().Lookup("max-messages").DefValue)
}

func TestRunSingleRejectsInvalidIdentifier(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"run-single", "--quiet", "--dataset-uuid", "not-a-uuid", "--process-cfg-url", "s3://bucket/cfg.yaml"})

	err = root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a dataset uuid")
}

func TestRunSingleRequiresConfig(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run-single", "--dataset-uuid", "44220f30-1ece-4b16-b3e1-b117ac61184f"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "process-cfg-url")
}

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestIntentsCheck_BuiltInRules(t *testing.T) {
	out, err := run(t, "intents", "check", "-", "Хүргэлтийн", "төлбөр", "хэд", "вэ?")
	require.NoError(t, err)

	var res struct {
		Intent string `yaml:"intent"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &res))
	assert.Equal(t, "delivery_fee", res.Intent)
}

func TestIntentsCheck_NeedsMessage(t *testing.T) {
	_, err := run(t, "intents", "check", "-")
	assert.Error(t, err)
}

func TestOutboxRevertDead_RequiresStore(t *testing.T) {
	_, err := run(t, "outbox", "revert-dead")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store")
}

func TestDateRange(t *testing.T) {
	cmd := newReportCmd()
	deliveries, _, err := cmd.Find([]string{"deliveries"})
	require.NoError(t, err)
	require.NoError(t, deliveries.Flags().Set("from", "2026-03-01"))
	require.NoError(t, deliveries.Flags().Set("to", "2026-03-31"))

	from, to, err := dateRange(deliveries)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, 31, to.Day())
	assert.Equal(t, 23, to.Hour())

	require.NoError(t, deliveries.Flags().Set("to", "2026-02-01"))
	_, _, err = dateRange(deliveries)
	assert.Error(t, err)
}

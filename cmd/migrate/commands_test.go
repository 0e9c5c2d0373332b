package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarceloPazPezo/Plantilla-PERN/internal/migrate"
)

func TestConfirmReset(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, confirmReset(context.Background(), &out, true, time.Hour))
	assert.Empty(t, out.String())

	require.NoError(t, confirmReset(context.Background(), &out, false, time.Millisecond))
	assert.Contains(t, out.String(), "WARNING")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, confirmReset(ctx, &out, false, time.Hour), context.Canceled)
}

func TestPrintStatus(t *testing.T) {
	var out bytes.Buffer
	printStatus(&out, []migrate.MigrationStatus{
		{Name: "0001_rbac.up.sql", Applied: true},
		{Name: "0002_next.up.sql"},
	})
	assert.Equal(t, "applied  0001_rbac.up.sql\npending  0002_next.up.sql\n", out.String())
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"up", "down", "status", "seed", "reset"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	reset, _, _ := root.Find([]string{"reset"})
	assert.NotNil(t, reset.Flags().Lookup("yes"))
}

func TestLoadFixtureDefault(t *testing.T) {
	f, err := loadFixture("")
	require.NoError(t, err)
	assert.Len(t, f.Roles, 3)

	_, err = loadFixture("does-not-exist.yaml")
	assert.Error(t, err)
}

package main

import (
	"flag"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagSetDetectsExplicitZeroSeed(t *testing.T) {
	parse := func(args ...string) *flag.FlagSet {
		fs := flag.NewFlagSet("generate", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		fs.Int64("seed", 0, "")
		require.NoError(t, fs.Parse(args))
		return fs
	}

	assert.True(t, flagSet(parse("-seed", "0"), "seed"))
	assert.True(t, flagSet(parse("-seed=42"), "seed"))
	assert.False(t, flagSet(parse(), "seed"))
}

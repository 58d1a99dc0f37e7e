package flags

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// TestUniqueFlags asserts that all flag names are unique
func TestUniqueFlags(t *testing.T) {
	seen := map[string]struct{}{}
	for _, flag := range Flags {
		name := flag.Names()[0]
		if _, ok := seen[name]; ok {
			t.Errorf("duplicate flag %s", name)
			continue
		}
		seen[name] = struct{}{}
	}
}

// TestCorrectEnvVarPrefix asserts that all flags have an env var prefixed
// with WEBSPEC_ and no dashes in the env var name
func TestCorrectEnvVarPrefix(t *testing.T) {
	for _, flag := range Flags {
		values := flag.(interface{ GetEnvVars() []string }).GetEnvVars()
		require.NotEmpty(t, values, "flag %s has no env vars", flag.Names()[0])
		envVar := values[0]
		assert.Truef(t, strings.HasPrefix(envVar, EnvVarPrefix+"_"),
			"flag %s env var %s does not start with %s_", flag.Names()[0], envVar, EnvVarPrefix)
		assert.NotContainsf(t, envVar, "-", "flag %s env var %s contains a dash", flag.Names()[0], envVar)
	}
}

func TestRequiredFlagsAreRequired(t *testing.T) {
	for _, flag := range requiredFlags {
		reqFlag, ok := flag.(cli.RequiredFlag)
		require.True(t, ok)
		assert.Truef(t, reqFlag.IsRequired(), "flag %s is in requiredFlags but not marked required", flag.Names()[0])
	}
	assert.True(t, slices.Contains(requiredFlags, cli.Flag(BaseURL)))
	assert.True(t, slices.Contains(requiredFlags, cli.Flag(SpecDir)))
}

func TestConcurrencyParallelAlias(t *testing.T) {
	app := cli.NewApp()
	app.Flags = Flags
	var got int
	app.Action = func(ctx *cli.Context) error {
		got = ctx.Int(Concurrency.Name)
		return nil
	}

	require.NoError(t, app.Run([]string{"webspec",
		"--base-url", "http://localhost:8080", "--specdir", "./specs", "--parallel", "8"}))
	assert.Equal(t, 8, got)
}

func TestCheckRequired(t *testing.T) {
	app := cli.NewApp()
	app.Flags = Flags
	var checkErr error
	app.Action = func(ctx *cli.Context) error {
		checkErr = CheckRequired(ctx)
		return nil
	}

	require.NoError(t, app.Run([]string{"webspec", "--base-url", "http://localhost:8080", "--specdir", "./specs"}))
	assert.NoError(t, checkErr)
}

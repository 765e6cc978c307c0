package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfigPathPrecedence(t *testing.T) {
	t.Setenv("ARTBOT_CONFIG", "/env.yaml")

	opts := Options{ConfigEnvVar: "ARTBOT_CONFIG", DefaultConfigPath: "config.yaml"}
	assert.Equal(t, "/env.yaml", opts.ResolveConfigPath())

	opts.ConfigPath = "/flag.yaml"
	assert.Equal(t, "/flag.yaml", opts.ResolveConfigPath())

	t.Setenv("ARTBOT_CONFIG", "")
	opts.ConfigPath = ""
	assert.Equal(t, "config.yaml", opts.ResolveConfigPath())
}

func TestRunServicesStopsAllOnFirstError(t *testing.T) {
	stopped := make(chan struct{})
	err := RunServices(context.Background(), []Service{
		{Name: "http", Run: func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped)
			return nil
		}},
		{Name: "telegram", Run: func(context.Context) error {
			return errors.New("token revoked")
		}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram: token revoked")
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("sibling service was not stopped")
	}
}

func TestRunServicesReturnsWhenOneFinishes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := RunServices(ctx, []Service{
		{Name: "bot", Run: func(context.Context) error { return nil }},
		{Name: "jobs", Run: func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}},
	})
	require.NoError(t, err)
	assert.NoError(t, ctx.Err(), "services must stop before the outer deadline")
}

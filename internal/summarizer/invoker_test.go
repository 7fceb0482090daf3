package summarizer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverbeek/lecturecast/internal/model"
)

func newTestInvoker() *Invoker {
	return NewInvoker("python", "main.py", "uploads", "outputs", "gemini-1.5-flash", time.Minute)
}

func TestInvokeArgumentContract(t *testing.T) {
	inv := newTestInvoker()
	var gotName string
	var gotArgs []string
	inv.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		gotName = name
		gotArgs = args
		return nil
	})

	require.NoError(t, inv.Invoke(context.Background(), model.ModelSmall))

	assert.Equal(t, "python", gotName)
	assert.Equal(t, []string{
		"main.py",
		"--input-dir", "uploads",
		"--output-dir", "outputs",
		"--model-size", "small",
		"--gemini-model", "gemini-1.5-flash",
		"--web-single",
	}, gotArgs)
}

func TestInvokeDefaultsModelSize(t *testing.T) {
	inv := newTestInvoker()
	var gotArgs []string
	inv.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		gotArgs = args
		return nil
	})

	require.NoError(t, inv.Invoke(context.Background(), ""))
	assert.Contains(t, gotArgs, "base")
}

func TestInvokeNonZeroExit(t *testing.T) {
	inv := newTestInvoker()
	inv.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return &InvocationError{ExitCode: 2, Output: "traceback"}
	})

	err := inv.Invoke(context.Background(), model.ModelBase)
	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, 2, invErr.ExitCode)
	assert.Contains(t, invErr.Error(), "code 2")
}

func TestInvokeSpawnFailure(t *testing.T) {
	inv := NewInvoker("definitely-not-a-real-binary-xyz", "main.py", "uploads", "outputs", "gemini-1.5-flash", time.Minute)

	err := inv.Invoke(context.Background(), model.ModelBase)
	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, -1, invErr.ExitCode)
}

func TestInvokeAppliesTimeout(t *testing.T) {
	inv := NewInvoker("python", "main.py", "uploads", "outputs", "gemini-1.5-flash", 10*time.Millisecond)
	inv.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 50*time.Millisecond)
		return nil
	})

	require.NoError(t, inv.Invoke(context.Background(), model.ModelBase))
}

// Package summarizer launches the external Python summarization pipeline.
// The pipeline is an opaque collaborator: it reads videos from the input
// directory, writes summary artifacts into the output directory, and signals
// success solely through its exit code.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/dverbeek/lecturecast/internal/model"
)

// InvocationError reports a failed summarizer run. ExitCode is -1 when the
// process could not be spawned at all.
type InvocationError struct {
	ExitCode int
	Output   string
	Err      error
}

func (e *InvocationError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("summarizer exited with code %d: %s", e.ExitCode, e.Output)
	}
	return fmt.Sprintf("summarizer failed to start: %v", e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// Invoker runs the summarizer synchronously with a bounded-time contract.
type Invoker struct {
	pythonBin   string
	scriptPath  string
	inputDir    string
	outputDir   string
	geminiModel string
	timeout     time.Duration

	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewInvoker constructs an Invoker.
func NewInvoker(pythonBin, scriptPath, inputDir, outputDir, geminiModel string, timeout time.Duration) *Invoker {
	return &Invoker{
		pythonBin:   pythonBin,
		scriptPath:  scriptPath,
		inputDir:    inputDir,
		outputDir:   outputDir,
		geminiModel: geminiModel,
		timeout:     timeout,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (inv *Invoker) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	inv.commandRunner = runner
}

// Invoke runs one summarization pass and blocks until the process exits or
// the configured timeout elapses. A nil return means exit code 0; any other
// outcome is an *InvocationError. No retries are attempted here.
func (inv *Invoker) Invoke(ctx context.Context, modelSize model.ModelSize) error {
	if inv.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.timeout)
		defer cancel()
	}
	args := inv.buildArgs(modelSize)
	if err := inv.run(ctx, inv.pythonBin, args...); err != nil {
		var invErr *InvocationError
		if errors.As(err, &invErr) {
			return err
		}
		return &InvocationError{ExitCode: -1, Err: err}
	}
	return nil
}

// buildArgs constructs the fixed, ordered argument list the script expects.
func (inv *Invoker) buildArgs(modelSize model.ModelSize) []string {
	if modelSize == "" {
		modelSize = model.DefaultModelSize
	}
	return []string{
		inv.scriptPath,
		"--input-dir", inv.inputDir,
		"--output-dir", inv.outputDir,
		"--model-size", string(modelSize),
		"--gemini-model", inv.geminiModel,
		"--web-single",
	}
}

func (inv *Invoker) run(ctx context.Context, name string, args ...string) error {
	if inv.commandRunner != nil {
		return inv.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &InvocationError{
			ExitCode: exitErr.ExitCode(),
			Output:   strings.TrimSpace(string(output)),
			Err:      err,
		}
	}
	return &InvocationError{ExitCode: -1, Err: err}
}

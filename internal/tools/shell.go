package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/geomind/agentcore/pkg/models"
)

// DefaultCommandTimeout bounds one execute_command call.
const DefaultCommandTimeout = 30 * time.Second

const (
	maxStdoutChars = 20_000
	maxStderrChars = 5_000
)

type ExecuteCommandInput struct {
	Command    string `json:"command" jsonschema_description:"Shell command line to run."`
	WorkingDir string `json:"workingDir,omitempty" jsonschema_description:"Working directory. Defaults to the sandbox root."`
}

type ExecuteCommandOutput struct {
	Command  string `json:"command"`
	ExitCode int    `json:"exitCode"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr,omitempty"`
}

func commandTool(sandboxRoot string, timeout time.Duration) Tool {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return Tool{
		Definition: models.ToolDefinition{
			Name: "execute_command",
			Description: fmt.Sprintf("Run a shell command. Killed after %s; stdout is cut at %d characters and stderr at %d.",
				timeout, maxStdoutChars, maxStderrChars),
			InputSchema: GenerateSchema[ExecuteCommandInput](),
		},
		Operation: func(input json.RawMessage) (models.OperationRequest, error) {
			in, err := decode[ExecuteCommandInput](input)
			if err != nil {
				return models.OperationRequest{}, err
			}
			if in.Command == "" {
				return models.OperationRequest{}, errors.New("command is required")
			}
			return models.OperationRequest{Kind: models.OpExecute, Command: in.Command}, nil
		},
		Handler: func(ctx context.Context, input json.RawMessage) (any, error) {
			in, err := decode[ExecuteCommandInput](input)
			if err != nil {
				return nil, err
			}
			dir := sandboxRoot
			if in.WorkingDir != "" {
				dir = in.WorkingDir
				if !filepath.IsAbs(dir) {
					dir = filepath.Join(sandboxRoot, dir)
				}
			}
			return runCommand(ctx, in.Command, dir, timeout)
		},
	}
}

func runCommand(ctx context.Context, command, dir string, timeout time.Duration) (*ExecuteCommandOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("command timed out after %s", timeout)
	}

	out := &ExecuteCommandOutput{Command: command}
	out.Stdout, _ = clampRunes(stdout.String(), maxStdoutChars)
	out.Stderr, _ = clampRunes(stderr.String(), maxStderrChars)

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		out.ExitCode = exitErr.ExitCode()
	default:
		return nil, fmt.Errorf("start command: %w", err)
	}
	return out, nil
}

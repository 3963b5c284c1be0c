package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// DefaultTimeout bounds a single exporter run.
const DefaultTimeout = 5 * time.Second

// Executor runs exporters with a timeout.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates an Executor. A non-positive timeout uses DefaultTimeout.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{timeout: timeout}
}

// Execute runs the exporter with req on stdin and parses its stdout.
// A response with Success false is returned as an error.
func (e *Executor) Execute(ctx context.Context, exp *Exporter, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, exp.Executable)
	cmd.Dir = exp.Path
	// Children of the exporter may hold stdout open after it is killed.
	cmd.WaitDelay = time.Second

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("exporter %s timed out after %s", exp.Manifest.Name, e.timeout)
	}
	if err != nil {
		if s := stderr.String(); s != "" {
			return nil, fmt.Errorf("exporter %s failed: %w, stderr: %s", exp.Manifest.Name, err, s)
		}
		return nil, fmt.Errorf("exporter %s failed: %w", exp.Manifest.Name, err)
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse exporter response: %w, stdout: %s", err, stdout.String())
	}
	if !resp.Success {
		return &resp, fmt.Errorf("exporter %s: %s", exp.Manifest.Name, resp.Error)
	}

	return &resp, nil
}

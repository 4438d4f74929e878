package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Executor runs a single job instance and returns its combined output.
// A non-nil error means the job's tests failed (or could not run);
// executors never retry.
type Executor interface {
	Execute(ctx context.Context, spec JobSpec) (output string, err error)
}

// LocalExecutor runs jobs on the local host in a shell.
type LocalExecutor struct{}

func NewLocalExecutor() *LocalExecutor {
	return &LocalExecutor{}
}

// Execute runs the spec's command (sh -c) with the job timeout applied.
// Axis values travel as environment variables so the command stays a
// plain string until this point.
func (e *LocalExecutor) Execute(ctx context.Context, spec JobSpec) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", CommandLine(spec))
	cmd.Env = append(os.Environ(), envFor(spec)...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	return out.String(), err
}

// CommandLine serializes a spec to the shell command that runs it.
// This is the one place a JobSpec becomes a string.
func CommandLine(spec JobSpec) string {
	parts := []string{spec.Run}
	if spec.Markers != "" {
		parts = append(parts, "-m", fmt.Sprintf("%q", spec.Markers))
	}
	parts = append(parts, spec.CoverageFlags...)
	if spec.ShardCount > 1 {
		parts = append(parts,
			fmt.Sprintf("--splits=%d", spec.ShardCount),
			fmt.Sprintf("--group=%d", spec.ShardIndex),
			"--durations-path="+spec.DurationsFile(),
		)
	}
	parts = append(parts, "--junit-xml="+spec.ReportPath())
	parts = append(parts, spec.ExtraArgs...)
	return strings.Join(parts, " ")
}

func envFor(spec JobSpec) []string {
	env := []string{
		"MATRIXCI_BRANCH=" + spec.Branch,
		"MATRIXCI_PYTHON_VERSION=" + spec.PythonVersion,
	}
	if spec.Device.Name != "" {
		env = append(env, "MATRIXCI_DEVICE="+spec.Device.Name)
		if spec.Device.Shots != "" {
			env = append(env, "MATRIXCI_SHOTS="+spec.Device.Shots)
		}
	}
	if len(spec.PackagesPre) > 0 {
		env = append(env, "MATRIXCI_PACKAGES_PRE="+strings.Join(spec.PackagesPre, " "))
	}
	if len(spec.PackagesPost) > 0 {
		env = append(env, "MATRIXCI_PACKAGES_POST="+strings.Join(spec.PackagesPost, " "))
	}
	if spec.RequirementsFile != "" {
		env = append(env, "MATRIXCI_REQUIREMENTS="+spec.RequirementsFile)
	}
	return env
}

// AgentExecutor posts specs to a remote agent's /run endpoint, so each
// job gets the agent's environment instead of the server's.
type AgentExecutor struct {
	BaseURL string
	Client  *http.Client
}

func NewAgentExecutor(baseURL string) *AgentExecutor {
	return &AgentExecutor{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 45 * time.Minute},
	}
}

type agentRunResponse struct {
	JobName string `json:"job_name"`
	Status  string `json:"status"`
	Output  string `json:"output"`
	Error   string `json:"error,omitempty"`
}

func (e *AgentExecutor) Execute(ctx context.Context, spec JobSpec) (string, error) {
	body, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("encode spec: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("agent unreachable: %w", err)
	}
	defer resp.Body.Close()

	var out agentRunResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode agent response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || out.Status != string(StatusSuccess) {
		return out.Output, fmt.Errorf("agent job failed: %s", out.Error)
	}
	return out.Output, nil
}

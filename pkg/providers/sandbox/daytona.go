// Package sandbox adapts the Daytona API (api-client-go for sandbox
// lifecycle, toolbox-api-client-go for in-sandbox command execution and
// file transfer) to providers.SandboxProvider. The sandbox lifecycle and
// toolbox dispatch shape is grounded on the reference codebase's
// internal/tools/sandbox/daytona.go and daytona_runner.go (daytonaClient,
// ensureSandbox/createSandbox/toolboxClient, ProcessAPI.ExecuteCommand),
// simplified to a single reused sandbox per Provider instead of that
// codebase's pooled multi-language executor, since this codebase only ever
// runs Python.
package sandbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	apiclient "github.com/daytonaio/daytona/libs/api-client-go"
	toolbox "github.com/daytonaio/daytona/libs/toolbox-api-client-go"
	"github.com/google/uuid"

	"github.com/tarsy-labs/deepresearch/pkg/providers"
)

const defaultDaytonaAPIURL = "https://app.daytona.io/api"

// Config configures the Daytona backend.
type Config struct {
	APIKey string
	APIURL string
	Image  string // base image; "python:3.12-slim" if empty
}

// Provider runs Python source inside a lazily-created, reused Daytona
// sandbox.
type Provider struct {
	cfg       Config
	apiClient *apiclient.APIClient

	mu            sync.Mutex
	sandboxID     string
	sandboxTarget string
	toolboxClient *toolbox.APIClient
}

// New builds a Provider. The underlying sandbox is created on first
// RunPython call, not here, so constructing a Provider never makes a
// network call.
func New(cfg Config) *Provider {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultDaytonaAPIURL
	}
	if cfg.Image == "" {
		cfg.Image = "python:3.12-slim"
	}

	apiCfg := apiclient.NewConfiguration()
	apiCfg.Servers = apiclient.ServerConfigurations{{URL: cfg.APIURL}}

	return &Provider{
		cfg:       cfg,
		apiClient: apiclient.NewAPIClient(apiCfg),
	}
}

func (p *Provider) authContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, apiclient.ContextAccessToken, p.cfg.APIKey)
}

// pythonPrologue/Epilogue wrap the LLM-supplied source so matplotlib
// figures are captured as files instead of opened interactively, per
// SPEC_FULL.md section 4.4.2.
const pythonPrologue = `import matplotlib
matplotlib.use("Agg")
import matplotlib.pyplot as plt
plt.rcParams["figure.dpi"] = 150
`

const pythonEpilogue = `
import glob, os
for i, num in enumerate(plt.get_fignums()):
    plt.figure(num)
    plt.savefig(os.path.join("/tmp/charts", f"chart_{i}.png"))
plt.close("all")
`

func (p *Provider) RunPython(ctx context.Context, code string, timeoutMs int) (*providers.SandboxResult, error) {
	toolboxClient, err := p.ensureSandbox(ctx)
	if err != nil {
		return nil, fmt.Errorf("sandbox unavailable: %w", err)
	}

	authCtx := p.authContext(ctx)

	if _, _, err := toolboxClient.FilesAPI.CreateFolder(authCtx).Path("/tmp/charts").Mode("0755").Execute(); err != nil {
		return nil, fmt.Errorf("sandbox: create charts dir: %w", err)
	}

	script := pythonPrologue + code + pythonEpilogue
	scriptPath := fmt.Sprintf("/tmp/run_%s.py", uuid.NewString())

	reader := strings.NewReader(script)
	if _, _, err := toolboxClient.FilesAPI.UploadFile(authCtx).Path(scriptPath).File(reader).Execute(); err != nil {
		return nil, fmt.Errorf("sandbox: upload script: %w", err)
	}

	timeoutSec := int32(timeoutMs / 1000)
	if timeoutSec <= 0 {
		timeoutSec = 30
	}

	execReq := toolbox.NewExecuteRequest("python3 " + scriptPath)
	execReq.SetTimeout(timeoutSec)

	resp, httpResp, err := toolboxClient.ProcessAPI.ExecuteCommand(authCtx).Request(*execReq).Execute()
	if err != nil {
		if httpResp != nil && httpResp.StatusCode == 408 {
			return nil, fmt.Errorf("sandbox execution timed out after %ds: %w", timeoutSec, err)
		}
		return nil, fmt.Errorf("sandbox: execute: %w", err)
	}

	result := &providers.SandboxResult{
		Logs: providers.SandboxLogs{Stdout: []string{resp.Result}},
	}

	exitCode := 0
	if resp.ExitCode != nil {
		exitCode = int(*resp.ExitCode)
	}
	if exitCode != 0 {
		result.Error = &providers.SandboxExecError{Name: "RuntimeError", Value: resp.Result}
		return result, nil
	}

	images, err := p.collectCharts(authCtx, toolboxClient)
	if err != nil {
		return result, fmt.Errorf("sandbox: collect charts: %w", err)
	}
	result.Results = images
	if len(result.Results) == 0 && resp.Result != "" {
		result.Results = []providers.SandboxOutput{{Text: resp.Result}}
	}

	return result, nil
}

func (p *Provider) collectCharts(ctx context.Context, toolboxClient *toolbox.APIClient) ([]providers.SandboxOutput, error) {
	files, _, err := toolboxClient.FilesAPI.ListFiles(ctx).Path("/tmp/charts").Execute()
	if err != nil {
		return nil, err
	}

	var outputs []providers.SandboxOutput
	for _, f := range files {
		name := f.GetName()
		if !strings.HasSuffix(name, ".png") && !strings.HasSuffix(name, ".jpg") && !strings.HasSuffix(name, ".jpeg") {
			continue
		}
		data, _, err := toolboxClient.FilesAPI.DownloadFile(ctx).Path("/tmp/charts/" + name).Execute()
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", name, err)
		}
		decoded, err := decodeFileBody(data)
		if err != nil {
			return nil, err
		}
		if strings.HasSuffix(name, ".png") {
			outputs = append(outputs, providers.SandboxOutput{PNG: decoded})
		} else {
			outputs = append(outputs, providers.SandboxOutput{JPEG: decoded})
		}
	}
	return outputs, nil
}

// decodeFileBody normalizes the toolbox client's download response, which
// may hand back raw bytes or a base64 string depending on transport
// encoding, into raw image bytes.
func decodeFileBody(data []byte) ([]byte, error) {
	if looksBase64(data) {
		decoded, err := base64.StdEncoding.DecodeString(string(data))
		if err == nil {
			return decoded, nil
		}
	}
	return data, nil
}

func looksBase64(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	return data[0] != 0x89 && data[0] != 0xFF // PNG/JPEG magic bytes start elsewhere
}

func (p *Provider) ensureSandbox(ctx context.Context) (*toolbox.APIClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.toolboxClient != nil {
		return p.toolboxClient, nil
	}

	authCtx := p.authContext(ctx)

	createReq := apiclient.NewCreateSandbox()
	createReq.SetName("deepresearch-" + uuid.NewString())
	createReq.SetImage(p.cfg.Image)

	sandboxResp, _, err := p.apiClient.SandboxAPI.CreateSandbox(authCtx).CreateSandbox(*createReq).Execute()
	if err != nil {
		return nil, fmt.Errorf("create sandbox: %w", err)
	}

	deadline := time.Now().Add(60 * time.Second)
	for sandboxResp.GetState() != apiclient.SANDBOXSTATE_STARTED {
		if sandboxResp.GetState() == apiclient.SANDBOXSTATE_ERROR || sandboxResp.GetState() == apiclient.SANDBOXSTATE_BUILD_FAILED {
			return nil, fmt.Errorf("sandbox failed to start: state=%s", sandboxResp.GetState())
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for sandbox to start")
		}
		time.Sleep(time.Second)
		sandboxResp, _, err = p.apiClient.SandboxAPI.GetSandbox(authCtx, sandboxResp.GetId()).Execute()
		if err != nil {
			return nil, fmt.Errorf("poll sandbox state: %w", err)
		}
	}

	toolboxCfg := toolbox.NewConfiguration()
	toolboxCfg.Servers = toolbox.ServerConfigurations{{URL: p.cfg.APIURL + "/toolbox/" + sandboxResp.GetId() + "/toolbox"}}
	client := toolbox.NewAPIClient(toolboxCfg)

	p.sandboxID = sandboxResp.GetId()
	p.sandboxTarget = sandboxResp.GetTarget()
	p.toolboxClient = client
	return client, nil
}

// Close deletes the underlying sandbox, if one was created.
func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	sandboxID := p.sandboxID
	p.sandboxID = ""
	p.toolboxClient = nil
	p.mu.Unlock()

	if sandboxID == "" {
		return nil
	}
	_, err := p.apiClient.SandboxAPI.DeleteSandbox(p.authContext(ctx), sandboxID).Execute()
	return err
}

// Package executor talks to the external sandboxed code-execution backend.
// The rest of the system only sees the Client interface and the normalized
// Result, so the backend can be swapped without touching the state machine.
package executor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/model"
)

type Client interface {
	// Execute runs sourceCode under languageID with stdin and returns the
	// normalized outcome. Infrastructure failures surface as
	// common.ErrExecutionUnavailable, never as a verdict.
	Execute(ctx context.Context, req Request) (*Result, error)
}

type Request struct {
	LanguageID int
	SourceCode string
	Stdin      string
	// ExpectedOutput, when non-nil, lets the backend judge WrongAnswer
	// itself. A pointer so an empty expected output is still compared.
	ExpectedOutput *string
}

// Result is the canonical outcome of one execution.
type Result struct {
	Verdict       model.Verdict
	VerdictDetail string // runtime sub-reason or raw status description
	RawStatusID   int
	Stdout        string
	Stderr        string
	CompileOutput string
	Message       string
	// DecodeFailed lists response fields whose base64 payload was malformed;
	// for those the raw bytes are returned as-is.
	DecodeFailed []string
	TimeSec      float64
	MemoryKB     int
}

// Config carries the fixed, non-candidate-configurable execution settings.
type Config struct {
	BaseURL             string
	AuthToken           string
	RequestTimeout      time.Duration
	CPUTimeLimitSeconds float64
	MemoryLimitKB       int
}

type httpClient struct {
	cfg  Config
	http *http.Client
}

// New builds the HTTP execution client. The credential is validated at
// startup by config loading; an empty token here is a programming error.
func New(cfg Config) Client {
	if cfg.AuthToken == "" {
		panic("executor: auth token must be configured before construction")
	}
	return &httpClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// wire types for the backend contract

type submissionRequest struct {
	LanguageID     int     `json:"language_id"`
	SourceCode     string  `json:"source_code"`
	Stdin          string  `json:"stdin,omitempty"`
	ExpectedOutput *string `json:"expected_output,omitempty"`
	CPUTimeLimit   float64 `json:"cpu_time_limit"`
	MemoryLimit    int     `json:"memory_limit"`
}

type submissionResponse struct {
	Status struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Message       *string `json:"message"`
	Time          *string `json:"time"`
	Memory        *int    `json:"memory"`
}

// Backend status ids. Anything not listed collapses to InternalError.
const (
	statusAccepted          = 3
	statusWrongAnswer       = 4
	statusTimeLimitExceeded = 5
	statusCompilationError  = 6
	statusRuntimeSIGSEGV    = 7
	statusRuntimeSIGXFSZ    = 8
	statusRuntimeSIGFPE     = 9
	statusRuntimeSIGABRT    = 10
	statusRuntimeNZEC       = 11
	statusRuntimeOther      = 12
	statusInternalError     = 13
	statusExecFormatError   = 14
)

func (c *httpClient) Execute(ctx context.Context, req Request) (*Result, error) {
	body := submissionRequest{
		LanguageID:     req.LanguageID,
		SourceCode:     base64.StdEncoding.EncodeToString([]byte(req.SourceCode)),
		Stdin:          base64.StdEncoding.EncodeToString([]byte(req.Stdin)),
		CPUTimeLimit:   c.cfg.CPUTimeLimitSeconds,
		MemoryLimit:    c.cfg.MemoryLimitKB,
	}
	if req.ExpectedOutput != nil {
		encoded := base64.StdEncoding.EncodeToString([]byte(*req.ExpectedOutput))
		body.ExpectedOutput = &encoded
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, common.Errorf("executor: marshal request: %w", err)
	}

	url := c.cfg.BaseURL + "/submissions?base64_encoded=true&wait=true"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, common.Errorf("executor: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Auth-Token", c.cfg.AuthToken)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		slog.Warn("execution backend unreachable", "err", err)
		return nil, fmt.Errorf("executor: %v: %w", err, common.ErrExecutionUnavailable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("executor: read response: %v: %w", err, common.ErrExecutionUnavailable)
	}
	if resp.StatusCode >= 500 {
		slog.Warn("execution backend error", "status", resp.StatusCode)
		return nil, fmt.Errorf("executor: backend returned %d: %w", resp.StatusCode, common.ErrExecutionUnavailable)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("executor: backend rejected request (%d): %w", resp.StatusCode, common.ErrBadRequest)
	}

	var wire submissionResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("executor: malformed response body: %v: %w", err, common.ErrExecutionUnavailable)
	}

	return normalize(wire), nil
}

func normalize(wire submissionResponse) *Result {
	res := &Result{RawStatusID: wire.Status.ID}
	res.Verdict, res.VerdictDetail = mapStatus(wire.Status.ID, wire.Status.Description)

	res.Stdout = decodeField("stdout", wire.Stdout, res)
	res.Stderr = decodeField("stderr", wire.Stderr, res)
	res.CompileOutput = decodeField("compile_output", wire.CompileOutput, res)
	res.Message = decodeField("message", wire.Message, res)

	if wire.Time != nil {
		if t, err := strconv.ParseFloat(*wire.Time, 64); err == nil {
			res.TimeSec = t
		}
	}
	if wire.Memory != nil {
		res.MemoryKB = *wire.Memory
	}
	return res
}

// decodeField base64-decodes one optional response field. A malformed payload
// is returned raw and noted in DecodeFailed rather than raised.
func decodeField(name string, value *string, res *Result) string {
	if value == nil {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(*value)
	if err != nil {
		res.DecodeFailed = append(res.DecodeFailed, name)
		return *value
	}
	return string(decoded)
}

// mapStatus collapses the backend's numeric status onto the closed verdict
// set. Unknown ids become InternalError, never a panic or a wrong answer.
func mapStatus(id int, description string) (model.Verdict, string) {
	switch id {
	case statusAccepted:
		return model.VerdictAccepted, ""
	case statusWrongAnswer:
		return model.VerdictWrongAnswer, ""
	case statusTimeLimitExceeded:
		return model.VerdictTimeLimitExceeded, ""
	case statusCompilationError:
		return model.VerdictCompileError, ""
	case statusRuntimeSIGSEGV:
		return model.VerdictRuntimeError, "SIGSEGV"
	case statusRuntimeSIGXFSZ:
		return model.VerdictRuntimeError, "SIGXFSZ"
	case statusRuntimeSIGFPE:
		return model.VerdictRuntimeError, "SIGFPE"
	case statusRuntimeSIGABRT:
		return model.VerdictRuntimeError, "SIGABRT"
	case statusRuntimeNZEC:
		return model.VerdictRuntimeError, "NZEC"
	case statusRuntimeOther:
		return model.VerdictRuntimeError, description
	case statusInternalError, statusExecFormatError:
		return model.VerdictInternalError, description
	default:
		return model.VerdictInternalError, fmt.Sprintf("unknown status %d: %s", id, description)
	}
}

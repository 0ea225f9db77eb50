//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloo-solutions/tubeqa/internal/api/handlers"
	"github.com/cloo-solutions/tubeqa/internal/server"
	"github.com/cloo-solutions/tubeqa/internal/service"
	"github.com/cloo-solutions/tubeqa/internal/storage"
	"github.com/cloo-solutions/tubeqa/internal/testutil"
	"github.com/cloo-solutions/tubeqa/internal/transcript"
)

const (
	e2eBucket = "tubeqa-e2e"
	e2ePrefix = "transcripts/"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	RustFSC      *testutil.RustFSContainer
	S3Client     *storage.S3Client
	Transcripts  *transcript.S3Source
	ServerURL    string
	ServerCloser func()
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv starts RustFS and a demo-mode server reading transcripts from it
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	s3C := testutil.NewRustFSContainer(ctx, t)

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     s3C.AccessKey(),
		SecretAccessKey: s3C.SecretKey(),
		Bucket:          e2eBucket,
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}

	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	source := transcript.NewS3Source(s3Client, e2ePrefix)
	serverURL, serverCloser := startServer(t, source, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		RustFSC:      s3C,
		S3Client:     s3Client,
		Transcripts:  source,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.RustFSC != nil {
		_ = e.RustFSC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		_ = os.RemoveAll(e.BinaryDir)
	}
}

// SeedTranscript stores text as the transcript of videoID
func (e *E2ETestEnv) SeedTranscript(videoID, text string) {
	if _, err := e.Transcripts.PutTranscript(e.Ctx, videoID, text); err != nil {
		e.T.Fatalf("failed to seed transcript: %v", err)
	}
}

// BuildBinaries builds the tubeqa and tubeqad binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "tubeqa-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"tubeqad", "tubeqa"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// binaryEnv points the binaries at the RustFS bucket in demo mode
func (e *E2ETestEnv) binaryEnv() []string {
	return append(os.Environ(),
		"TUBEQA_OPENAI_API_KEY=",
		"TUBEQA_TRANSCRIPT_SOURCE=s3",
		"TUBEQA_METADATA_SOURCE=static",
		"TUBEQA_CHUNK_MAX_CHARS=120",
		"TUBEQA_CHUNK_OVERLAP_WORDS=5",
		fmt.Sprintf("TUBEQA_S3_ENDPOINT=%s", e.RustFSC.Endpoint()),
		fmt.Sprintf("TUBEQA_S3_ACCESS_KEY_ID=%s", e.RustFSC.AccessKey()),
		fmt.Sprintf("TUBEQA_S3_SECRET_ACCESS_KEY=%s", e.RustFSC.SecretKey()),
		fmt.Sprintf("TUBEQA_S3_BUCKET=%s", e2eBucket),
		fmt.Sprintf("TUBEQA_S3_PREFIX=%s", e2ePrefix),
	)
}

// Run runs one of the built binaries with stdin input. The result is stdout
// followed by stderr.
func (e *E2ETestEnv) Run(binary, input string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.Command(filepath.Join(e.BinaryDir, binary), args...)
	cmd.Dir = e.T.TempDir()
	cmd.Stdin = bytes.NewReader([]byte(input))
	cmd.Env = e.binaryEnv()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String() + stderr.String(), err
}

// RunTubeqa runs the tubeqa CLI
func (e *E2ETestEnv) RunTubeqa(input string, args ...string) (string, error) {
	return e.Run("tubeqa", input, args...)
}

// RunTubeqad runs the tubeqad CLI
func (e *E2ETestEnv) RunTubeqad(input string, args ...string) (string, error) {
	return e.Run("tubeqad", input, args...)
}

// APIResponse represents a standard API response
type APIResponse struct {
	StatusCode int
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error,omitempty"`
	Code       string          `json:"code,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodDelete, path, nil)
}

// doRequest returns the decoded envelope for every status; only transport
// failures are errors.
func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(e.Ctx, method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	apiResp := &APIResponse{StatusCode: resp.StatusCode}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return apiResp, nil
	}
	if err := json.Unmarshal(respBody, apiResp); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, respBody)
	}
	return apiResp, nil
}

// DownloadFile downloads a file from a presigned URL
func (e *E2ETestEnv) DownloadFile(downloadURL string) ([]byte, error) {
	resp, err := e.HTTPClient.Get(downloadURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func startServer(t *testing.T, source service.TranscriptSource, port int) (string, func()) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := service.DefaultChatConfig()
	cfg.Chunking = service.ChunkConfig{MaxChars: 120, OverlapWords: 5}
	cfg.Logger = logger

	chat := service.NewChatService(
		source,
		transcript.NewStaticMetadata(map[string]string{"dQw4w9WgXcQ": "Never Gonna Give You Up"}),
		service.NewDemoEmbedder(service.DefaultEmbeddingDimensions),
		service.NewDemoAnswerProvider(service.DefaultRelevanceThreshold),
		cfg,
	)

	router := server.NewRouter(server.RouterConfig{
		SessionHandler: handlers.NewSessionHandler(chat),
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

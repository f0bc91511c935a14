package dexsyncctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type request struct {
	method string
	path   string
	body   any
}

// Run executes one operator command against the dexsync API and returns the
// process exit code: 0 on success, 1 on request failure, 2 on usage errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("dexsyncctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "dexsync API base URL")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 30s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	req, err := buildRequest(strings.TrimSpace(fs.Arg(0)), fs.Args()[1:])
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	endpoint := strings.TrimRight(*baseURL, "/") + req.path
	code, responseBody, err := doRequest(ctx, client, req.method, endpoint, req.body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}
	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func buildRequest(command string, args []string) (request, error) {
	switch command {
	case "health":
		return request{method: http.MethodGet, path: "/v1/health"}, nil
	case "ready":
		return request{method: http.MethodGet, path: "/v1/ready"}, nil
	case "ingest":
		if len(args) == 0 {
			return request{}, fmt.Errorf("ingest requires at least one name")
		}
		return request{method: http.MethodPost, path: "/v1/species", body: map[string]any{"names": args}}, nil
	case "get":
		if len(args) != 1 {
			return request{}, fmt.Errorf("get requires exactly one name")
		}
		return request{method: http.MethodGet, path: "/v1/species/name/" + url.PathEscape(strings.ToLower(strings.TrimSpace(args[0])))}, nil
	case "list":
		path := "/v1/species"
		if len(args) > 0 {
			path += "?" + url.Values{"name": {args[0]}}.Encode()
		}
		return request{method: http.MethodGet, path: path}, nil
	case "refresh-run":
		return request{method: http.MethodPost, path: "/v1/refresh/run"}, nil
	case "export-run":
		return request{method: http.MethodPost, path: "/v1/export/run"}, nil
	default:
		return request{}, fmt.Errorf("unknown command %q", command)
	}
}

func doRequest(ctx context.Context, client *http.Client, method, endpoint string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: dexsyncctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health               GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  ingest <name...>     POST /v1/species")
	_, _ = fmt.Fprintln(w, "  get <name>           GET /v1/species/name/{name}")
	_, _ = fmt.Fprintln(w, "  list [substring]     GET /v1/species")
	_, _ = fmt.Fprintln(w, "  refresh-run          POST /v1/refresh/run")
	_, _ = fmt.Fprintln(w, "  export-run           POST /v1/export/run")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}

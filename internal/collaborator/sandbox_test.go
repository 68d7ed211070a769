package collaborator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prepview/prepview-backend/internal/model"
	"github.com/rs/zerolog"
)

// fakeJudge returns a test server that accepts submissions and serves one
// canned result per submitted source, keyed by the decoded code string.
func fakeJudge(t *testing.T, results map[string]submissionResult) *httptest.Server {
	t.Helper()

	// token → decoded source of that submission
	tokens := make(map[string]string)
	next := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/submissions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		var req submissionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		code, _ := base64.StdEncoding.DecodeString(req.SourceCode)
		stdin, _ := base64.StdEncoding.DecodeString(req.Stdin)

		next++
		token := "tok-" + string(rune('a'+next))
		// Key by code+stdin so per-case results can differ.
		tokens[token] = string(code) + "|" + string(stdin)

		json.NewEncoder(w).Encode(map[string]string{"token": token})
	})
	mux.HandleFunc("/submissions/", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Path[len("/submissions/"):]
		key, ok := tokens[token]
		if !ok {
			http.Error(w, "unknown token", http.StatusNotFound)
			return
		}
		res, ok := results[key]
		if !ok {
			http.Error(w, "no canned result for "+key, http.StatusInternalServerError)
			return
		}
		// The client requests base64_encoded results.
		res.Stdout = base64.StdEncoding.EncodeToString([]byte(res.Stdout))
		res.Stderr = base64.StdEncoding.EncodeToString([]byte(res.Stderr))
		json.NewEncoder(w).Encode(res)
	})

	return httptest.NewServer(mux)
}

func accepted(stdout string) submissionResult {
	return submissionResult{Status: submissionStatus{ID: statusAccepted}, Stdout: stdout}
}

func TestRun(t *testing.T) {
	srv := fakeJudge(t, map[string]submissionResult{
		"print(1+2)|": accepted("3\n"),
	})
	defer srv.Close()

	client := NewSandboxClient(srv.URL, "", zerolog.Nop())
	out, err := client.Run(context.Background(), "print(1+2)", "python", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Stdout != "3\n" || out.Stderr != "" {
		t.Errorf("Run output = %+v", out)
	}
}

func TestRunUnsupportedLanguage(t *testing.T) {
	client := NewSandboxClient("http://localhost:1", "", zerolog.Nop())
	if _, err := client.Run(context.Background(), "code", "cobol", ""); !errors.Is(err, ErrRuntime) {
		t.Errorf("unsupported language = %v, want ErrRuntime", err)
	}
}

func TestRunTestsComparesTrimmedOutput(t *testing.T) {
	srv := fakeJudge(t, map[string]submissionResult{
		"sol|1 2": accepted("3\n"),
		"sol|5 5": accepted("11\n"), // wrong answer
		"sol|0 0": {
			Status: submissionStatus{ID: 11, Description: "Runtime Error (NZEC)"},
			Stderr: "ZeroDivisionError",
		},
	})
	defer srv.Close()

	client := NewSandboxClient(srv.URL, "", zerolog.Nop())
	cases := []model.TestCase{
		{Input: "1 2", ExpectedOutput: "3"},
		{Input: "5 5", ExpectedOutput: "10"},
		{Input: "0 0", ExpectedOutput: "0"},
	}

	outcomes, err := client.RunTests(context.Background(), "sol", "python", cases)
	if err != nil {
		t.Fatalf("RunTests: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}

	if !outcomes[0].Passed || outcomes[0].Actual != "3" {
		t.Errorf("case 0 = %+v, want passed with actual 3", outcomes[0])
	}
	if outcomes[1].Passed || outcomes[1].Actual != "11" {
		t.Errorf("case 1 = %+v, want failed with actual 11", outcomes[1])
	}
	if outcomes[2].Passed || outcomes[2].Error != "ZeroDivisionError" {
		t.Errorf("case 2 = %+v, want failed with stderr error", outcomes[2])
	}
}

func TestRunTestsAbortsOnTransportError(t *testing.T) {
	srv := fakeJudge(t, nil)
	srv.Close() // server is gone; submit must fail

	client := NewSandboxClient(srv.URL, "", zerolog.Nop())
	cases := []model.TestCase{{Input: "1", ExpectedOutput: "1"}}

	if _, err := client.RunTests(context.Background(), "sol", "python", cases); !errors.Is(err, ErrUnreachable) {
		t.Errorf("RunTests against dead server = %v, want ErrUnreachable", err)
	}
}

func TestErrorOutputPrecedence(t *testing.T) {
	c := &SandboxClient{}

	res := &submissionResult{
		Status: submissionStatus{ID: 6, Description: "Compilation Error"},
	}
	if got := c.errorOutput(res); got != "Compilation Error" {
		t.Errorf("status fallback = %q", got)
	}

	res.CompileOutput = "main.c:1 syntax error"
	if got := c.errorOutput(res); got != "main.c:1 syntax error" {
		t.Errorf("compile output = %q", got)
	}

	res.Stderr = "segfault"
	if got := c.errorOutput(res); got != "segfault" {
		t.Errorf("stderr wins = %q", got)
	}

	if got := c.errorOutput(&submissionResult{Status: submissionStatus{ID: statusAccepted}}); got != "" {
		t.Errorf("accepted with no output = %q, want empty", got)
	}
}

// Command toycc-conformance runs a corpus of ToyC source files through the
// toycc binary against both backends and checks that they agree with each
// other and with the exit status recorded in each file's header comment.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

type backendRun struct {
	Backend  string `json:"backend"`
	ExitCode int    `json:"exit_code"`
	Stderr   string `json:"stderr,omitempty"`
	AsmHash  string `json:"asm_hash,omitempty"`
	TimedOut bool   `json:"timed_out"`
}

type fileResult struct {
	File       string       `json:"file"`
	Status     string       `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message    string       `json:"message,omitempty"`
	Diff       string       `json:"diff,omitempty"`
	ExpectExit int          `json:"expect_exit"`
	Runs       []backendRun `json:"runs,omitempty"`
}

type suiteResults map[string]*fileResult

var (
	toyccPath  = flag.String("toycc", "./toycc", "Path to the toycc binary under test.")
	corpus     = flag.String("corpus", "testdata/corpus/*.tc", "Glob pattern(s) for corpus files (space-separated).")
	backends   = flag.String("backends", "riscv32,qbe", "Comma-separated backends to exercise.")
	outputJSON = flag.String("output", ".conformance_results.json", "Output file for the JSON report.")
	timeout    = flag.Duration("timeout", 5*time.Second, "Timeout for each toycc invocation.")
	jobs       = flag.Int("j", 4, "Number of parallel test jobs.")
	reruns     = flag.Int("reruns", 3, "Times to recompile each file to probe for nondeterministic output.")
	verbose    = flag.Bool("v", false, "Enable verbose logging.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	files, err := expandGlobPatterns(*corpus)
	if err != nil {
		log.Fatalf("%s[ERROR]%s invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("no corpus files found matching the pattern(s)")
		return
	}

	wantBackends := strings.Split(*backends, ",")

	tasks := make(chan string, len(files))
	resultsChan := make(chan *fileResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				resultsChan <- testFile(file, wantBackends)
			}
		}()
	}

	for _, f := range files {
		tasks <- f
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var all []*fileResult
	for r := range resultsChan {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].File < all[j].File })

	printSummary(all)
	results := writeJSONReport(all)

	if hasFailures(results) {
		os.Exit(1)
	}
}

// expectExit reads the "// expect-exit: N" header comment from a corpus
// file. Files without the header default to an expectation of 0.
func expectExit(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		const prefix = "// expect-exit:"
		if strings.HasPrefix(line, prefix) {
			n, err := strconv.Atoi(strings.TrimSpace(line[len(prefix):]))
			if err != nil {
				return 0, fmt.Errorf("malformed expect-exit header: %v", err)
			}
			return n, nil
		}
		if !strings.HasPrefix(line, "//") {
			break
		}
	}
	return 0, scanner.Err()
}

func hashBytes(data []byte) string {
	return fmt.Sprintf("%x", xxhash.Sum64(data))
}

func runBackend(toyccPath, backend, sourceFile string, timeout time.Duration) backendRun {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, toyccPath, "-target", backend, sourceFile)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	run := backendRun{Backend: backend, Stderr: stderr.String()}
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		run.TimedOut = true
		run.ExitCode = -1
	case err == nil:
		run.ExitCode = 0
		run.AsmHash = hashBytes(stdout.Bytes())
	default:
		if exitErr, ok := err.(*exec.ExitError); ok {
			run.ExitCode = exitErr.ExitCode()
		} else {
			run.ExitCode = -2
			run.Stderr += "\nexecution error: " + err.Error()
		}
	}
	return run
}

func testFile(file string, wantBackends []string) *fileResult {
	want, err := expectExit(file)
	if err != nil {
		return &fileResult{File: file, Status: "ERROR", Message: fmt.Sprintf("could not read expect-exit header: %v", err)}
	}

	runs := make([]backendRun, 0, len(wantBackends))
	for _, backend := range wantBackends {
		backend = strings.TrimSpace(backend)
		run := runBackend(*toyccPath, backend, file, *timeout)
		runs = append(runs, run)

		if run.ExitCode == 0 {
			if unstable, detail := probeNondeterminism(file, backend); unstable {
				return &fileResult{
					File: file, Status: "FAIL", ExpectExit: want, Runs: runs,
					Message: fmt.Sprintf("%s backend produced different assembly across repeated compilations", backend),
					Diff:    detail,
				}
			}
		}
	}

	for _, run := range runs {
		if run.TimedOut {
			return &fileResult{File: file, Status: "FAIL", ExpectExit: want, Runs: runs,
				Message: fmt.Sprintf("%s backend timed out", run.Backend)}
		}
		if run.ExitCode != want {
			return &fileResult{File: file, Status: "FAIL", ExpectExit: want, Runs: runs,
				Message: fmt.Sprintf("%s backend exited %d, expected %d", run.Backend, run.ExitCode, want),
				Diff:    run.Stderr}
		}
	}

	if diff := cmp.Diff(runs[0].ExitCode, lastExitCode(runs)); diff != "" && len(runs) > 1 {
		return &fileResult{File: file, Status: "FAIL", ExpectExit: want, Runs: runs,
			Message: "backends disagree on exit code", Diff: diff}
	}

	return &fileResult{File: file, Status: "PASS", ExpectExit: want, Runs: runs,
		Message: "backends agree and match the expected exit status"}
}

func lastExitCode(runs []backendRun) int {
	return runs[len(runs)-1].ExitCode
}

// probeNondeterminism recompiles file with backend a handful of times and
// checks the emitted assembly hashes to a stable value each time, exercising
// determinism of IR generation end to end.
func probeNondeterminism(file, backend string) (bool, string) {
	var first string
	for i := 0; i < *reruns; i++ {
		run := runBackend(*toyccPath, backend, file, *timeout)
		if run.ExitCode != 0 {
			return false, ""
		}
		if i == 0 {
			first = run.AsmHash
			continue
		}
		if run.AsmHash != first {
			return true, fmt.Sprintf("hash %s on run 1, %s on run %d", first, run.AsmHash, i+1)
		}
	}
	return false, ""
}

func printSummary(results []*fileResult) {
	var passed, failed, errored int
	for _, r := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s...\n", cCyan, r.File, cNone)
		switch r.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, r.Message)
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, r.Message)
			if *verbose && r.Diff != "" {
				fmt.Println(formatDiff(r.Diff))
			}
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, r.Message)
		}
	}
	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cRed, errored, cNone, len(results))
}

func formatDiff(diff string) string {
	var b strings.Builder
	b.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		b.WriteString("    " + line + "\n")
	}
	return b.String()
}

func writeJSONReport(results []*fileResult) suiteResults {
	m := make(suiteResults, len(results))
	for _, r := range results {
		m[r.File] = r
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s failed to marshal results: %v\n", cRed, cNone, err)
		return m
	}
	if err := os.WriteFile(*outputJSON, data, 0o644); err != nil {
		log.Printf("%s[ERROR]%s failed to write report to %s: %v\n", cRed, cNone, *outputJSON, err)
	} else {
		fmt.Printf("Full conformance report saved to %s\n", *outputJSON)
	}
	return m
}

func hasFailures(results suiteResults) bool {
	for _, r := range results {
		if r.Status == "FAIL" || r.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var all []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil {
				continue
			}
			if seen[abs] {
				continue
			}
			if info, err := os.Stat(abs); err == nil && info.Mode().IsRegular() {
				all = append(all, abs)
				seen[abs] = true
			}
		}
	}
	return all, nil
}

// Command smoke probes a running API instance and reports per-endpoint
// status. Used in deploy pipelines as a fast post-rollout check.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

type target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Expect   int    `json:"expect"`
	Critical bool   `json:"critical"`
}

type config struct {
	Targets []target `json:"targets"`
}

type probe struct {
	Target   target
	Status   int
	OK       bool
	Err      error
	Duration time.Duration
}

func main() {
	var (
		base        string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "smoke", "targets.json"), "Path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var failedCritical int

	for _, t := range targets {
		result := run(client, base, t)
		report(result)
		if !result.OK && t.Critical {
			failedCritical++
		}
	}

	if failedCritical > 0 {
		fmt.Fprintf(os.Stderr, "%d critical endpoint(s) failing\n", failedCritical)
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return defaultTargets(), nil
	}
	return cfg.Targets, nil
}

func defaultTargets() []target {
	return []target{
		{Method: http.MethodGet, Path: "/health", Expect: http.StatusOK, Critical: true},
		{Method: http.MethodGet, Path: "/ready", Expect: http.StatusOK, Critical: true},
		{Method: http.MethodGet, Path: "/api/v1/resources", Expect: http.StatusOK},
		{Method: http.MethodGet, Path: "/api/v1/blog-posts", Expect: http.StatusOK},
		{Method: http.MethodGet, Path: "/api/v1/mentorship/programs", Expect: http.StatusOK},
	}
}

func run(client *http.Client, base string, t target) probe {
	start := time.Now()
	req, err := http.NewRequest(t.Method, base+t.Path, nil)
	if err != nil {
		return probe{Target: t, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return probe{Target: t, Err: err, Duration: time.Since(start)}
	}
	defer resp.Body.Close() //nolint:errcheck

	expect := t.Expect
	if expect == 0 {
		expect = http.StatusOK
	}
	return probe{
		Target:   t,
		Status:   resp.StatusCode,
		OK:       resp.StatusCode == expect,
		Duration: time.Since(start),
	}
}

func report(p probe) {
	mark := "ok"
	if !p.OK {
		mark = "FAIL"
	}
	if p.Err != nil {
		fmt.Printf("[%s] %-6s %-40s error: %v\n", mark, p.Target.Method, p.Target.Path, p.Err)
		return
	}
	fmt.Printf("[%s] %-6s %-40s %d (%s)\n", mark, p.Target.Method, p.Target.Path, p.Status, p.Duration.Round(time.Millisecond))
}

// Command shadow_compare replays a fixed set of read-only requests against
// the Go port and the legacy Node.js backend and reports response diffs.
// Volatile fields (ids, timestamps, issued tokens) are stripped before the
// bodies are compared.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"reflect"
	"strings"
	"time"
)

type target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Critical bool   `json:"critical"`
}

// defaultTargets covers the read surface of the workflow engine. Mutating
// endpoints are excluded: replaying a stage decision against both backends
// would double-decide it.
var defaultTargets = []target{
	{Method: "GET", Path: "/health", Critical: true},
	{Method: "GET", Path: "/api/v1/operations", Critical: true},
	{Method: "GET", Path: "/api/v1/operations/catalog", Critical: true},
	{Method: "GET", Path: "/api/v1/alerts", Critical: true},
	{Method: "GET", Path: "/api/v1/complaints", Critical: false},
	{Method: "GET", Path: "/api/v1/telemetry/nodes", Critical: true},
	{Method: "GET", Path: "/api/v1/inbox", Critical: false},
}

// volatileFields never compare equal across two independent backends.
var volatileFields = map[string]bool{
	"id": true, "createdAt": true, "decidedAt": true, "closedAt": true,
	"accessToken": true, "issuedAt": true, "requestId": true,
}

type result struct {
	target       target
	goStatus     int
	legacyStatus int
	match        bool
	err          error
}

func main() {
	var (
		goBase      string
		legacyBase  string
		token       string
		targetsPath string
		timeout     time.Duration
	)
	flag.StringVar(&goBase, "go-base", "http://localhost:8080", "Go API base URL")
	flag.StringVar(&legacyBase, "legacy-base", "http://localhost:3000", "legacy API base URL")
	flag.StringVar(&token, "token", os.Getenv("SHADOW_COMPARE_TOKEN"), "bearer token sent to both backends")
	flag.StringVar(&targetsPath, "targets", "", "optional JSON file overriding the built-in targets")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets := defaultTargets
	if targetsPath != "" {
		loaded, err := loadTargets(targetsPath)
		if err != nil {
			log.Fatalf("failed to load targets: %v", err)
		}
		targets = loaded
	}

	client := &http.Client{Timeout: timeout}
	breaking := 0
	fmt.Println("Shadow Compare Report")
	fmt.Println("======================")
	for _, tgt := range targets {
		res := compare(client, goBase, legacyBase, token, tgt)
		label := "OK"
		switch {
		case res.err != nil:
			label = "ERROR"
		case !res.match:
			label = "DIFF"
		}
		if label != "OK" && tgt.Critical {
			breaking++
		}
		fmt.Printf("[%s] %s %s (go=%d legacy=%d)\n", label, tgt.Method, tgt.Path, res.goStatus, res.legacyStatus)
		if res.err != nil {
			fmt.Printf("  %v\n", res.err)
		}
	}
	fmt.Printf("Breaking diffs: %d\n", breaking)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg struct {
		Targets []target `json:"targets"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func compare(client *http.Client, goBase, legacyBase, token string, tgt target) result {
	res := result{target: tgt}

	goBody, goStatus, err := fetch(client, goBase, token, tgt)
	if err != nil {
		res.err = fmt.Errorf("go request failed: %w", err)
		return res
	}
	legacyBody, legacyStatus, err := fetch(client, legacyBase, token, tgt)
	if err != nil {
		res.err = fmt.Errorf("legacy request failed: %w", err)
		return res
	}

	res.goStatus = goStatus
	res.legacyStatus = legacyStatus
	res.match = goStatus == legacyStatus && bodiesEqual(goBody, legacyBody)
	return res
}

func fetch(client *http.Client, base, token string, tgt target) ([]byte, int, error) {
	url := strings.TrimRight(base, "/") + tgt.Path
	req, err := http.NewRequest(tgt.Method, url, nil)
	if err != nil {
		return nil, 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

func bodiesEqual(a, b []byte) bool {
	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return string(a) == string(b)
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	scrub(&aj)
	scrub(&bj)
	return reflect.DeepEqual(aj, bj)
}

// scrub removes volatile fields and folds integral floats so the two
// backends' JSON encoders compare equal.
func scrub(v *interface{}) {
	switch val := (*v).(type) {
	case map[string]interface{}:
		for k, inner := range val {
			if volatileFields[k] {
				delete(val, k)
				continue
			}
			scrub(&inner)
			val[k] = inner
		}
	case []interface{}:
		for i, inner := range val {
			scrub(&inner)
			val[i] = inner
		}
	case float64:
		if val == float64(int64(val)) {
			*v = int64(val)
		}
	}
}

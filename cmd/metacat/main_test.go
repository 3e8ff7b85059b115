package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GoCodeAlone/metacat/gateway/gatewaytest"
	"github.com/GoCodeAlone/metacat/gateway/mock"
	"github.com/GoCodeAlone/metacat/userpage"
)

// run executes the CLI against the demo catalog with state under dataDir.
func run(t *testing.T, dataDir string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	return execute(t, append([]string{"--offline", "--data-dir", dataDir}, args...)...)
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(""))
	err = cmd.ExecuteContext(t.Context())
	return out.String(), errOut.String(), err
}

func assertContains(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("expected output to contain %q, got:\n%s", w, out)
		}
	}
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, t.TempDir(), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	assertContains(t, out, "metacat dev")
}

func TestUpdate_DevBuild(t *testing.T) {
	out, _, err := run(t, t.TempDir(), "update", "--check")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	assertContains(t, out, "development build")
}

func TestUser(t *testing.T) {
	out, _, err := run(t, t.TempDir(), "user", "aaron_johnson0")
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	assertContains(t, out,
		"Aaron Johnson (aaron_johnson0)",
		"teams:   Sales",
		"Activity Feed [OWNER]: 10 of 12",
		"Owned: 13 (page 1)",
		"Following: 0",
	)
}

func TestUser_FeedFailureStillPrints(t *testing.T) {
	gw := mock.Demo()
	gw.Errors["Feed"] = errors.New("feed index offline")
	srv := gatewaytest.NewServer(gw, "cli-token")
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "metacat.yaml")
	cfg := fmt.Sprintf("gateway:\n  url: %s\n  token: cli-token\n", srv.URL)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}

	out, stderr, err := execute(t, "--config", cfgPath, "--data-dir", dir, "user", "aaron_johnson0")
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	assertContains(t, out, "Aaron Johnson (aaron_johnson0)", "no activity", "Owned: 13 (page 1)")
	assertContains(t, stderr, "! ")
}

func TestUser_LoadMore(t *testing.T) {
	out, _, err := run(t, t.TempDir(), "user", "aaron_johnson0", "--more", "3")
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	assertContains(t, out, "Activity Feed [OWNER]: 12 of 12")
}

func TestUser_ClosedTasks(t *testing.T) {
	out, _, err := run(t, t.TempDir(), "user", "aaron_johnson0", "--tab", "tasks", "--closed")
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	assertContains(t, out, "Tasks (Closed) [ALL]: 1 of 1", "Request tags for dim_01")
}

func TestUser_Filter(t *testing.T) {
	out, _, err := run(t, t.TempDir(), "user", "aaron_johnson0", "--filter", "mentions")
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	assertContains(t, out, "Activity Feed [MENTIONS]: 0 of 0", "no activity")
}

func TestUser_JSON(t *testing.T) {
	out, _, err := run(t, t.TempDir(), "user", "aaron_johnson0", "--tab", "mydata", "--json")
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	var v userpage.View
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Tab != "mydata" || v.Owned.Total != 13 || !v.IsAdminUser {
		t.Errorf("unexpected view: tab %q, owned %d, admin %v", v.Tab, v.Owned.Total, v.IsAdminUser)
	}
}

func TestUser_Unknown(t *testing.T) {
	_, stderr, err := run(t, t.TempDir(), "user", "ghost")
	if err == nil || err.Error() != "No user available with name ghost" {
		t.Fatalf("expected the not found message, got %v", err)
	}
	assertContains(t, stderr, "! Error while fetching User Details!")
}

func TestSearchAndRecent(t *testing.T) {
	dir := t.TempDir()
	out, _, err := run(t, dir, "search", "dim_0")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	assertContains(t, out, `10 results for "dim_0" (page 1)`, "dim_00", "Aaron Johnson")

	out, _, err = run(t, dir, "search", "nothing-like-this")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	assertContains(t, out, `no results for "nothing-like-this"`)

	if _, _, err := run(t, dir, "user", "aaron_johnson0"); err != nil {
		t.Fatalf("user: %v", err)
	}

	out, _, err = run(t, dir, "recent")
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	assertContains(t, out, "Recently viewed:\n  Aaron Johnson", "Recent searches:\n  nothing-like-this")
	if strings.Index(out, "nothing-like-this") > strings.Index(out, "dim_0") {
		t.Errorf("expected the latest search first:\n%s", out)
	}

	if _, _, err := run(t, dir, "recent", "--clear"); err != nil {
		t.Fatalf("recent --clear: %v", err)
	}
	out, _, _ = run(t, dir, "recent")
	if strings.Count(out, "none") != 2 {
		t.Errorf("expected both lists cleared:\n%s", out)
	}
}

func TestSearch_Pages(t *testing.T) {
	out, _, err := run(t, t.TempDir(), "search", "dim_", "--page", "3", "--size", "5")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	assertContains(t, out, `12 results for "dim_" (page 3)`, "dim_10", "dim_11")
}

func TestConnection(t *testing.T) {
	out, _, err := run(t, t.TempDir(), "connection", "databaseServices", "sample_data")
	if err != nil {
		t.Fatalf("connection: %v", err)
	}
	assertContains(t, out,
		"Database Services > sample_data > Edit Connection",
		"Edit sample_data Service Connection",
		`"hostPort": "bigquery.googleapis.com"`,
	)
}

func TestConnection_Builtin(t *testing.T) {
	out, _, err := run(t, t.TempDir(), "connection", "metadataServices", "OpenMetadata")
	if err != nil {
		t.Fatalf("connection: %v", err)
	}
	assertContains(t, out, "test connection: not available")
}

func TestConnection_Set(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conn.json")
	if err := os.WriteFile(path, []byte(`{"type":"BigQuery","hostPort":"example.com:443"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	out, _, err := run(t, t.TempDir(), "connection", "databaseServices", "sample_data", "--set", path)
	if err != nil {
		t.Fatalf("connection --set: %v", err)
	}
	assertContains(t, out, "updated", `"hostPort": "example.com:443"`)

	if err := os.WriteFile(path, []byte(`[1,2]`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := run(t, t.TempDir(), "connection", "databaseServices", "sample_data", "--set", path); err == nil {
		t.Error("expected an error for a non-object config")
	}
}

func TestConnection_Missing(t *testing.T) {
	_, _, err := run(t, t.TempDir(), "connection", "databaseServices", "nope")
	if err == nil || err.Error() != "databaseServices instance for nope not found" {
		t.Fatalf("expected the missing message, got %v", err)
	}
}

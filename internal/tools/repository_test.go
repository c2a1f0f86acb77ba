package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/gitchat/internal/repohost/repohosttest"
	"github.com/nextlevelbuilder/gitchat/internal/store"
	"github.com/nextlevelbuilder/gitchat/internal/store/memory"
)

func setup(t *testing.T) (*Registry, *repohosttest.Fake, *memory.Store, context.Context) {
	t.Helper()
	host := repohosttest.New()
	mem := memory.New()
	reg := NewRegistry()
	RegisterRepositoryTools(reg, host, mem)

	repo := &store.RepositoryRecord{ID: "r1", ClientID: "c1", Name: "demo", Host: "github.com", Owner: "acme", Repo: "demo", Branch: "main", Token: "t"}
	ctx := WithToolRepository(WithToolClientID(context.Background(), "c1"), repo)
	return reg, host, mem, ctx
}

// --- registry ---

func TestRegistry_DefinitionsSorted(t *testing.T) {
	reg, _, _, _ := setup(t)
	defs := reg.Definitions()
	if len(defs) != 9 {
		t.Fatalf("got %d tools, want 9", len(defs))
	}
	for i := 1; i < len(defs); i++ {
		if defs[i-1].Function.Name >= defs[i].Function.Name {
			t.Errorf("definitions not sorted: %s before %s", defs[i-1].Function.Name, defs[i].Function.Name)
		}
	}
	for _, d := range defs {
		if d.Type != "function" || d.Function.Parameters["type"] != "object" {
			t.Errorf("bad definition %+v", d)
		}
	}
}

func TestRegistry_UnknownTool(t *testing.T) {
	reg := NewRegistry()
	res := reg.Execute(context.Background(), "nope", nil)
	if !res.IsError || !strings.Contains(res.ForLLM, "unknown tool") {
		t.Errorf("result = %+v", res)
	}
}

type panicTool struct{}

func (panicTool) Name() string               { return "boom" }
func (panicTool) Description() string        { return "" }
func (panicTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (panicTool) Execute(context.Context, map[string]any) *Result {
	panic("kaboom")
}

func TestRegistry_RecoversPanics(t *testing.T) {
	reg := NewRegistry()
	reg.Register(panicTool{})
	res := reg.Execute(context.Background(), "boom", nil)
	if !res.IsError {
		t.Errorf("panic not converted: %+v", res)
	}
}

// --- repository tools ---

func TestRepositoryTools_NeedSelection(t *testing.T) {
	reg, _, _, _ := setup(t)
	res := reg.Execute(context.Background(), "list_branches", nil)
	if !res.IsError || !strings.Contains(res.ForLLM, "no repository") {
		t.Errorf("result = %+v", res)
	}
}

func TestCreateIssue_MirrorsResult(t *testing.T) {
	reg, _, mem, ctx := setup(t)
	res := reg.Execute(ctx, "create_issue", map[string]any{
		"title":  "Crash on start",
		"labels": []any{"bug"},
	})
	if res.IsError {
		t.Fatalf("create_issue: %s", res.ForLLM)
	}
	var got struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal([]byte(res.ForLLM), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Number != 1 || got.Title != "Crash on start" {
		t.Errorf("issue = %+v", got)
	}
	mirrors := mem.Issues("c1")
	if len(mirrors) != 1 || mirrors[0].RepositoryID != "r1" || mirrors[0].Labels[0] != "bug" {
		t.Errorf("mirrors = %+v", mirrors)
	}
}

func TestPushFiles_Tool(t *testing.T) {
	reg, host, _, ctx := setup(t)
	res := reg.Execute(ctx, "push_files", map[string]any{
		"message": "scaffold",
		"files": []any{
			map[string]any{"path": "a.go", "content": "package a"},
			map[string]any{"path": "b/b.go", "content": "package b"},
		},
	})
	if res.IsError {
		t.Fatalf("push_files: %s", res.ForLLM)
	}
	if host.CallCount("PushFiles") != 1 {
		t.Errorf("PushFiles calls = %d, want 1", host.CallCount("PushFiles"))
	}
	if paths := host.FilePaths("acme/demo"); len(paths) != 2 {
		t.Errorf("paths = %v", paths)
	}
}

func TestGetFileContent_ToolReportsMissing(t *testing.T) {
	reg, _, _, ctx := setup(t)
	res := reg.Execute(ctx, "get_file_content", map[string]any{"path": "nope.txt"})
	if !res.IsError || !strings.Contains(res.ForLLM, "not found") {
		t.Errorf("result = %+v", res)
	}
}

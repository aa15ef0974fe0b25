package tools

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/codeagent/internal/cache"
	"github.com/abdul-hamid-achik/codeagent/internal/chunker"
	"github.com/abdul-hamid-achik/codeagent/internal/config"
	"github.com/abdul-hamid-achik/codeagent/internal/embedding"
	"github.com/abdul-hamid-achik/codeagent/internal/index"
	"github.com/abdul-hamid-achik/codeagent/internal/store"
)

func newSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newCache(t *testing.T) *cache.PathCache {
	t.Helper()
	c, err := cache.New(16)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func dispatch(t *testing.T, r *Registry, s *Session, name string, input map[string]any) Result {
	t.Helper()
	return r.Dispatch(context.Background(), s, Call{ID: "call_1", Name: name, Input: input})
}

func TestDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry(Deps{})

	want := []string{
		"read_file", "search_code", "list_directory", "run_command",
		"change_directory", "search_vectorstore", "add_to_vectorstore", "index_codebase",
	}
	defs := r.Definitions()
	if len(defs) != len(want) {
		t.Fatalf("expected %d definitions, got %d", len(want), len(defs))
	}
	for i, def := range defs {
		if def.Name != want[i] {
			t.Errorf("definition %d = %s, want %s", i, def.Name, want[i])
		}
		if def.Description == "" || def.InputSchema["type"] != "object" {
			t.Errorf("tool %s has incomplete definition", def.Name)
		}
	}

	required := map[string][]string{
		"read_file":          {"file_path"},
		"search_code":        {"pattern"},
		"run_command":        {"command"},
		"change_directory":   {"path"},
		"search_vectorstore": {"query"},
		"add_to_vectorstore": {"file_path"},
	}
	for _, def := range defs {
		got := requiredFields(def.InputSchema)
		if strings.Join(got, ",") != strings.Join(required[def.Name], ",") {
			t.Errorf("%s required = %v, want %v", def.Name, got, required[def.Name])
		}
	}

	if list := r.List(); len(list) != 8 || list[0].Name() != "add_to_vectorstore" {
		t.Errorf("List should be sorted by name")
	}
}

func TestPermissionLevelString(t *testing.T) {
	tests := []struct {
		level    PermissionLevel
		expected string
	}{
		{PermissionRead, "read"},
		{PermissionWrite, "write"},
		{PermissionExecute, "execute"},
		{PermissionLevel(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("PermissionLevel(%d).String() = %s, want %s", tt.level, got, tt.expected)
		}
	}
}

func TestDispatch_FailuresRenderUniformly(t *testing.T) {
	r := NewDefaultRegistry(Deps{})
	s := newSession(t)

	tests := []struct {
		name  string
		tool  string
		input map[string]any
		kind  ErrorKind
		text  string
	}{
		{"unknown tool", "delete_everything", nil, KindUnknownTool, `Error executing delete_everything: unknown tool "delete_everything"`},
		{"missing argument", "read_file", map[string]any{}, KindInvalidInput, `Error executing read_file: missing required argument "file_path"`},
		{"wrong type", "search_vectorstore", map[string]any{"query": "x", "k": "many"}, KindInvalidInput, `Error executing search_vectorstore: argument "k" must be of type integer`},
		{"missing file", "read_file", map[string]any{"file_path": "nope.py"}, KindIO, "Error executing read_file: File " + filepath.Join(s.Dir(), "nope.py") + " does not exist"},
		{"no index", "search_vectorstore", map[string]any{"query": "x"}, KindExecution, "Error executing search_vectorstore: vector store is not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := dispatch(t, r, s, tt.tool, tt.input)
			if !res.Failed() || res.Err.Kind != tt.kind {
				t.Fatalf("expected %s failure, got %+v", tt.kind, res)
			}
			if res.Text() != tt.text {
				t.Errorf("Text() = %q, want %q", res.Text(), tt.text)
			}
			if res.CallID != "call_1" || res.Name != tt.tool {
				t.Errorf("result not correlated with call: %+v", res)
			}
		})
	}
}

type panicTool struct{}

func (panicTool) Name() string                { return "boom" }
func (panicTool) Description() string         { return "panics" }
func (panicTool) InputSchema() map[string]any { return map[string]any{"type": "object"} }
func (panicTool) Permission() PermissionLevel { return PermissionRead }
func (panicTool) Execute(context.Context, *Session, map[string]any) (string, error) {
	panic("kaboom")
}

func TestDispatch_RecoversPanic(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(panicTool{})

	res := dispatch(t, r, newSession(t), "boom", nil)
	if !res.Failed() || !strings.Contains(res.Text(), "Error executing boom: panic: kaboom") {
		t.Errorf("unexpected result %+v", res)
	}
}

// readOnly approves reads and denies everything else.
type readOnly struct{ calls []string }

func (d *readOnly) Approve(_ context.Context, call Call, level PermissionLevel) (bool, error) {
	d.calls = append(d.calls, call.Name+":"+level.String())
	return level == PermissionRead, nil
}

func TestDispatch_ApproverGatesByLevel(t *testing.T) {
	r := NewDefaultRegistry(Deps{})
	d := &readOnly{}
	r.SetApprover(d)
	s := newSession(t)

	res := dispatch(t, r, s, "run_command", map[string]any{"command": "touch created"})
	if !res.Failed() || res.Err.Kind != KindDenied {
		t.Fatalf("expected denial, got %+v", res)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), "created")); err == nil {
		t.Error("denied command must not run")
	}

	if res := dispatch(t, r, s, "list_directory", nil); res.Failed() {
		t.Errorf("approved read failed: %s", res.Text())
	}
	if len(d.calls) != 2 || d.calls[0] != "run_command:execute" || d.calls[1] != "list_directory:read" {
		t.Errorf("approver consulted for %v", d.calls)
	}
}

func TestReadFile_UsesCache(t *testing.T) {
	s := newSession(t)
	path := filepath.Join(s.Dir(), "a.py")
	if err := os.WriteFile(path, []byte("print('hi')\n"), 0644); err != nil {
		t.Fatal(err)
	}
	files := newCache(t)
	r := NewDefaultRegistry(Deps{Files: files})

	for i := 0; i < 2; i++ {
		res := dispatch(t, r, s, "read_file", map[string]any{"file_path": "a.py"})
		if res.Failed() || res.Output != "print('hi')\n" {
			t.Fatalf("read %d: %+v", i, res)
		}
	}
	if st := files.Stats(); st.Hits != 1 || st.Misses != 1 {
		t.Errorf("expected one hit and one miss, got %+v", st)
	}

	res := dispatch(t, r, s, "read_file", map[string]any{"file_path": s.Dir()})
	if !res.Failed() || !strings.Contains(res.Text(), "is a directory") {
		t.Errorf("reading a directory should fail, got %+v", res)
	}
}

func TestListDirectory(t *testing.T) {
	s := newSession(t)
	for _, name := range []string{"b.go", "a.go"} {
		if err := os.WriteFile(filepath.Join(s.Dir(), name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(s.Dir(), "pkg"), 0755); err != nil {
		t.Fatal(err)
	}
	r := NewDefaultRegistry(Deps{Dirs: newCache(t)})

	res := dispatch(t, r, s, "list_directory", nil)
	if res.Failed() || res.Output != "a.go\nb.go\npkg/" {
		t.Errorf("unexpected listing %q", res.Text())
	}

	res = dispatch(t, r, s, "list_directory", map[string]any{"path": "pkg"})
	if res.Output != "(empty directory)" {
		t.Errorf("unexpected listing %q", res.Text())
	}

	res = dispatch(t, r, s, "list_directory", map[string]any{"path": "missing"})
	if !res.Failed() || !strings.Contains(res.Text(), "does not exist") {
		t.Errorf("expected failure, got %q", res.Text())
	}
}

func TestChangeDirectory(t *testing.T) {
	s := newSession(t)
	start := s.Dir()
	if err := os.Mkdir(filepath.Join(start, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	r := NewDefaultRegistry(Deps{})

	res := dispatch(t, r, s, "change_directory", map[string]any{"path": "nonexistent"})
	want := "Error executing change_directory: Directory " + filepath.Join(start, "nonexistent") + " does not exist"
	if res.Text() != want {
		t.Errorf("got %q, want %q", res.Text(), want)
	}
	if s.Dir() != start {
		t.Errorf("failed change must not move the session, now %s", s.Dir())
	}

	res = dispatch(t, r, s, "change_directory", map[string]any{"path": "sub"})
	if res.Failed() || res.Output != "Changed directory to "+filepath.Join(start, "sub") {
		t.Errorf("unexpected result %q", res.Text())
	}

	// Subsequent relative paths resolve against the new directory.
	if err := os.WriteFile(filepath.Join(start, "sub", "x.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if res := dispatch(t, r, s, "read_file", map[string]any{"file_path": "x.txt"}); res.Output != "x" {
		t.Errorf("read after cd: %q", res.Text())
	}
}

func TestSessionResolve(t *testing.T) {
	s := newSession(t)
	home, _ := os.UserHomeDir()

	tests := []struct {
		in, want string
	}{
		{"", s.Dir()},
		{"a/b.go", filepath.Join(s.Dir(), "a", "b.go")},
		{"/etc/../etc/hosts", "/etc/hosts"},
		{"~/notes", filepath.Join(home, "notes")},
	}
	for _, tt := range tests {
		if got := s.Resolve(tt.in); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := NewSession(filepath.Join(s.Dir(), "missing")); err == nil {
		t.Error("NewSession should reject a missing directory")
	}
}

func requireBash(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
}

func TestRunCommand(t *testing.T) {
	requireBash(t)
	s := newSession(t)
	r := NewRegistry(nil)
	r.Register(&RunCommandTool{Timeout: 200 * time.Millisecond, MaxOutput: 64, BlockDangerous: true})

	res := dispatch(t, r, s, "run_command", map[string]any{"command": "pwd"})
	if res.Failed() || strings.TrimSpace(res.Output) != s.Dir() {
		t.Errorf("command should run in the session dir, got %q", res.Text())
	}

	res = dispatch(t, r, s, "run_command", map[string]any{"command": "echo out; echo err >&2; exit 3"})
	if res.Failed() {
		t.Fatalf("non-zero exit is not a tool failure: %q", res.Text())
	}
	for _, want := range []string{"out", "STDERR:\nerr", "Exit code: 3"} {
		if !strings.Contains(res.Output, want) {
			t.Errorf("output %q missing %q", res.Output, want)
		}
	}

	res = dispatch(t, r, s, "run_command", map[string]any{"command": "head -c 500 /dev/zero | tr '\\0' a"})
	if !strings.HasSuffix(res.Output, "... (output truncated)") {
		t.Errorf("expected truncation, got %d bytes", len(res.Output))
	}

	res = dispatch(t, r, s, "run_command", map[string]any{"command": "sleep 5"})
	if !res.Failed() || !strings.Contains(res.Text(), "timed out") {
		t.Errorf("expected timeout, got %q", res.Text())
	}

	res = dispatch(t, r, s, "run_command", map[string]any{"command": "rm -rf /"})
	if !res.Failed() || res.Err.Kind != KindDenied {
		t.Errorf("expected blocklist denial, got %+v", res)
	}
}

func TestRunCommand_SanitizedEnv(t *testing.T) {
	requireBash(t)
	t.Setenv("CODEAGENT_SECRET_TOKEN", "hunter2")
	r := NewRegistry(nil)
	r.Register(&RunCommandTool{})

	res := dispatch(t, r, newSession(t), "run_command", map[string]any{"command": "env"})
	if strings.Contains(res.Output, "hunter2") {
		t.Error("secrets must not leak into the command environment")
	}
}

func TestSearchCode(t *testing.T) {
	if _, err := exec.LookPath("grep"); err != nil {
		t.Skip("grep not available")
	}
	s := newSession(t)
	if err := os.WriteFile(filepath.Join(s.Dir(), "main.go"), []byte("package main\n\nfunc handleRequest() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	r := NewDefaultRegistry(Deps{})

	res := dispatch(t, r, s, "search_code", map[string]any{"pattern": "handle[A-Z]"})
	if res.Failed() || !strings.Contains(res.Output, "main.go") || !strings.Contains(res.Output, "3:") {
		t.Errorf("expected a match with line number, got %q", res.Text())
	}

	res = dispatch(t, r, s, "search_code", map[string]any{"pattern": "doesNotAppear"})
	if res.Output != "No matches found." {
		t.Errorf("got %q", res.Text())
	}

	res = dispatch(t, r, s, "search_code", map[string]any{"pattern": "x", "path": "missing"})
	if !res.Failed() {
		t.Error("searching a missing path should fail")
	}
}

type fakeIndex struct {
	results []index.Result
	err     error
	k       int
}

func (f *fakeIndex) Query(_ context.Context, _ index.Query, k int) ([]index.Result, error) {
	f.k = k
	return f.results, f.err
}

func (f *fakeIndex) IndexFile(context.Context, string) (int, error) { return 3, f.err }

func (f *fakeIndex) IndexDirectory(_ context.Context, dir string) (index.Stats, error) {
	return index.Stats{Dir: dir, Indexed: 7}, f.err
}

func TestSearchVectorstore(t *testing.T) {
	s := newSession(t)

	empty := &fakeIndex{err: index.ErrNoResults}
	r := NewDefaultRegistry(Deps{Index: empty})
	if res := dispatch(t, r, s, "search_vectorstore", map[string]any{"query": "auth"}); res.Output != "No results found." {
		t.Errorf("got %q", res.Text())
	}
	if empty.k != 5 {
		t.Errorf("default k = %d, want 5", empty.k)
	}

	full := &fakeIndex{results: []index.Result{
		{Source: "/src/auth.go", Ordinal: 2, ChunkText: "func Login() {}", Score: 0.91},
	}}
	r = NewDefaultRegistry(Deps{Index: full})
	res := dispatch(t, r, s, "search_vectorstore", map[string]any{"query": "auth", "k": float64(2)})
	for _, want := range []string{"Found 1 results", "91.00% match", "/src/auth.go (chunk 2)", "```go\nfunc Login() {}\n```"} {
		if !strings.Contains(res.Output, want) {
			t.Errorf("output missing %q:\n%s", want, res.Output)
		}
	}
	if full.k != 2 {
		t.Errorf("k = %d, want 2", full.k)
	}

	broken := &fakeIndex{err: errors.New("embedding server down")}
	r = NewDefaultRegistry(Deps{Index: broken})
	if res := dispatch(t, r, s, "search_vectorstore", map[string]any{"query": "x"}); res.Text() != "Error executing search_vectorstore: embedding server down" {
		t.Errorf("got %q", res.Text())
	}
}

func TestAddAndIndexMessages(t *testing.T) {
	s := newSession(t)
	if err := os.WriteFile(filepath.Join(s.Dir(), "a.py"), []byte("x = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	r := NewDefaultRegistry(Deps{Index: &fakeIndex{}})

	res := dispatch(t, r, s, "add_to_vectorstore", map[string]any{"file_path": "a.py"})
	if res.Output != "Added "+filepath.Join(s.Dir(), "a.py")+" to vector store (3 chunks)" {
		t.Errorf("got %q", res.Text())
	}

	res = dispatch(t, r, s, "index_codebase", nil)
	if res.Output != "Indexed 7 files from "+s.Dir() {
		t.Errorf("got %q", res.Text())
	}

	res = dispatch(t, r, s, "add_to_vectorstore", map[string]any{"file_path": "missing.py"})
	if !res.Failed() {
		t.Error("adding a missing file should fail")
	}
}

// hashEmbedder returns a constant vector per text length bucket.
type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)%7 + 1), 1, 0.5}
	}
	return out, nil
}

func (hashEmbedder) ModelID() string { return "hash" }

func TestIndexCodebase_EndToEnd(t *testing.T) {
	s := newSession(t)
	for name, content := range map[string]string{
		"a.py":                  "def f():\n    return 1\n",
		"a.log":                 "noise\n",
		"node_modules/dep.js":   "module.exports = 1\n",
		"__pycache__/a.cpython": "bytes\n",
	} {
		p := filepath.Join(s.Dir(), name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	strategy := embedding.NewChunkStrategy(chunker.NewFixed(100, 0), hashEmbedder{})
	ix := index.New(store.NewMemory(), strategy, index.Options{
		Extensions: config.DefaultExtensions,
		SkipDirs:   config.DefaultSkipDirs,
	}, nil)
	r := NewDefaultRegistry(Deps{Index: ix})

	res := dispatch(t, r, s, "search_vectorstore", map[string]any{"query": "anything"})
	if res.Output != "No results found." {
		t.Errorf("empty store: got %q", res.Text())
	}

	res = dispatch(t, r, s, "index_codebase", map[string]any{})
	if res.Output != "Indexed 1 files from "+s.Dir() {
		t.Errorf("got %q", res.Text())
	}

	// Re-indexing must not grow the store.
	_ = dispatch(t, r, s, "add_to_vectorstore", map[string]any{"file_path": "a.py"})
	_ = dispatch(t, r, s, "index_codebase", map[string]any{})
	if n, _ := ix.Count(context.Background()); n != 1 {
		t.Errorf("expected 1 stored chunk after re-indexing, got %d", n)
	}
}

package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fakeReporter records every call made by the builder.
type fakeReporter struct {
	events  []string
	current int
	opened  int
	closed  int
	max     int
}

func (r *fakeReporter) Open(total int) {
	r.opened++
	r.events = append(r.events, fmt.Sprintf("open %d", total))
}

func (r *fakeReporter) Advance(units int) {
	r.current += units
	r.max = max(r.max, r.current)
	r.events = append(r.events, fmt.Sprintf("advance %d", units))
}

func (r *fakeReporter) SetLabel(label string) {
	r.events = append(r.events, "label "+label)
}

func (r *fakeReporter) WriteLine(line string) {
	r.events = append(r.events, "line "+line)
}

func (r *fakeReporter) Close() {
	r.closed++
	r.events = append(r.events, "close")
}

// scriptedConfirmer answers with a fixed result and counts questions.
type scriptedConfirmer struct {
	answer bool
	err    error
	asked  int
}

func (c *scriptedConfirmer) Confirm(_ context.Context, _ string) (bool, error) {
	c.asked++
	return c.answer, c.err
}

func newTestBuilder(t *testing.T, reg *Registry, opts ...Option) (*Builder, *fakeReporter, *strings.Builder) {
	t.Helper()
	rep := &fakeReporter{}
	stdout := &strings.Builder{}
	opts = append([]Option{WithReporter(rep), WithStdout(stdout)}, opts...)
	return New(t.TempDir(), reg, opts...), rep, stdout
}

func TestRunInvokesStepsInOrderOnce(t *testing.T) {
	reg := NewRegistry()
	var calls []string
	for _, name := range []string{"one", "two", "three"} {
		name := name
		if err := reg.Register(name, func(context.Context, *Session) error {
			calls = append(calls, name)
			return nil
		}); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}

	b, rep, _ := newTestBuilder(t, reg)
	target := filepath.Join(t.TempDir(), "newproj")
	if err := b.Run(context.Background(), target); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := strings.Join(calls, ","); got != "one,two,three" {
		t.Errorf("call order = %s, want one,two,three", got)
	}
	if b.State() != StateDone {
		t.Errorf("State() = %s, want done", b.State())
	}
	if rep.current != Total {
		t.Errorf("progress = %d, want %d", rep.current, Total)
	}
	if rep.opened != 1 || rep.closed != 1 {
		t.Errorf("reporter opened %d closed %d, want 1 and 1", rep.opened, rep.closed)
	}

	want := []string{
		"open 100",
		"advance 25", "label one",
		"advance 25", "label two",
		"advance 25", "label three",
		"advance 25",
		"close",
	}
	if diff := cmp.Diff(want, rep.events); diff != "" {
		t.Errorf("reporter events mismatch (-want +got):\n%s", diff)
	}
}

func TestIncrementsAlwaysReachTotal(t *testing.T) {
	for n := 0; n <= 250; n++ {
		perStep, final := Increments(n, Total)
		if len(perStep) != n {
			t.Fatalf("n=%d: got %d increments", n, len(perStep))
		}
		sum := 0
		for i, inc := range perStep {
			if inc < 0 {
				t.Fatalf("n=%d: negative increment at %d", n, i)
			}
			sum += inc
			if sum > Total {
				t.Fatalf("n=%d: progress passed total mid-run at step %d (%d)", n, i, sum)
			}
		}
		if final < 0 || sum+final != Total {
			t.Fatalf("n=%d: steps %d + final %d != %d", n, sum, final, Total)
		}
	}
}

func TestIncrementsSmallCounts(t *testing.T) {
	tests := []struct {
		n         int
		wantEach  int
		wantFinal int
	}{
		{0, 0, 100},
		{1, 50, 50},
		{2, 33, 34},
		{3, 25, 25},
		{5, 17, 15},
	}
	for _, tt := range tests {
		perStep, final := Increments(tt.n, Total)
		for _, inc := range perStep {
			if inc != tt.wantEach {
				t.Errorf("n=%d: increment %d, want %d", tt.n, inc, tt.wantEach)
			}
		}
		if final != tt.wantFinal {
			t.Errorf("n=%d: final %d, want %d", tt.n, final, tt.wantFinal)
		}
	}

	if perStep, final := Increments(-1, Total); len(perStep) != 0 || final != Total {
		t.Errorf("Increments(-1) = %v, %d", perStep, final)
	}
}

func TestRunWithNoStepsCompletes(t *testing.T) {
	b, rep, _ := newTestBuilder(t, NewRegistry())
	if err := b.Run(context.Background(), filepath.Join(t.TempDir(), "empty")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.current != Total {
		t.Errorf("progress = %d, want %d", rep.current, Total)
	}
}

func TestRunRefusesRepoRoot(t *testing.T) {
	reg := NewRegistry()
	ran := false
	_ = reg.Register("touch", func(context.Context, *Session) error {
		ran = true
		return nil
	})

	root := t.TempDir()
	marker := filepath.Join(root, "keep.txt")
	if err := os.WriteFile(marker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	confirm := &scriptedConfirmer{answer: true}
	rep := &fakeReporter{}
	b := New(root, reg, WithReporter(rep), WithConfirmer(confirm))

	err := b.Run(context.Background(), root+string(filepath.Separator))
	var invalid *InvalidTargetError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTargetError, got %v", err)
	}
	if ran || confirm.asked != 0 || rep.opened != 0 {
		t.Errorf("no work may happen: ran=%v asked=%d opened=%d", ran, confirm.asked, rep.opened)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("repo root was modified: %v", err)
	}
	if b.State() != StateFailed {
		t.Errorf("State() = %s, want failed", b.State())
	}
}

// symlinkOrSkip creates link → target, skipping where symlinks are not allowed.
func symlinkOrSkip(t *testing.T, target, link string) {
	t.Helper()
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
}

func TestRunRefusesRepoRootThroughSymlink(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "real", "repo")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatal(err)
	}
	precious := filepath.Join(root, "precious.txt")
	if err := os.WriteFile(precious, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	symlinkOrSkip(t, filepath.Join(base, "real"), filepath.Join(base, "alias"))
	symlinkOrSkip(t, root, filepath.Join(base, "rootlink"))

	tests := []struct {
		name   string
		target string
	}{
		{"aliased parent", filepath.Join(base, "alias", "repo")},
		{"link to the root itself", filepath.Join(base, "rootlink")},
		{"ancestor of the root", filepath.Join(base, "alias")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			confirm := &scriptedConfirmer{answer: true}
			b := New(root, NewRegistry(), WithReporter(&fakeReporter{}), WithConfirmer(confirm))

			err := b.Run(context.Background(), tt.target)
			var invalid *InvalidTargetError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidTargetError, got %v", err)
			}
			if confirm.asked != 0 {
				t.Error("overwrite must not be offered for the repository")
			}
			if _, err := os.Stat(precious); err != nil {
				t.Fatalf("repository contents touched: %v", err)
			}
		})
	}
}

func TestResolvePathMissingTail(t *testing.T) {
	base := t.TempDir()
	realDir := filepath.Join(base, "real")
	if err := os.Mkdir(realDir, 0755); err != nil {
		t.Fatal(err)
	}
	symlinkOrSkip(t, realDir, filepath.Join(base, "alias"))

	got, err := resolvePath(filepath.Join(base, "alias", "new", "proj"))
	if err != nil {
		t.Fatalf("resolvePath: %v", err)
	}
	wantBase, _ := filepath.EvalSymlinks(realDir)
	if want := filepath.Join(wantBase, "new", "proj"); got != want {
		t.Errorf("resolvePath = %q, want %q", got, want)
	}
}

func TestContains(t *testing.T) {
	sep := string(filepath.Separator)
	tests := []struct {
		dir, child string
		want       bool
	}{
		{sep + "a", sep + filepath.Join("a", "b"), true},
		{sep + "a", sep + "a", false},
		{sep + filepath.Join("a", "b"), sep + "a", false},
		{sep + "a", sep + "ab", false},
		{sep + "a", sep + filepath.Join("a", "..b"), true},
	}
	for _, tt := range tests {
		if got := contains(tt.dir, tt.child); got != tt.want {
			t.Errorf("contains(%q, %q) = %v, want %v", tt.dir, tt.child, got, tt.want)
		}
	}
}

func TestRunAllowsTargetInsideRepo(t *testing.T) {
	root := t.TempDir()
	b := New(root, NewRegistry(), WithReporter(&fakeReporter{}))
	if err := b.Run(context.Background(), filepath.Join(root, "newproj")); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunRejectsEmptyTarget(t *testing.T) {
	b, _, _ := newTestBuilder(t, NewRegistry())
	var invalid *InvalidTargetError
	if err := b.Run(context.Background(), ""); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTargetError, got %v", err)
	}
}

func TestRunDeclinedOverwriteLeavesTarget(t *testing.T) {
	target := t.TempDir()
	stale := filepath.Join(target, "stale.txt")
	if err := os.WriteFile(stale, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry()
	ran := false
	_ = reg.Register("copy", func(context.Context, *Session) error {
		ran = true
		return nil
	})

	confirm := &scriptedConfirmer{answer: false}
	b, rep, _ := newTestBuilder(t, reg, WithConfirmer(confirm))

	err := b.Run(context.Background(), target)
	if !errors.Is(err, ErrAbortedByUser) {
		t.Fatalf("expected ErrAbortedByUser, got %v", err)
	}
	if confirm.asked != 1 {
		t.Errorf("asked %d times, want 1", confirm.asked)
	}
	if ran || rep.opened != 0 {
		t.Error("steps must not run after a declined confirmation")
	}
	if _, err := os.Stat(stale); err != nil {
		t.Errorf("target was modified: %v", err)
	}
}

func TestRunConfirmedOverwriteRemovesStaleFiles(t *testing.T) {
	target := t.TempDir()
	stale := filepath.Join(target, "stale.txt")
	if err := os.WriteFile(stale, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry()
	var sawStale bool
	_ = reg.Register("create", func(_ context.Context, s *Session) error {
		_, err := os.Stat(stale)
		sawStale = err == nil
		return os.MkdirAll(s.TargetDir, 0755)
	})

	b, _, _ := newTestBuilder(t, reg, WithConfirmer(&scriptedConfirmer{answer: true}))
	if err := b.Run(context.Background(), target); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sawStale {
		t.Error("stale file still present when the first step ran")
	}
}

func TestRunConfirmerErrorPropagates(t *testing.T) {
	target := t.TempDir()
	sentinel := errors.New("stdin closed")
	b, _, _ := newTestBuilder(t, NewRegistry(), WithConfirmer(&scriptedConfirmer{err: sentinel}))

	if err := b.Run(context.Background(), target); !errors.Is(err, sentinel) {
		t.Fatalf("expected confirmer error, got %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Errorf("target removed despite failed confirmation: %v", err)
	}
}

func TestRunExistingTargetWithoutConfirmer(t *testing.T) {
	b, _, _ := newTestBuilder(t, NewRegistry())
	var cfg *ConfigurationError
	if err := b.Run(context.Background(), t.TempDir()); !errors.As(err, &cfg) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestRunStepFailureStopsBuild(t *testing.T) {
	reg := NewRegistry()
	var calls []string
	boom := errors.New("boom")
	_ = reg.Register("first", func(context.Context, *Session) error {
		calls = append(calls, "first")
		return nil
	})
	_ = reg.Register("second", func(context.Context, *Session) error {
		calls = append(calls, "second")
		return boom
	})
	_ = reg.Register("third", func(context.Context, *Session) error {
		calls = append(calls, "third")
		return nil
	})

	b, rep, _ := newTestBuilder(t, reg)
	err := b.Run(context.Background(), filepath.Join(t.TempDir(), "p"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected step error, got %v", err)
	}
	if !strings.Contains(err.Error(), `step "second"`) {
		t.Errorf("error should name the failing step: %v", err)
	}
	if strings.Join(calls, ",") != "first,second" {
		t.Errorf("calls = %v, third step must not run", calls)
	}
	if b.State() != StateFailed {
		t.Errorf("State() = %s, want failed", b.State())
	}
	if rep.closed != 1 {
		t.Errorf("reporter closed %d times, want 1", rep.closed)
	}
	if rep.max > Total {
		t.Errorf("progress overshot total: %d", rep.max)
	}
}

func TestRunInterceptsStepOutput(t *testing.T) {
	reg := NewRegistry()
	var sink *Session
	_ = reg.Register("print", func(_ context.Context, s *Session) error {
		sink = s
		fmt.Fprintln(s.Stdout, "hello from step")
		fmt.Fprint(s.Stdout, "unterminated")
		return errors.New("fail after printing")
	})

	b, rep, stdout := newTestBuilder(t, reg)
	_ = b.Run(context.Background(), filepath.Join(t.TempDir(), "p"))

	joined := strings.Join(rep.events, "|")
	if !strings.Contains(joined, "line hello from step|line unterminated|close") {
		t.Errorf("step output not routed through reporter before close: %q", rep.events)
	}
	if stdout.Len() != 0 {
		t.Errorf("real stdout written during run: %q", stdout.String())
	}

	// After the run the sink writes straight to the original stream.
	fmt.Fprint(sink.Stdout, "after")
	if stdout.String() != "after" {
		t.Errorf("sink not restored after run, stdout = %q", stdout.String())
	}
}

func TestRunReleasesOutputOnPanic(t *testing.T) {
	reg := NewRegistry()
	var sink *Session
	_ = reg.Register("explode", func(_ context.Context, s *Session) error {
		sink = s
		panic("step exploded")
	})

	b, rep, stdout := newTestBuilder(t, reg)
	func() {
		defer func() { _ = recover() }()
		_ = b.Run(context.Background(), filepath.Join(t.TempDir(), "p"))
	}()

	if rep.closed != 1 {
		t.Errorf("reporter closed %d times, want 1", rep.closed)
	}
	fmt.Fprint(sink.Stdout, "restored")
	if stdout.String() != "restored" {
		t.Errorf("output not restored after panic, got %q", stdout.String())
	}
}

func TestRunCancelledContextStopsBeforeNextStep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reg := NewRegistry()
	second := false
	_ = reg.Register("first", func(context.Context, *Session) error {
		cancel()
		return nil
	})
	_ = reg.Register("second", func(context.Context, *Session) error {
		second = true
		return nil
	})

	b, _, _ := newTestBuilder(t, reg)
	if err := b.Run(ctx, filepath.Join(t.TempDir(), "p")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if second {
		t.Error("second step ran after cancellation")
	}
}

func TestRunTwiceIsRejected(t *testing.T) {
	b, _, _ := newTestBuilder(t, NewRegistry())
	if err := b.Run(context.Background(), filepath.Join(t.TempDir(), "a")); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	var cfg *ConfigurationError
	if err := b.Run(context.Background(), filepath.Join(t.TempDir(), "b")); !errors.As(err, &cfg) {
		t.Fatalf("expected ConfigurationError on reuse, got %v", err)
	}
}

func TestSessionCarriesPaths(t *testing.T) {
	reg := NewRegistry()
	var got Session
	_ = reg.Register("inspect", func(_ context.Context, s *Session) error {
		got = *s
		return nil
	})

	root := t.TempDir()
	target := filepath.Join(t.TempDir(), "proj")
	b := New(root, reg, WithStdout(&strings.Builder{}))
	if err := b.Run(context.Background(), target); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.RepoRoot != root || got.TargetDir != target {
		t.Errorf("session paths = %q, %q; want %q, %q", got.RepoRoot, got.TargetDir, root, target)
	}
	if got.Stdout == nil || got.Reporter == nil || got.Logger == nil {
		t.Error("session is missing its sink, reporter or logger")
	}
}

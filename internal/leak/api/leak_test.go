package api

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kolkov/leakdetector/internal/leak/allocator"
	"github.com/kolkov/leakdetector/internal/leak/atexit"
	"github.com/kolkov/leakdetector/internal/leak/config"
	"github.com/kolkov/leakdetector/internal/leak/report"
	"github.com/kolkov/leakdetector/internal/leak/thread"
)

// setupRuntime resets the runtime and arranges teardown. Every test in this
// package goes through it: the bootstrap state machine is process-global.
func setupRuntime(t *testing.T, options string) {
	t.Helper()

	Reset()
	t.Cleanup(Reset)

	t.Setenv(config.EnvOptions, options)
	t.Setenv(config.EnvSymbolizerPath, "")

	t.Cleanup(func() {
		_ = report.SetLogPath("stderr")
		report.SetVerbosity(0)
	})
}

// captureOutput re-targets report output into a buffer.
//
// Option resolution re-applies the configured log path, so tests that
// assert on output after Init must capture after Init returned.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	report.SetOutput(&buf)
	return &buf
}

// TestInit_Bootstrap verifies the full sequence completes exactly once.
func TestInit_Bootstrap(t *testing.T) {
	setupRuntime(t, "handle_fatal_signals=0")

	Init()

	if State() != StateInitialized {
		t.Fatalf("State() = %v after Init, want initialized", State())
	}
	if bootstraps.Load() != 1 {
		t.Errorf("bootstraps = %d, want 1", bootstraps.Load())
	}
	if Config() == nil {
		t.Fatal("Config() nil after Init")
	}
	if !allocator.Active() {
		t.Error("allocator inactive after Init")
	}

	// The bootstrap goroutine is tracked thread 0.
	th := thread.Current()
	if th == nil || th.ID != 0 {
		t.Errorf("bootstrap thread = %+v, want id 0", th)
	}
}

// TestInit_Idempotent verifies repeated Init calls are no-ops.
func TestInit_Idempotent(t *testing.T) {
	setupRuntime(t, "handle_fatal_signals=0")

	Init()
	Init()
	Init()

	if bootstraps.Load() != 1 {
		t.Errorf("bootstraps = %d after repeated Init, want 1", bootstraps.Load())
	}
	if thread.Count() != 1 {
		t.Errorf("thread.Count() = %d, want 1", thread.Count())
	}
}

// TestInit_Concurrent verifies exactly one bootstrap under concurrent first
// calls. A loser of the guard that still observes bootstrap in progress
// takes the abort path; none of them bootstraps again.
func TestInit_Concurrent(t *testing.T) {
	setupRuntime(t, "handle_fatal_signals=0")

	prev := report.SetDieCallback(func() {})
	defer report.SetDieCallback(prev)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			Init()
		}()
	}
	close(start)
	wg.Wait()

	if bootstraps.Load() != 1 {
		t.Fatalf("bootstraps = %d under concurrent Init, want exactly 1", bootstraps.Load())
	}
	if State() != StateInitialized {
		t.Errorf("State() = %v, want initialized", State())
	}
}

// TestInit_ReentrantAborts verifies a caller observing bootstrap in
// progress takes the fatal path.
func TestInit_ReentrantAborts(t *testing.T) {
	setupRuntime(t, "handle_fatal_signals=0")
	buf := captureOutput(t)

	// Pin the state machine mid-bootstrap.
	initState.Store(int32(StateInitializing))

	aborted := false
	prev := report.SetDieCallback(func() { aborted = true })
	defer report.SetDieCallback(prev)

	Init()

	if !aborted {
		t.Fatal("re-entrant Init did not abort")
	}
	if !strings.Contains(buf.String(), "re-entrant bootstrap") {
		t.Errorf("abort diagnostic = %q", buf.String())
	}
	if bootstraps.Load() != 0 {
		t.Errorf("bootstraps = %d, re-entrant call must not bootstrap", bootstraps.Load())
	}
}

// TestInit_ExitHookScheduling verifies the exit hook is scheduled only when
// both detect_leaks and leak_check_at_exit agree.
func TestInit_ExitHookScheduling(t *testing.T) {
	tests := []struct {
		name    string
		options string
		want    int
	}{
		{name: "both_on", options: "handle_fatal_signals=0", want: 1},
		{name: "detection_off", options: "handle_fatal_signals=0 detect_leaks=0", want: 0},
		{name: "exit_check_off", options: "handle_fatal_signals=0 leak_check_at_exit=0", want: 0},
		{name: "both_off", options: "handle_fatal_signals=0 detect_leaks=0 leak_check_at_exit=0", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupRuntime(t, tt.options)
			Init()
			if got := atexit.Registered(); got != tt.want {
				t.Errorf("registered exit hooks = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestFini_LeakExit verifies the exit-time check reports leaks and leaves
// through the reserved exit code.
func TestFini_LeakExit(t *testing.T) {
	setupRuntime(t, "handle_fatal_signals=0")

	exitCode := -1
	savedExit := exitProcess
	exitProcess = func(code int) { exitCode = code }
	defer func() { exitProcess = savedExit }()

	Init()
	buf := captureOutput(t)

	RecordAlloc(0x1000, 128)
	RecordAlloc(0x2000, 64)
	Fini()

	if exitCode != config.DefaultExitcode {
		t.Errorf("exit code = %d, want %d", exitCode, config.DefaultExitcode)
	}
	out := buf.String()
	if !strings.Contains(out, "SUMMARY: LeakDetector: 192 byte(s) leaked in 2 allocation(s).") {
		t.Errorf("leak summary missing or wrong: %q", out)
	}
}

// TestFini_CustomExitcode verifies exitcode= reaches the exit path.
func TestFini_CustomExitcode(t *testing.T) {
	setupRuntime(t, "handle_fatal_signals=0 exitcode=42")

	exitCode := -1
	savedExit := exitProcess
	exitProcess = func(code int) { exitCode = code }
	defer func() { exitProcess = savedExit }()

	Init()
	captureOutput(t)

	RecordAlloc(0x1000, 1)
	Fini()

	if exitCode != 42 {
		t.Errorf("exit code = %d, want 42", exitCode)
	}
}

// TestFini_NoLeaks verifies a clean exit: no summary, no exit-code override.
func TestFini_NoLeaks(t *testing.T) {
	setupRuntime(t, "handle_fatal_signals=0")

	exited := false
	savedExit := exitProcess
	exitProcess = func(int) { exited = true }
	defer func() { exitProcess = savedExit }()

	Init()
	buf := captureOutput(t)

	RecordAlloc(0x1000, 128)
	RecordFree(0x1000)
	Fini()

	if exited {
		t.Error("exit path taken with no leaks")
	}
	if strings.Contains(buf.String(), "SUMMARY") {
		t.Errorf("unexpected summary: %q", buf.String())
	}
}

// TestFini_DetectionDisabled verifies detect_leaks=0 disables the whole
// exit-time pipeline even with allocation records attempted.
func TestFini_DetectionDisabled(t *testing.T) {
	setupRuntime(t, "handle_fatal_signals=0 detect_leaks=0")

	exited := false
	savedExit := exitProcess
	exitProcess = func(int) { exited = true }
	defer func() { exitProcess = savedExit }()

	Init()
	RecordAlloc(0x1000, 128) // dropped: detection is off
	Fini()

	if exited {
		t.Error("exit path taken with detection disabled")
	}
}

// TestFini_Idempotent verifies the hooks run once across repeated Fini.
func TestFini_Idempotent(t *testing.T) {
	setupRuntime(t, "handle_fatal_signals=0")

	exits := 0
	savedExit := exitProcess
	exitProcess = func(int) { exits++ }
	defer func() { exitProcess = savedExit }()

	Init()
	captureOutput(t)

	RecordAlloc(0x1000, 1)
	Fini()
	Fini()

	if exits != 1 {
		t.Errorf("exit path ran %d times across repeated Fini, want 1", exits)
	}
}

// TestDoLeakCheck verifies the on-demand check counts without terminating.
func TestDoLeakCheck(t *testing.T) {
	setupRuntime(t, "handle_fatal_signals=0")

	exited := false
	savedExit := exitProcess
	exitProcess = func(int) { exited = true }
	defer func() { exitProcess = savedExit }()

	Init()
	captureOutput(t)

	if n := DoLeakCheck(); n != 0 {
		t.Errorf("DoLeakCheck() = %d on clean state, want 0", n)
	}

	RecordAlloc(0x1000, 8)
	if n := DoLeakCheck(); n != 1 {
		t.Errorf("DoLeakCheck() = %d, want 1", n)
	}
	if exited {
		t.Error("DoLeakCheck must never terminate the process")
	}
}

// TestRecord_BeforeInit verifies allocation records before bootstrap are
// dropped, not queued.
func TestRecord_BeforeInit(t *testing.T) {
	setupRuntime(t, "handle_fatal_signals=0")

	RecordAlloc(0x1000, 128)

	Init()
	captureOutput(t)
	if n := DoLeakCheck(); n != 0 {
		t.Errorf("DoLeakCheck() = %d, pre-bootstrap records must be dropped", n)
	}
}

// TestRegisterCurrentThread verifies instrumented goroutine registration.
func TestRegisterCurrentThread(t *testing.T) {
	setupRuntime(t, "handle_fatal_signals=0")
	Init()

	// The bootstrap goroutine re-registers as itself.
	if id := RegisterCurrentThread(); id != 0 {
		t.Errorf("bootstrap goroutine re-registered as %d, want 0", id)
	}

	var workerID uint32
	done := make(chan struct{})
	go func() {
		workerID = RegisterCurrentThread()
		close(done)
	}()
	<-done

	if workerID == 0 {
		t.Error("worker goroutine received the bootstrap id 0")
	}
}

// TestPrintStackTrace verifies a symbolized trace of the caller appears.
func TestPrintStackTrace(t *testing.T) {
	setupRuntime(t, "handle_fatal_signals=0")
	Init()
	buf := captureOutput(t)

	PrintStackTrace()

	if !strings.Contains(buf.String(), "TestPrintStackTrace") {
		t.Errorf("trace does not include the caller:\n%s", buf.String())
	}
}

// TestPrintStackTrace_FastUnwind verifies the caller's stack survives with
// fast unwinding enabled. PrintStackTrace has no frame pointer to offer, so
// the unwinder must take the precise path even though the bootstrap
// goroutine is a tracked thread.
func TestPrintStackTrace_FastUnwind(t *testing.T) {
	setupRuntime(t, "handle_fatal_signals=0 fast_unwind_on_fatal=1")
	Init()
	buf := captureOutput(t)

	PrintStackTrace()

	if !strings.Contains(buf.String(), "TestPrintStackTrace_FastUnwind") {
		t.Errorf("trace does not include the caller with fast unwind enabled:\n%s", buf.String())
	}
}

// TestInit_VerboseDiagnostic verifies the verbosity=1 bootstrap line lands
// in the configured log file.
func TestInit_VerboseDiagnostic(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "boot.log")
	setupRuntime(t, "handle_fatal_signals=0 verbosity=1 log_path="+logFile)

	Init()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("cannot read log file: %v", err)
	}
	if !strings.Contains(string(data), "==leakdetector== initialized") {
		t.Errorf("bootstrap diagnostic missing: %q", string(data))
	}
}

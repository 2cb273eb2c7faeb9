package coordinator

import (
	"fmt"
	"strings"
)

// wasmRuntime is the sandbox launcher for wasm32 build outputs. The
// exception-handling proposal must be enabled explicitly or unwind
// support in generated code traps at the first raise.
const wasmRuntime = "wasmtime"

// runtimeLauncher maps a codegen target onto the command that executes
// its build output. Native targets exec the output directly; a wasm32
// target is routed through wasmtime. A sandbox architecture with no
// known launcher is an error: run-mode could never start the child, so
// it must be rejected up front rather than rediscovered every cycle.
func runtimeLauncher(target, command string, args []string) (string, []string, error) {
	arch := target
	if i := strings.IndexByte(target, '-'); i >= 0 {
		arch = target[:i]
	}

	switch {
	case arch == "wasm32":
		wasmArgs := []string{"run", "--wasm-features", "exception-handling", command}
		return wasmRuntime, append(wasmArgs, args...), nil
	case strings.HasPrefix(arch, "wasm"):
		return "", nil, fmt.Errorf("coordinator: no known sandbox runtime for target %q", target)
	default:
		return command, args, nil
	}
}

// mustRuntimeLauncher is runtimeLauncher for targets already validated
// at construction time.
func mustRuntimeLauncher(target, command string, args []string) (string, []string) {
	cmd, a, err := runtimeLauncher(target, command, args)
	if err != nil {
		// Validated in New; reaching this is a programming error.
		panic(err)
	}
	return cmd, a
}

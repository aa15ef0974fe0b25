package tools

// Sandbox rewrites a shell command so it runs under OS-level isolation
// with dir as the writable tree.
type Sandbox interface {
	Wrap(command, dir string) (exe string, args []string, err error)
	Available() bool
	Name() string
}

// SandboxOptions loosen the default isolation.
type SandboxOptions struct {
	// AllowNetwork keeps the host network reachable.
	AllowNetwork bool
	// Writable lists paths writable in addition to the session directory,
	// such as build caches.
	Writable []string
}

// platformSandboxes is filled by the build-tagged init functions.
var platformSandboxes []func(SandboxOptions) Sandbox

func registerPlatformSandbox(build func(SandboxOptions) Sandbox) {
	platformSandboxes = append(platformSandboxes, build)
}

// DetectSandbox returns the first usable platform sandbox, or the
// pass-through sandbox when none is installed.
func DetectSandbox(opts SandboxOptions) Sandbox {
	for _, build := range platformSandboxes {
		if s := build(opts); s.Available() {
			return s
		}
	}
	return NoopSandbox{}
}

// NoopSandbox runs the command with plain bash.
type NoopSandbox struct{}

func (NoopSandbox) Wrap(command, _ string) (string, []string, error) {
	return "bash", []string{"-c", command}, nil
}

func (NoopSandbox) Available() bool { return true }
func (NoopSandbox) Name() string    { return "none" }

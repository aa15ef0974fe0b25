//go:build linux

package tools

import "os/exec"

// BwrapSandbox runs commands under bubblewrap: system paths read-only,
// a private /tmp and pid namespace, no network unless allowed, and the
// session directory writable.
type BwrapSandbox struct {
	Options SandboxOptions
}

func (b BwrapSandbox) Wrap(command, dir string) (string, []string, error) {
	args := []string{
		"--unshare-pid",
		"--die-with-parent",
		"--ro-bind", "/usr", "/usr",
		"--ro-bind", "/bin", "/bin",
		"--ro-bind", "/lib", "/lib",
		"--ro-bind", "/etc", "/etc",
		"--symlink", "usr/lib64", "/lib64",
		"--proc", "/proc",
		"--dev", "/dev",
		"--tmpfs", "/tmp",
	}
	if !b.Options.AllowNetwork {
		args = append(args, "--unshare-net")
	}
	for _, p := range b.Options.Writable {
		args = append(args, "--bind-try", p, p)
	}
	args = append(args,
		"--bind", dir, dir,
		"--chdir", dir,
		"bash", "-c", command,
	)
	return "bwrap", args, nil
}

func (BwrapSandbox) Available() bool {
	_, err := exec.LookPath("bwrap")
	return err == nil
}

func (BwrapSandbox) Name() string { return "bwrap" }

func init() {
	registerPlatformSandbox(func(opts SandboxOptions) Sandbox {
		return BwrapSandbox{Options: opts}
	})
}

//go:build darwin

package tools

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// SeatbeltSandbox runs commands under sandbox-exec with a profile that
// allows writes only to the session directory, temp dirs and any extra
// writable paths.
type SeatbeltSandbox struct {
	Options SandboxOptions
}

func (s SeatbeltSandbox) Wrap(command, dir string) (string, []string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", nil, fmt.Errorf("sandbox needs a home directory: %w", err)
	}
	return "sandbox-exec", []string{
		"-D", "HOME=" + home,
		"-p", seatbeltProfile(dir, s.Options),
		"bash", "-c", command,
	}, nil
}

func (SeatbeltSandbox) Available() bool {
	_, err := exec.LookPath("sandbox-exec")
	return err == nil
}

func (SeatbeltSandbox) Name() string { return "seatbelt" }

const seatbeltBase = `(version 1)
(deny default)
(allow process-exec)
(allow process-fork)
(allow sysctl-read)
(allow signal)
(allow mach-lookup)
(allow file-read*
  (subpath "/usr")
  (subpath "/bin")
  (subpath "/sbin")
  (subpath "/Library")
  (subpath "/System")
  (subpath "/private/var")
  (subpath "/private/etc")
  (subpath "/dev")
  (subpath "/opt/homebrew")
  (literal "/etc")
  (literal "/tmp")
  (literal "/var"))
(allow file-read* file-write* (subpath "/tmp") (subpath "/private/tmp"))
(deny file-read* (subpath (string-append (param "HOME") "/.ssh")))
(deny file-read* (subpath (string-append (param "HOME") "/.aws")))
(deny file-read* (subpath (string-append (param "HOME") "/.gnupg")))
`

func seatbeltProfile(dir string, opts SandboxOptions) string {
	var b strings.Builder
	b.WriteString(seatbeltBase)
	if opts.AllowNetwork {
		b.WriteString("(allow network*)\n(allow system-socket)\n")
	}
	for _, p := range append([]string{dir}, opts.Writable...) {
		fmt.Fprintf(&b, "(allow file-read* file-write* (subpath %q))\n", p)
	}
	return b.String()
}

func init() {
	registerPlatformSandbox(func(opts SandboxOptions) Sandbox {
		return SeatbeltSandbox{Options: opts}
	})
}

//go:build linux

package tools

import (
	"slices"
	"testing"
)

func TestBwrapSandbox_Wrap(t *testing.T) {
	tests := []struct {
		name       string
		opts       SandboxOptions
		wantNoNet  bool
		wantExtras int
	}{
		{name: "default", wantNoNet: true},
		{name: "network", opts: SandboxOptions{AllowNetwork: true}},
		{name: "writable", opts: SandboxOptions{Writable: []string{"/home/u/.cache/go-build", "/home/u/go"}}, wantNoNet: true, wantExtras: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exe, args, err := BwrapSandbox{Options: tt.opts}.Wrap("go test ./...", "/work/project")
			if err != nil {
				t.Fatalf("Wrap: %v", err)
			}
			if exe != "bwrap" {
				t.Errorf("exe = %q", exe)
			}
			if got := slices.Contains(args, "--unshare-net"); got != tt.wantNoNet {
				t.Errorf("--unshare-net present = %v, want %v", got, tt.wantNoNet)
			}
			extras := 0
			for _, a := range args {
				if a == "--bind-try" {
					extras++
				}
			}
			if extras != tt.wantExtras {
				t.Errorf("extra binds = %d, want %d", extras, tt.wantExtras)
			}
			n := len(args)
			if n < 3 || args[n-3] != "bash" || args[n-2] != "-c" || args[n-1] != "go test ./..." {
				t.Errorf("command should come last: %v", args)
			}
			if i := slices.Index(args, "--chdir"); i < 0 || args[i+1] != "/work/project" {
				t.Errorf("missing --chdir to the session dir: %v", args)
			}
		})
	}
}

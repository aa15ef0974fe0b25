package tools

import (
	"fmt"
	"regexp"
	"strings"
)

// commandRule blocks commands matched by any of its substrings or patterns.
type commandRule struct {
	reason     string
	substrings []string // matched against the lowercased command
	patterns   []*regexp.Regexp
}

var commandRules = []commandRule{
	{
		reason: "destructive system command",
		substrings: []string{
			"rm -rf /", "rm -rf /*", "rm -rf ~", "mkfs.", "dd if=/dev/",
			":(){:|:&};:", "> /dev/sd", "chmod -r 777 /", "shutdown", "reboot",
			"init 0", "init 6", "find / -delete", "find / -exec rm",
		},
	},
	{
		reason:   "raw network socket",
		patterns: []*regexp.Regexp{regexp.MustCompile(`/dev/(tcp|udp)/`)},
	},
	{
		reason: "encoded payload piped to a shell",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`base64\s+(-d|--decode)`),
			regexp.MustCompile(`xxd\s+-r.*\|\s*(bash|sh|zsh|exec)`),
			regexp.MustCompile(`printf\s+.*\\x[0-9a-fA-F].*\|\s*(bash|sh|zsh|exec)`),
			regexp.MustCompile(`(curl|wget)\s+.*\|\s*(sudo\s+)?(bash|sh|zsh|exec)`),
		},
	},
	{
		reason: "interpreter escape",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`python[23]?\s+-c\s+.*__(import|eval|exec)__`),
			regexp.MustCompile(`perl\s+-e\s+.*system\s*\(`),
		},
	},
	{
		reason: "obfuscated command",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(r\\m|s\\hutdown|re\\boot|mk\\fs)`),
			regexp.MustCompile(`\$'\\x[0-9a-fA-F]{2}`),
			regexp.MustCompile(`eval\s+.*\$`),
			regexp.MustCompile(`\$\(.*\brm\b.*-rf\b`),
			regexp.MustCompile("`.*\\brm\\b.*-rf\\b"),
		},
	},
}

// CheckCommandSafety returns a denial error when command matches a rule.
func CheckCommandSafety(command string) error {
	lower := strings.ToLower(strings.TrimSpace(command))
	for _, rule := range commandRules {
		for _, s := range rule.substrings {
			if strings.Contains(lower, s) {
				return blocked(rule.reason, s)
			}
		}
		for _, re := range rule.patterns {
			if re.MatchString(command) {
				return blocked(rule.reason, re.String())
			}
		}
	}
	return nil
}

func blocked(reason, match string) *ToolError {
	return &ToolError{
		Kind:    KindDenied,
		Message: fmt.Sprintf("command blocked (%s): matches %q", reason, match),
	}
}

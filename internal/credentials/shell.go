// SPDX-License-Identifier: GPL-3.0-or-later

package credentials

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// unixShellCandidates lists the shell configuration files probed, in
// order, for ANTHROPIC_BASE_URL/ANTHROPIC_AUTH_TOKEN assignments on
// zsh/bash hosts. The first file that yields both variables wins.
var unixShellCandidates = []string{
	".zshrc",
	".zprofile",
	".bashrc",
	".bash_profile",
	".profile",
}

// windowsShellCandidates lists the PowerShell profile paths (relative to
// the user's home directory) probed on Windows, covering both PowerShell
// 7+ ($PSHome under Documents/PowerShell) and Windows PowerShell 5.1
// ($PSHome under Documents/WindowsPowerShell).
var windowsShellCandidates = []string{
	filepath.Join("Documents", "PowerShell", "Microsoft.PowerShell_profile.ps1"),
	filepath.Join("Documents", "WindowsPowerShell", "Microsoft.PowerShell_profile.ps1"),
}

func shellCandidates() []string {
	if runtime.GOOS == "windows" {
		return windowsShellCandidates
	}
	return unixShellCandidates
}

func (r *Resolver) fromShell() (Credentials, bool) {
	home, ok := r.homeDir()
	if !ok {
		return Credentials{}, false
	}
	for _, name := range shellCandidates() {
		path := filepath.Join(home, name)
		vars, err := parseShellAssignments(path)
		if err != nil {
			continue
		}
		baseURL, hasBase := vars["ANTHROPIC_BASE_URL"]
		token, hasToken := vars["ANTHROPIC_AUTH_TOKEN"]
		if hasBase && hasToken && baseURL != "" && token != "" {
			return Credentials{BaseURL: baseURL, AuthToken: token, Source: SourceShell}, true
		}
	}
	return Credentials{}, false
}

// parseShellAssignments tolerates the common forms seen in hand-edited
// shell profiles and PowerShell scripts:
//
//	export NAME=value
//	NAME=value
//	NAME="value"   # inline comment
//	NAME='value'
//	"NAME=value"   # one element of a bash array or function body
//	$env:NAME = "value"
//
// It does not execute the shell file; it is a line-oriented tokenizer,
// never a shell interpreter, matching spec.md §4.1's requirement to
// "parse both plain export NAME=value assignments and value lists inside
// function or array definitions" (covering bash/zsh) and "PowerShell
// equivalents" without ever invoking a subshell or the PowerShell engine.
func parseShellAssignments(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vars := make(map[string]string)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "export ")
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, ok := splitAssignment(line)
		if !ok {
			continue
		}
		if name == "ANTHROPIC_BASE_URL" || name == "ANTHROPIC_AUTH_TOKEN" {
			vars[name] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return vars, nil
}

// splitAssignment splits "NAME=value" into name and an unquoted,
// comment-stripped value. It returns ok=false for lines that are not
// simple assignments (control-flow keywords, array/function bodies that
// don't themselves carry "NAME=value" on one line).
//
// It recognizes a "NAME=value" line quoted whole as a single array
// element (stripArrayElementQuotes) and the PowerShell "$env:NAME =
// value" form (splitPowerShellAssignment) in addition to the plain
// bash/zsh form.
func splitAssignment(line string) (name, value string, ok bool) {
	if name, value, ok := splitPowerShellAssignment(line); ok {
		return name, value, true
	}
	line = stripArrayElementQuotes(line)
	eq := strings.Index(line, "=")
	if eq <= 0 {
		return "", "", false
	}
	name = strings.TrimSpace(line[:eq])
	if !isValidEnvName(name) {
		return "", "", false
	}
	rest := strings.TrimSpace(line[eq+1:])
	return name, unquoteShellValue(rest), true
}

// stripArrayElementQuotes unwraps a line that is itself a single quoted
// "NAME=value" string, the form produced when credentials are set inside
// a bash array or a function body, e.g.:
//
//	env_vars=(
//	  "ANTHROPIC_BASE_URL=https://api.example.com"
//	  "ANTHROPIC_AUTH_TOKEN=sk-ant-..."
//	)
//
// Lines that are not wholly wrapped in one matching quote pair pass
// through unchanged.
func stripArrayElementQuotes(line string) string {
	trimmed := strings.TrimSuffix(strings.TrimSpace(line), ",")
	if len(trimmed) < 2 {
		return line
	}
	quote := trimmed[0]
	if (quote != '"' && quote != '\'') || trimmed[len(trimmed)-1] != quote {
		return line
	}
	return trimmed[1 : len(trimmed)-1]
}

// splitPowerShellAssignment recognizes PowerShell's environment-variable
// assignment syntax, $env:NAME = "value", the equivalent of bash's
// export NAME=value in a PowerShell profile.
func splitPowerShellAssignment(line string) (name, value string, ok bool) {
	const prefix = "$env:"
	if !strings.HasPrefix(line, prefix) {
		return "", "", false
	}
	rest := line[len(prefix):]
	eq := strings.Index(rest, "=")
	if eq <= 0 {
		return "", "", false
	}
	name = strings.TrimSpace(rest[:eq])
	if !isValidEnvName(name) {
		return "", "", false
	}
	return name, unquoteShellValue(strings.TrimSpace(rest[eq+1:])), true
}

func isValidEnvName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// unquoteShellValue strips a single layer of matching quotes, if present,
// and then any trailing "# comment" text that follows the (possibly
// quoted) value.
func unquoteShellValue(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 1 && (s[0] == '"' || s[0] == '\'') {
		quote := s[0]
		if end := strings.IndexByte(s[1:], quote); end >= 0 {
			return s[1 : 1+end]
		}
	}
	// Unquoted value: strip a trailing inline comment.
	if idx := strings.Index(s, " #"); idx >= 0 {
		s = strings.TrimSpace(s[:idx])
	}
	return s
}

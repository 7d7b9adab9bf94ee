package domainlist

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/haukened/siteguard/internal/guard/common/log"
)

// Format is the layout of a domain list.
type Format uint8

const (
	// FormatAuto picks hosts or plain per line by whether it starts with an IP.
	FormatAuto Format = iota
	FormatHosts
	FormatPlain
)

func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatHosts:
		return "hosts"
	case FormatPlain:
		return "plain"
	default:
		return fmt.Sprintf("Format(%d)", f)
	}
}

// ParseFormat accepts "auto", "hosts" or "plain"; empty means auto.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "hosts":
		return FormatHosts, nil
	case "plain":
		return FormatPlain, nil
	default:
		return 0, fmt.Errorf("unsupported list format: %q", s)
	}
}

// Parse reads r and returns its domains, normalized, without duplicates, in
// first-seen order. Invalid entries are skipped and logged at debug level.
//
// Hosts lines are "<ip> <name> [<name>...]"; names containing '*' or starting
// with '.' are invalid there. Plain lines hold one domain each and may carry
// a leading "*." or ".". Both formats allow whole-line and inline '#' comments.
func Parse(r io.Reader, format Format, source string, logger log.Logger) ([]string, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	scanner := bufio.NewScanner(r)
	seen := make(map[string]struct{})
	out := make([]string, 0, 256)

	emit := func(lineNum int, raw string) {
		name := normalizeEntry(raw)
		if !isValidFQDN(name) {
			logger.Debug(map[string]any{"source": source, "line": lineNum, "raw": raw}, "skip_invalid_fqdn")
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line, ok := cleanLine(scanner.Text())
		if !ok {
			continue
		}
		fields := strings.Fields(line)

		hosts := format == FormatHosts || (format == FormatAuto && net.ParseIP(fields[0]) != nil)
		if !hosts {
			emit(lineNum, fields[0])
			continue
		}
		if len(fields) < 2 {
			logger.Debug(map[string]any{"source": source, "line": lineNum}, "hosts_no_hostnames")
			continue
		}
		for _, raw := range fields[1:] {
			if strings.HasPrefix(raw, ".") || strings.Contains(raw, "*") {
				logger.Debug(map[string]any{"source": source, "line": lineNum, "raw": raw}, "hosts_skip_invalid_token")
				continue
			}
			emit(lineNum, raw)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}
	logger.Debug(map[string]any{"source": source, "format": format.String(), "count": len(out)}, "domain list parsed")
	return out, nil
}

// Assign maps every domain to category on top of existing, returning a new
// mapping and how many entries were added or changed.
func Assign(existing map[string]string, domains []string, category string) (map[string]string, int) {
	out := make(map[string]string, len(existing)+len(domains))
	for k, v := range existing {
		out[k] = v
	}
	changed := 0
	for _, d := range domains {
		if out[d] != category {
			out[d] = category
			changed++
		}
	}
	return out, changed
}

package enforcement

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/haukened/siteguard/internal/guard/common/fsutil"
	"github.com/haukened/siteguard/internal/guard/common/log"
	"github.com/haukened/siteguard/internal/guard/domain"
)

// FileEnforcer writes the directive set as a JSON ruleset file. Each Replace
// rewrites the whole file atomically, so readers never see a partial set.
type FileEnforcer struct {
	path   string
	logger log.Logger

	mu sync.Mutex
}

// NewFileEnforcer returns an Enforcer writing to path.
func NewFileEnforcer(path string, logger log.Logger) *FileEnforcer {
	if logger == nil {
		logger = log.Component(nil, "enforcement")
	}
	return &FileEnforcer{path: path, logger: logger}
}

// Path returns the ruleset file location.
func (f *FileEnforcer) Path() string { return f.path }

func (f *FileEnforcer) Replace(ctx context.Context, directives []domain.Directive) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, d := range directives {
		if !d.Allow && strings.TrimSpace(d.RedirectTarget) == "" {
			return fmt.Errorf("%w: directive %d (%s)", ErrInvalidRedirect, d.ID, d.Pattern)
		}
	}

	data, err := json.MarshalIndent(ToRules(directives), "", "  ")
	if err != nil {
		return fmt.Errorf("encode ruleset: %w", err)
	}
	data = append(data, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := fsutil.WriteFileAtomic(f.path, data, 0o644); err != nil {
		return fmt.Errorf("write ruleset %s: %w", f.path, err)
	}
	f.logger.Info(map[string]any{"path": f.path, "rules": len(directives)}, "ruleset replaced")
	return nil
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

var _ Enforcer = (*FileEnforcer)(nil)

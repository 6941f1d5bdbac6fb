package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/config"
)

// FilePersister rewrites the pop-up decisions of a rules file, keeping
// its other sections. The format follows the file extension.
type FilePersister struct {
	path string
	mu   sync.Mutex
}

// NewFilePersister persists to path
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Persist implements Persister
func (p *FilePersister) Persist(ctx context.Context, decisions map[string]bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	rules := &config.Rules{}
	if _, err := os.Stat(p.path); err == nil {
		existing, err := config.LoadRules(p.path)
		if err != nil {
			return err
		}
		rules = existing
	}
	rules.PopupDecisions = decisions

	data, err := config.EncodeRules(filepath.Ext(p.path), rules)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write rules: %w", err)
	}
	return os.Rename(tmp, p.path)
}

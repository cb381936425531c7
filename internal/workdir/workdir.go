// Package workdir lays out the on-disk working tree for a run. Each ensemble
// member owns a subtree, with one directory per iteration and phase:
//
//	{root}/mem_{member}/{iteration}/{phase}
package workdir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kassonlab/brer-md/internal/model"
)

// Layout resolves and creates phase directories under a fixed root.
type Layout struct {
	root string
}

func New(root string) (*Layout, error) {
	if root == "" {
		return nil, fmt.Errorf("working directory root must not be empty")
	}
	return &Layout{root: root}, nil
}

func (l *Layout) Root() string {
	return l.root
}

// MemberDir returns the subtree owned by one ensemble member.
func (l *Layout) MemberDir(member int) string {
	return filepath.Join(l.root, fmt.Sprintf("mem_%d", member))
}

// PhaseDir returns the directory for one phase of one iteration.
func (l *Layout) PhaseDir(member, iteration int, phase model.Phase) string {
	return filepath.Join(l.MemberDir(member), fmt.Sprintf("%d", iteration), string(phase))
}

// EnsurePhaseDir creates the phase directory, parents included, and returns
// its path.
func (l *Layout) EnsurePhaseDir(member, iteration int, phase model.Phase) (string, error) {
	if member < 0 {
		return "", fmt.Errorf("member index must not be negative, got %d", member)
	}
	if iteration < 0 {
		return "", fmt.Errorf("iteration must not be negative, got %d", iteration)
	}
	if !phase.Valid() {
		return "", fmt.Errorf("unknown phase %q", phase)
	}
	dir := l.PhaseDir(member, iteration, phase)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create phase directory: %w", err)
	}
	return dir, nil
}

// StatePath returns where an ensemble member keeps its state file.
func (l *Layout) StatePath(member int) string {
	return filepath.Join(l.MemberDir(member), "state.json")
}

// PairDataPath returns where an ensemble member keeps its pair definitions.
func (l *Layout) PairDataPath(member int) string {
	return filepath.Join(l.MemberDir(member), "pair_data.json")
}

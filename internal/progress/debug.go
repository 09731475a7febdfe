//go:build !release

package progress

import (
	"fmt"

	"github.com/mcoot/wordsync/internal/model"
)

const assertionsEnabled = true

// assertTarget panics when a write is issued for a player other than the one
// signed in
func assertTarget(target, current model.PlayerID) {
	if target != current {
		panic(fmt.Sprintf("progress: write for %q issued while %q is signed in", target, current))
	}
}

package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/rabbitkind/internal/ui/tui"
	"github.com/imamik/rabbitkind/internal/util/prerequisites"
)

// checkAllPrereqs checks required and optional tools (for testing injection).
var checkAllPrereqs = prerequisites.CheckAll

// Doctor reports which client tools are installed.
func Doctor(ctx context.Context) error {
	results := checkAllPrereqs(ctx)
	if _, err := fmt.Fprint(stdout, tui.RenderDoctor(results)); err != nil {
		return err
	}
	return results.Error()
}

// =============================================================================
// Concourse - Main Entry Point
// =============================================================================
//
// USAGE:
//   concourse balance <book>    - Print the balance of every participant
//   concourse settle <book>     - Work out who pays whom
//   concourse validate <book>   - Report every problem in a book
//   concourse process           - Settle every book in the input directory
//   concourse project ...       - Edit a project file
//   concourse history           - List recorded runs
//   concourse version           - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : ledger, balance and settlement core, book formats,
//                  reports, run history and the processing pipeline
//   - pkg/       : file management shared by the commands
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/concourse/cmd"
)

func main() {
	cmd.Execute()
}

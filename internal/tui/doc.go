/*
Package tui implements the live display of a running experiment.

# Architecture

The display follows the Bubble Tea framework's Model-Update-View pattern:
  - Model: the last captured Frame plus display state (help overlay, status line)
  - Update: polls the experiment every RefreshInterval and routes key presses
    through the keybinds registry to the command dispatcher
  - View: renders the per-call table, the TOTAL row, run time, error types
    and, for bounded runs, a progress bar

The table is not redrawn until the first call has been recorded.

# Plain Text

RenderTable renders the same table without styling. Screen uses it to
answer debug-dump, and RunHeadless writes it periodically when no terminal
is attached.
*/
package tui

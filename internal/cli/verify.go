package cli

import (
	"fmt"

	"github.com/connvault/connvault/internal/output"
)

// VerifyListCmd lists verification status per connection
type VerifyListCmd struct{}

// Run executes the list command
func (cmd *VerifyListCmd) Run(bp *BackendProvider, fp *FormatterProvider) error {
	ledger, _, err := bp.Ledger()
	if err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Failed to load verification ledger: %v", err),
			ExitCode: output.ExitGeneral,
		}
	}

	type verifyItem struct {
		ID       string
		Verified string
		Failures string
		Error    string
	}

	var items []verifyItem
	for _, id := range ledger.VerifiedConnections() {
		items = append(items, verifyItem{ID: id.String(), Verified: "yes"})
	}
	for _, id := range ledger.FailedConnections() {
		status := ledger.GetStatus(id)
		items = append(items, verifyItem{
			ID:       id.String(),
			Verified: "no",
			Failures: fmt.Sprintf("%d", status.FailureCount),
			Error:    status.LastError,
		})
	}

	columns := []output.Column{
		{Name: "Connection", Key: "ID"},
		{Name: "Verified", Key: "Verified"},
		{Name: "Failures", Key: "Failures"},
		{Name: "Last Error", Key: "Error", Width: 40},
	}
	return fp.Formatter.PrintList(items, columns)
}

// VerifyClearCmd clears the verification ledger
type VerifyClearCmd struct{}

// Run executes the clear command
func (cmd *VerifyClearCmd) Run(bp *BackendProvider, fp *FormatterProvider, globals *Globals) error {
	if err := confirm("Clear the entire verification ledger?", globals); err != nil {
		return err
	}

	ledger, store, err := bp.Ledger()
	if err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Failed to load verification ledger: %v", err),
			ExitCode: output.ExitGeneral,
		}
	}

	ledger.Clear()
	if err := store.Save(ledger); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Failed to save verification ledger: %v", err),
			ExitCode: output.ExitGeneral,
		}
	}
	return nil
}

// Package client is the Go SDK for the ledgerd HTTP API.
//
// Reads need no credentials:
//
//	c, err := client.New("http://localhost:8080")
//	report, err := c.Audit(ctx)
//	if !report.Passed {
//	    log.Printf("broken rows %v, mismatched rows %v",
//	        report.Report.BrokenRows, report.Report.MismatchedRows)
//	}
//
// Writes are attributed to the subject of an actor token:
//
//	c, err := client.New("http://localhost:8080", client.WithBearerToken(token))
//	decl, err := c.Declare(ctx, client.DeclareRequest{
//	    Level:         "KNOWN_KNOWN",
//	    Justification: "reconciled against the bank statement",
//	    Actor:         "User",
//	})
//	link, pending, err := c.Link(ctx, decl.ConfidenceID, client.EntryRequest{
//	    Actor:     "User",
//	    EventType: "REPORT",
//	    Text:      "Q3 revenue was 4.2M",
//	})
//
// Errors returned for non-2xx responses are *APIError values and match
// ErrNotFound, ErrConflict, ErrUnauthorized, ErrForbidden and ErrUnavailable
// with errors.Is.
package client

package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/kassenwart/kassenwart/internal/dues"
)

// MembershipDefect reports a membership whose schedule could not be
// generated because of inconsistent data. The member's other memberships
// are still reconciled.
type MembershipDefect struct {
	MembershipID snowflake.ID
	Err          error
}

// Result summarizes one reconciliation run. All slices are ordered by
// (date, amount) so identical inputs yield identical sequences.
type Result struct {
	MemberID snowflake.ID

	// Posted are the dues that were missing from the ledger and got a new
	// posting this run.
	Posted []dues.Due
	// Reversed are postings inside the membership windows that no longer
	// match any scheduled due.
	Reversed []dues.Due
	// Strays are postings outside every membership window that were
	// reversed.
	Strays []dues.Due

	Defects []MembershipDefect
}

// Writes is the number of ledger mutations the run performed.
func (r Result) Writes() int {
	return len(r.Posted) + len(r.Reversed) + len(r.Strays)
}

type Service interface {
	// Reconcile idempotently brings the member's due postings in line
	// with the schedule derived from their memberships. All corrective
	// postings and reversals of one call are applied atomically.
	Reconcile(ctx context.Context, memberID snowflake.ID) (Result, error)
}

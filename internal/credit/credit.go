// Package credit implements the pre-flight/post-flight credit accounting
// capability spec.md §6 names: hasEnoughCredits before any node runs,
// recordUsage once at finalize. Billing semantics beyond that check-and-
// charge policy are explicitly out of scope (spec.md §1, §9).
package credit

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Service is the abstract capability the Execution Driver depends on.
type Service interface {
	HasEnoughCredits(ctx context.Context, organizationID string, estimate float64) (bool, error)
	RecordUsage(ctx context.Context, organizationID string, total float64) error
}

// Account mirrors mbflow's balance-bearing Transaction model, trimmed to
// what the execution core's check-and-charge policy needs: a running
// balance and an overage allowance.
type Account struct {
	OrganizationID string
	Balance        float64
	OverageLimit   float64
}

// InMemoryService is a process-local Service: one Account per
// organization, charged synchronously under a mutex. A production
// deployment would back this with the ledger the `transaction.go`-style
// Transaction model describes; this core only needs the two abstract
// calls.
type InMemoryService struct {
	mu       sync.Mutex
	accounts map[string]*Account
}

// NewInMemoryService seeds one account per entry in accounts.
func NewInMemoryService(accounts ...Account) *InMemoryService {
	s := &InMemoryService{accounts: make(map[string]*Account, len(accounts))}
	for i := range accounts {
		a := accounts[i]
		s.accounts[a.OrganizationID] = &a
	}
	return s
}

func (s *InMemoryService) account(organizationID string) *Account {
	a, ok := s.accounts[organizationID]
	if !ok {
		a = &Account{OrganizationID: organizationID}
		s.accounts[organizationID] = a
	}
	return a
}

// HasEnoughCredits implements Service: available balance plus overage
// allowance must cover estimate.
func (s *InMemoryService) HasEnoughCredits(_ context.Context, organizationID string, estimate float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.account(organizationID)
	return a.Balance+a.OverageLimit >= estimate, nil
}

// RecordUsage implements Service: deducts total actual usage from the
// balance. The deduction always stands; when it leaves the balance below
// the negative overage limit, the call also returns an error.
func (s *InMemoryService) RecordUsage(_ context.Context, organizationID string, total float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.account(organizationID)
	a.Balance -= total
	if a.Balance < -a.OverageLimit {
		return fmt.Errorf("credit: organization %s exceeded overage limit recording usage %v (transaction %s)", organizationID, total, uuid.NewString())
	}
	return nil
}

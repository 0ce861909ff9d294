package portal

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/MCIKIDS/mci.kids/pkg/feed"
	"github.com/MCIKIDS/mci.kids/pkg/models"
)

// ParseOfferingKind accepts in/out and the Portuguese entrada/saida labels.
func ParseOfferingKind(s string) (models.OfferingKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in", "entrada":
		return models.OfferingIn, true
	case "out", "saida", "saída":
		return models.OfferingOut, true
	}
	return "", false
}

// ParseAmount reads a positive decimal amount; a comma decimal separator is accepted.
func ParseAmount(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, fmt.Errorf("%w: amount %q must be a positive number", feed.ErrInvalidInput, raw)
	}
	return v, nil
}

// RecordOffering prepends a ledger entry.
func (s *State) RecordOffering(viewer models.Viewer, kind, amount, note string) (models.Offering, error) {
	var out models.Offering
	err := s.mutate("offering_record", func() error {
		if err := requireResolved(viewer); err != nil {
			return err
		}
		k, ok := ParseOfferingKind(kind)
		if !ok {
			return fmt.Errorf("%w: unknown offering kind %q", feed.ErrInvalidInput, kind)
		}
		v, err := ParseAmount(amount)
		if err != nil {
			return err
		}
		out = models.Offering{
			ID:         s.newID(),
			Kind:       k,
			Amount:     v,
			Note:       strings.TrimSpace(note),
			RecordedBy: strings.TrimSpace(viewer.Name),
			CreatedAt:  s.now().UTC(),
		}
		s.offerings = append([]models.Offering{out}, s.offerings...)
		return nil
	})
	return out, err
}

func (s *State) Offerings() []models.Offering {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Offering{}, s.offerings...)
}

// Ledger totals the entries recorded since the last month closure.
func (s *State) Ledger() models.LedgerTotals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledgerLocked()
}

func (s *State) ledgerLocked() models.LedgerTotals {
	t := models.LedgerTotals{Accumulated: s.accumulatedBalance}
	for _, o := range s.offerings {
		if s.lastMonthClosure != nil && !o.CreatedAt.After(*s.lastMonthClosure) {
			continue
		}
		switch o.Kind {
		case models.OfferingIn:
			t.In += o.Amount
		case models.OfferingOut:
			t.Out += o.Amount
		}
	}
	t.Balance = t.In - t.Out
	return t
}

// CloseMonth carries the open balance into the accumulated balance and
// starts a new period.
func (s *State) CloseMonth(viewer models.Viewer) (models.LedgerTotals, error) {
	var out models.LedgerTotals
	err := s.mutate("ledger_close_month", func() error {
		if err := requireCoordinator(viewer); err != nil {
			return err
		}
		open := s.ledgerLocked()
		s.accumulatedBalance += open.Balance
		now := s.now().UTC()
		s.lastMonthClosure = &now
		out = s.ledgerLocked()
		return nil
	})
	return out, err
}

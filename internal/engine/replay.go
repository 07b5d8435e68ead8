package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/fluxora/internal/domain"
)

// Replay folds a notification log into the stream records it describes.
//
// Replay uses the same Transition table and completion rule as the live
// engine but performs no transfers, authorization or storage, so it is a
// pure function of the events. Events must be in publication order.
//
// Returns an error if the log is not a legal history: an event for an
// unknown stream, a duplicate creation, an illegal transition, or a
// withdrawal that would exceed the deposit.
func Replay(events []domain.Event) (map[domain.StreamID]domain.Stream, error) {
	streams := make(map[domain.StreamID]domain.Stream)
	for i, ev := range events {
		if err := apply(streams, ev); err != nil {
			return nil, fmt.Errorf("replay event %d (%s stream %d): %w", i, ev.Topic, ev.StreamID, err)
		}
	}
	return streams, nil
}

func apply(streams map[domain.StreamID]domain.Stream, ev domain.Event) error {
	if ev.Topic == domain.TopicCreated {
		if _, dup := streams[ev.StreamID]; dup {
			return fmt.Errorf("stream created twice")
		}
		if ev.Stream == nil {
			return fmt.Errorf("created event has no stream record")
		}
		streams[ev.StreamID] = *ev.Stream
		return nil
	}

	s, ok := streams[ev.StreamID]
	if !ok {
		return domain.ErrStreamNotFound
	}

	var op Op
	switch ev.Topic {
	case domain.TopicPaused:
		op = OpPause
	case domain.TopicResumed:
		op = OpResume
	case domain.TopicCancelled:
		op = OpCancel
	case domain.TopicWithdrew:
		op = OpWithdraw
	default:
		return fmt.Errorf("unknown topic %q", ev.Topic)
	}

	next, err := Transition(s.Status, op)
	if err != nil {
		return err
	}
	s.Status = next
	if op == OpCancel {
		s.CancelledAt = ev.Time
	}

	if op == OpWithdraw {
		withdrawn, ok := s.Withdrawn.CheckedAdd(ev.Amount)
		if !ok || withdrawn.Cmp(s.Deposit) > 0 {
			return fmt.Errorf("withdrawal of %s exceeds deposit %s", ev.Amount, s.Deposit)
		}
		s.Withdrawn = withdrawn
		if completes(s, ev.Time) {
			s.Status = domain.StatusCompleted
		}
	}
	streams[ev.StreamID] = s
	return nil
}

// StreamLister is the read side VerifyReplay needs from a registry.
type StreamLister interface {
	ListStreams(ctx context.Context) ([]domain.Stream, error)
}

// Mismatch describes one stream whose stored record differs from the
// replayed one. Missing on either side leaves that side nil.
type Mismatch struct {
	StreamID domain.StreamID
	Stored   *domain.Stream
	Replayed *domain.Stream
}

// VerifyReplay replays events and compares the result with every stream in
// the registry by content digest. An empty result means the log reproduces
// the registry exactly.
func VerifyReplay(ctx context.Context, reg StreamLister, events []domain.Event) ([]Mismatch, error) {
	replayed, err := Replay(events)
	if err != nil {
		return nil, err
	}
	stored, err := reg.ListStreams(ctx)
	if err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}

	var mismatches []Mismatch
	seen := make(map[domain.StreamID]bool, len(stored))
	for _, s := range stored {
		seen[s.ID] = true
		r, ok := replayed[s.ID]
		if !ok {
			mismatches = append(mismatches, Mismatch{StreamID: s.ID, Stored: &s})
			continue
		}
		same, err := sameRecord(s, r)
		if err != nil {
			return nil, err
		}
		if !same {
			mismatches = append(mismatches, Mismatch{StreamID: s.ID, Stored: &s, Replayed: &r})
		}
	}
	for id, r := range replayed {
		if !seen[id] {
			mismatches = append(mismatches, Mismatch{StreamID: id, Replayed: &r})
		}
	}
	slices.SortFunc(mismatches, func(a, b Mismatch) int {
		switch {
		case a.StreamID < b.StreamID:
			return -1
		case a.StreamID > b.StreamID:
			return 1
		}
		return 0
	})
	return mismatches, nil
}

func sameRecord(a, b domain.Stream) (bool, error) {
	da, err := domain.StreamDigest(a)
	if err != nil {
		return false, err
	}
	db, err := domain.StreamDigest(b)
	if err != nil {
		return false, err
	}
	return da == db, nil
}

// README: Concurrency tests for driver binding and cancellation (run with -race).
package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"leafline/internal/types"
)

func TestConcurrentAcceptSameOrder(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	o := mustCreateOrder(t, svc, "c_multi_accept")
	advanceToReady(t, svc, o.ID)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		driverID := types.ID(fmt.Sprintf("d%d", i))
		wg.Add(1)
		go func(did types.ID) {
			defer wg.Done()
			<-start
			_, err := svc.Accept(ctx, o.ID, did)
			errs <- err
		}(driverID)
	}

	close(start)
	wg.Wait()
	close(errs)

	success, lost := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrAlreadyAssigned) || errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalidTransition):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 winner, got %d (lost=%d)", success, lost)
	}

	got, err := svc.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusAccepted {
		t.Fatalf("final status = %s", got.Status)
	}
	if got.DriverID == nil || *got.DriverID == "" {
		t.Fatal("expected exactly one driver bound")
	}
}

func TestConcurrentAcceptVsCancel(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	o := mustCreateOrder(t, svc, "c_accept_cancel")
	advanceToReady(t, svc, o.ID)

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := svc.Accept(ctx, o.ID, "d1")
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := svc.Cancel(ctx, CancelCommand{OrderID: o.ID, CustomerID: "c_accept_cancel", Reason: "race"})
		errs <- err
	}()

	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil && !errors.Is(err, ErrConflict) && !errors.Is(err, ErrInvalidTransition) && !errors.Is(err, ErrAlreadyAssigned) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := svc.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// Either outcome is valid; the order must land in exactly one of them.
	if got.Status != StatusAccepted && got.Status != StatusCancelled {
		t.Fatalf("final status = %s", got.Status)
	}
	assertHistoryMatchesStatus(t, svc, o.ID)
}

func advanceToReady(t *testing.T, svc *Service, id types.ID) {
	t.Helper()
	for _, to := range []Status{StatusConfirmed, StatusPreparing, StatusReadyForPickup} {
		if _, err := svc.Transition(context.Background(), TransitionCommand{OrderID: id, To: to, ActorType: "admin"}); err != nil {
			t.Fatalf("advance to %s: %v", to, err)
		}
	}
}

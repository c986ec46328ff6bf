package negotiation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubService struct {
	mu      sync.Mutex
	turns   []TurnRequest
	result  *TurnResult
	err     error
	process func(TurnRequest) (*TurnResult, error)
}

func (s *stubService) ProcessTurn(_ context.Context, req TurnRequest) (*TurnResult, error) {
	s.mu.Lock()
	s.turns = append(s.turns, req)
	s.mu.Unlock()
	if s.process != nil {
		return s.process(req)
	}
	return s.result, s.err
}

func (s *stubService) GetState(context.Context, Key) (*State, error) { return nil, ErrStateNotFound }
func (s *stubService) RecordSellerFact(context.Context, string, string, string) (int, error) {
	return 0, nil
}
func (s *stubService) Stats(context.Context) (StatsSnapshot, error) { return StatsSnapshot{}, nil }
func (s *stubService) EvictIdle(context.Context, time.Time) ([]Key, error) {
	return nil, nil
}

func TestDispatcherRoundTrip(t *testing.T) {
	svc := &stubService{result: &TurnResult{ToBuyer: "hello!"}}
	d := NewDispatcher(svc, NewMemoryQueue(8), nil, WithWorkerCount(1))
	defer d.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := d.ProcessTurn(ctx, TurnRequest{ThreadID: "t1", Message: "prod-1 hi"})
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if res == nil || res.ToBuyer != "hello!" {
		t.Fatalf("result = %+v, want the engine's reply", res)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.turns) != 1 || svc.turns[0].ThreadID != "t1" {
		t.Fatalf("processor saw %+v, want the enqueued turn", svc.turns)
	}
}

func TestDispatcherPropagatesProcessorError(t *testing.T) {
	procErr := errors.New("engine failed")
	svc := &stubService{err: procErr}
	d := NewDispatcher(svc, NewMemoryQueue(8), nil, WithWorkerCount(1))
	defer d.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := d.ProcessTurn(ctx, TurnRequest{ThreadID: "t1", Message: "prod-1 hi"})
	if !errors.Is(err, procErr) {
		t.Fatalf("err = %v, want the processor error", err)
	}
}

func TestDispatcherParallelTurns(t *testing.T) {
	svc := &stubService{process: func(req TurnRequest) (*TurnResult, error) {
		return &TurnResult{ThreadID: req.ThreadID, ToBuyer: "ok"}, nil
	}}
	d := NewDispatcher(svc, NewMemoryQueue(32), nil, WithWorkerCount(4))
	defer d.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := d.ProcessTurn(ctx, TurnRequest{ThreadID: string(rune('a' + i)), Message: "prod-1 hi"})
			if err != nil {
				errs <- err
				return
			}
			if res.ThreadID != string(rune('a'+i)) {
				errs <- errors.New("mismatched result routed to caller")
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestDispatcherShutdownRejectsPending(t *testing.T) {
	block := make(chan struct{})
	svc := &stubService{process: func(req TurnRequest) (*TurnResult, error) {
		<-block
		return &TurnResult{ToBuyer: "late"}, nil
	}}
	d := NewDispatcher(svc, NewMemoryQueue(8), nil, WithWorkerCount(1))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := d.ProcessTurn(ctx, TurnRequest{ThreadID: "t1", Message: "prod-1 hi"})
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	close(block)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	if err := d.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if err := <-done; err != nil && !errors.Is(err, ErrDispatcherClosed) && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("pending caller got %v", err)
	}
}

package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/kevinjam/farmkeeper-sub001/pkg/config"
)

func TestAcquireReturnsSameHandle(t *testing.T) {
	handle := &gorm.DB{}
	var opens int32
	m := NewManager(&config.DBConfig{}, func(*config.DBConfig) (*gorm.DB, error) {
		atomic.AddInt32(&opens, 1)
		return handle, nil
	})

	for i := 0; i < 3; i++ {
		db, err := m.Acquire(context.Background())
		if err != nil {
			t.Fatalf("acquire %d failed: %v", i, err)
		}
		if db != handle {
			t.Fatalf("acquire %d returned a different handle", i)
		}
	}
	if got := atomic.LoadInt32(&opens); got != 1 {
		t.Fatalf("open called %d times, want 1", got)
	}
}

func TestAcquireConcurrentSingleEstablishment(t *testing.T) {
	handle := &gorm.DB{}
	var opens int32
	release := make(chan struct{})
	m := NewManager(&config.DBConfig{}, func(*config.DBConfig) (*gorm.DB, error) {
		atomic.AddInt32(&opens, 1)
		<-release
		return handle, nil
	})

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			db, err := m.Acquire(context.Background())
			if err != nil {
				errs <- err
				return
			}
			if db != handle {
				errs <- errors.New("wrong handle")
			}
		}()
	}

	// Let the callers pile up behind the one in-flight attempt.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("caller failed: %v", err)
	}
	if got := atomic.LoadInt32(&opens); got != 1 {
		t.Fatalf("open called %d times, want 1", got)
	}
}

func TestAcquireRetriesAfterFailure(t *testing.T) {
	handle := &gorm.DB{}
	var opens int32
	m := NewManager(&config.DBConfig{}, func(*config.DBConfig) (*gorm.DB, error) {
		if atomic.AddInt32(&opens, 1) == 1 {
			return nil, errors.New("connection refused")
		}
		return handle, nil
	})

	if _, err := m.Acquire(context.Background()); err == nil {
		t.Fatal("expected first acquire to fail")
	}
	db, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if db != handle {
		t.Fatal("retry returned wrong handle")
	}
	if got := atomic.LoadInt32(&opens); got != 2 {
		t.Fatalf("open called %d times, want 2", got)
	}
}

func TestAcquireWaiterHonorsContext(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	m := NewManager(&config.DBConfig{}, func(*config.DBConfig) (*gorm.DB, error) {
		close(started)
		<-release
		return &gorm.DB{}, nil
	})
	defer close(release)

	go m.Acquire(context.Background()) //nolint:errcheck
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

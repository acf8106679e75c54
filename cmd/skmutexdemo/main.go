// Command skmutexdemo exercises the skmutex package end to end: plain
// lock/unlock, trylock, a condition-variable wait, and a
// transfer/veto-transfer pair, logging each step via zap.
package main

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	skmutex "github.com/dijkstracula/go-skinnymutex"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	skmutex.SetFatalLogger(logger)

	basicLockUnlock(logger)
	contendedLockUnlock(logger)
	tryLockDemo(logger)
	condWaitDemo(logger)
	transferDemo(logger)
}

func basicLockUnlock(logger *zap.Logger) {
	m := skmutex.New()
	m.Lock()
	logger.Info("acquired uncontended lock")
	if err := m.Unlock(); err != nil {
		logger.Fatal("unlock failed", zap.Error(err))
	}
	logger.Info("released uncontended lock")
}

func contendedLockUnlock(logger *zap.Logger) {
	m := skmutex.New()
	m.Lock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Lock()
		logger.Info("second goroutine acquired contended lock")
		_ = m.Unlock()
	}()

	time.Sleep(10 * time.Millisecond)
	logger.Info("first goroutine releasing lock to waiting goroutine")
	_ = m.Unlock()
	wg.Wait()
}

func tryLockDemo(logger *zap.Logger) {
	m := skmutex.New()
	m.Lock()
	if m.TryLock() {
		logger.Fatal("trylock unexpectedly succeeded against a held mutex")
	}
	logger.Info("trylock correctly reported busy")
	_ = m.Unlock()
	if !m.TryLock() {
		logger.Fatal("trylock unexpectedly failed against an unheld mutex")
	}
	logger.Info("trylock acquired an unheld mutex")
	_ = m.Unlock()
}

func condWaitDemo(logger *zap.Logger) {
	m := skmutex.New()
	c := skmutex.NewCond()
	m.Lock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := m.CondWait(c); err != nil {
			logger.Fatal("cond wait failed", zap.Error(err))
		}
		logger.Info("cond wait woke up holding the lock again")
		_ = m.Unlock()
	}()

	time.Sleep(10 * time.Millisecond)
	c.Signal()
	_ = m.Unlock()
	<-done

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	m.Lock()
	if err := m.CondWaitContext(ctx, skmutex.NewCond()); err != nil {
		logger.Info("cond wait context timed out as expected", zap.Error(err))
	}
	_ = m.Unlock()
}

func transferDemo(logger *zap.Logger) {
	a := skmutex.New()
	b := skmutex.New()

	a.Lock()
	b.Lock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("transferring from a to b")
		if err := skmutex.Transfer(a, b); err != nil {
			logger.Info("transfer returned", zap.Error(err))
			return
		}
		logger.Info("transfer completed, now holding b")
		_ = b.Unlock()
	}()

	time.Sleep(10 * time.Millisecond)
	logger.Info("releasing b so the transfer can complete")
	_ = b.Unlock()
	<-done

	a.Lock()
	b.Lock()
	vdone := make(chan struct{})
	go func() {
		defer close(vdone)
		if err := skmutex.Transfer(a, b); err != nil {
			logger.Info("vetoed transfer returned as expected", zap.Error(err))
		}
	}()
	time.Sleep(10 * time.Millisecond)
	if err := b.VetoTransfer(); err != nil {
		logger.Fatal("veto transfer failed", zap.Error(err))
	}
	<-vdone
	_ = a.Unlock()
	_ = b.Unlock()
}

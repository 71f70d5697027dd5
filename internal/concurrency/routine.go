package concurrency

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// SafeGo runs a function in a goroutine with panic recovery.
func SafeGo(fn func(), onPanic func(interface{})) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				slog.Error("Panic recovered", "panic", r, "stack", string(stack))
				if onPanic != nil {
					onPanic(r)
				}
			}
		}()
		fn()
	}()
}

// Group tracks goroutines started through SafeGo so owners can wait for them on shutdown.
type Group struct {
	wg sync.WaitGroup
}

func (g *Group) Go(fn func(), onPanic func(interface{})) {
	g.wg.Add(1)
	SafeGo(func() {
		defer g.wg.Done()
		fn()
	}, onPanic)
}

func (g *Group) Wait() {
	g.wg.Wait()
}

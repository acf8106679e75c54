// Copyright 2020 Nathan Taylor (nbtaylor@gmail.com)
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package skmutex implements a "skinny" mutual exclusion lock: its
// uncontended representation is a single pointer-sized word, with no
// auxiliary allocation at all. Most programs take and release locks far
// more often than they actually contend on them, so paying for a full
// sync.Mutex-sized (or larger) allocation per lock site is wasteful when
// the overwhelming majority of critical sections never see a second
// goroutine show up.
//
// The word holds one of three things:
//
//   - unlocked, uncontended — no one holds the lock;
//   - locked, uncontended — exactly one goroutine holds it, and no other
//     goroutine is waiting for it;
//   - a pointer to a "fat" control block — the lock is, or recently was,
//     contended. The control block carries a conventional sync.Mutex, a
//     sync.Cond, a waiter count and a refcount, and is shared by every
//     goroutine that contends on this Mutex.
//
// The control block is allocated lazily the first time it is needed (a
// goroutine has to wait for the lock, or the lock is used with CondWait
// or as the target of a Transfer), and is dropped again as soon as nothing
// references it any longer — the steady uncontended state is always back
// to a bare word.
//
// The interesting engineering is in how an unrelated goroutine can safely
// dereference that control block without a global registry mapping
// mutexes to blocks, when another goroutine might be dropping the last
// reference to it at the very same instant. This is done with a "pegging"
// protocol: a goroutine that needs to reach the control block first
// atomically prepends a small, ephemeral "peg" node in front of it,
// forming a singly-linked chain rooted at the word itself. A peg keeps
// the control block reachable for the duration of one access, and the
// refcount bookkeeping in this package is what lets pegs and the control
// block come and go correctly as chains are built, walked, and retired
// concurrently by many goroutines. It's deliberately structured to be a
// much lighter weight alternative to hazard pointers or epoch-based
// reclamation for this one specific shape of problem.
//
// A Mutex's zero value is an unlocked mutex ready for use. A Mutex must
// not be copied after first use (the same rule as sync.Mutex). Because
// Unlock returns an error, a Mutex does not implement sync.Locker.
package skmutex

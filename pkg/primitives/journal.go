package primitives

import (
	"errors"
	"iter"
)

// ErrNothingToUndo is returned when a rollback or commit is requested with no pending mark.
var ErrNothingToUndo = errors.New("primitives: nothing to undo")

// undoEntry is the inverse of a single mutation.
type undoEntry[T any] struct {
	pos     Position
	prior   T
	existed bool // false => the position was absent before the mutation
}

// Journal is a Store that records the inverse of every mutation so that the
// state at a mark can be restored.
//
// Marks nest. RollbackToMark undoes everything since the most recent mark;
// DiscardMark keeps it, folding the mutations into the enclosing mark (if any).
type Journal[T any] struct {
	store *Store[T]
	log   []undoEntry[T]

	// marks[i] is the length of log when the i-th pending mark was set.
	marks []int
}

func NewJournal[T any]() *Journal[T] {
	return &Journal[T]{store: NewStore[T]()}
}

// SetMark records a checkpoint.
func (j *Journal[T]) SetMark() {
	j.marks = append(j.marks, len(j.log))
}

// RollbackToMark restores the state at the most recent mark and removes that mark.
func (j *Journal[T]) RollbackToMark() error {
	if len(j.marks) == 0 {
		return ErrNothingToUndo
	}
	mark := j.marks[len(j.marks)-1]
	j.marks = j.marks[:len(j.marks)-1]

	for i := len(j.log) - 1; i >= mark; i-- {
		e := j.log[i]
		if e.existed {
			j.store.Set(e.pos, e.prior)
		} else {
			j.store.Delete(e.pos)
		}
		j.log[i] = undoEntry[T]{}
	}
	j.log = j.log[:mark]
	return nil
}

// DiscardMark removes the most recent mark, keeping every mutation made since.
func (j *Journal[T]) DiscardMark() error {
	if len(j.marks) == 0 {
		return ErrNothingToUndo
	}
	j.marks = j.marks[:len(j.marks)-1]

	// With no enclosing mark nothing can roll these entries back any more.
	if len(j.marks) == 0 {
		clear(j.log)
		j.log = j.log[:0]
	}
	return nil
}

// Marks returns the number of pending marks.
func (j *Journal[T]) Marks() int {
	return len(j.marks)
}

// Pending returns the number of undo entries held in the log.
func (j *Journal[T]) Pending() int {
	return len(j.log)
}

func (j *Journal[T]) Set(pos Position, v T) {
	j.record(pos)
	j.store.Set(pos, v)
}

func (j *Journal[T]) Delete(pos Position) {
	if !j.store.Has(pos) {
		return
	}
	j.record(pos)
	j.store.Delete(pos)
}

func (j *Journal[T]) record(pos Position) {
	if len(j.marks) == 0 {
		return
	}
	prior, existed := j.store.Get(pos)
	j.log = append(j.log, undoEntry[T]{pos: pos, prior: prior, existed: existed})
}

func (j *Journal[T]) Has(pos Position) bool {
	return j.store.Has(pos)
}

func (j *Journal[T]) Get(pos Position) (T, bool) {
	return j.store.Get(pos)
}

func (j *Journal[T]) Len() int {
	return j.store.Len()
}

func (j *Journal[T]) Values() iter.Seq[T] {
	return j.store.Values()
}

func (j *Journal[T]) Entries() iter.Seq2[Position, T] {
	return j.store.Entries()
}

func (j *Journal[T]) SortedPositions() []Position {
	return j.store.SortedPositions()
}

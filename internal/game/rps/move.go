// Package rps implements the rock-paper-scissors match engine: pending
// challenges, live matches, the turn engine and the lifecycle controller that
// ties them to the ledger, record store and presenter.
package rps

import "strings"

// Move is one of the three hand signs.
type Move int

const (
	Rock Move = iota
	Paper
	Scissors
)

// Moves lists every valid move in index order.
var Moves = [...]Move{Rock, Paper, Scissors}

var moveNames = [...]string{"rock", "paper", "scissors"}
var moveEmoji = [...]string{"🪨", "📄", "✂️"}

func (m Move) String() string {
	if !m.Valid() {
		return "unknown"
	}
	return moveNames[m]
}

// Emoji returns the display glyph for the move.
func (m Move) Emoji() string {
	if !m.Valid() {
		return "❔"
	}
	return moveEmoji[m]
}

// Valid reports whether m is one of the three moves.
func (m Move) Valid() bool {
	return m >= Rock && m <= Scissors
}

// ParseMove accepts a move name, case-insensitively.
func ParseMove(s string) (Move, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rock", "r":
		return Rock, nil
	case "paper", "p":
		return Paper, nil
	case "scissors", "s":
		return Scissors, nil
	}
	return 0, ErrInvalidMove
}

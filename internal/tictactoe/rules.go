package tictactoe

import "github.com/gridbox/tictactoe-match/internal/entity"

// WinCombos are the 8 winning triples of a 3x3 grid: rows, columns, diagonals.
var WinCombos = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// IsLegalMove reports whether a move at the given position is legal:
// the position is on the board and the cell is still empty.
func IsLegalMove(board [entity.BoardSize]string, position int) bool {
	if position < 0 || position >= entity.BoardSize {
		return false
	}

	return board[position] == entity.EmptyCell
}

// DetectWinner returns the symbol holding a full winning triple, or the
// empty string when no line is complete. Sequential single-cell moves can
// never complete two lines for different symbols, so the first match wins.
func DetectWinner(board [entity.BoardSize]string) string {
	for _, combo := range WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != entity.EmptyCell && a == b && b == c {
			return a
		}
	}

	return entity.EmptyCell
}

// IsDraw reports whether the game ended without a winner. The board-full
// check runs off the move count so the board is not rescanned.
func IsDraw(board [entity.BoardSize]string, moveCount int) bool {
	if moveCount < entity.BoardSize {
		return false
	}

	return DetectWinner(board) == entity.EmptyCell
}

package entity

// Cell is the content of one board square.
type Cell string

const (
	EmptyCell Cell = ""
	PlayerX   Cell = "X"
	PlayerO   Cell = "O"
)

const BoardSize = 9

// Board holds nine cells in row-major order.
type Board [BoardSize]Cell

// WinLine is a triple of board indices that wins when all three hold the same mark.
type WinLine [3]int

// WinLines are scanned in this order: rows top to bottom, columns left to right, diagonals.
var WinLines = [8]WinLine{
	// rows
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	// columns
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	// diagonals
	{0, 4, 8},
	{2, 4, 6},
}

// Coordinates locates a cell on the board.
type Coordinates struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// CalculateWinner returns the first complete line in scan order.
func CalculateWinner(board Board) (WinLine, bool) {
	for _, line := range WinLines {
		a, b, c := board[line[0]], board[line[1]], board[line[2]]
		if a != EmptyCell && a == b && b == c {
			return line, true
		}
	}

	return WinLine{}, false
}

// CalculateDraw reports whether every cell is taken. It does not look for a winner,
// so callers must check CalculateWinner first.
func CalculateDraw(board Board) bool {
	for _, cell := range board {
		if cell == EmptyCell {
			return false
		}
	}

	return true
}

func CoordinatesOf(index int) Coordinates {
	return Coordinates{Col: index % 3, Row: index / 3}
}

func isValidIndex(index int) bool {
	return index >= 0 && index < BoardSize
}

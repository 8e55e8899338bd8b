package entity

import (
	"fmt"
	"slices"
	"time"
)

const (
	statusWinner = "Winner: "
	statusDraw   = "Draw! :("
	statusNext   = "Next player: "

	gameStartDescription = "Go to game start"
)

// Move is one history entry: the board after a move and where that move was played.
// Position is nil for the initial empty board.
type Move struct {
	Squares  Board        `json:"squares"`
	Position *Coordinates `json:"position,omitempty"`
}

// GameState is an immutable value. Commands return a new state and never touch the receiver's history.
type GameState struct {
	History    []Move `json:"history"`
	StepNumber int    `json:"step_number"`
	XIsNext    bool   `json:"x_is_next"`
	Reverse    bool   `json:"reverse"`
}

func NewGameState() GameState {
	return GameState{
		History: []Move{{Squares: Board{}}},
		XIsNext: true,
	}
}

func (that GameState) CurrentBoard() Board {
	return that.History[that.StepNumber].Squares
}

func (that GameState) NextPlayer() Cell {
	if that.XIsNext {
		return PlayerX
	}
	return PlayerO
}

// CanPlay reports whether Play(index) would change the state.
func (that GameState) CanPlay(index int) bool {
	if !isValidIndex(index) {
		return false
	}

	board := that.CurrentBoard()
	if _, won := CalculateWinner(board); won {
		return false
	}

	return board[index] == EmptyCell
}

// Play marks index for the next player. Any history after the current step is discarded.
// It is a no-op after a win, on an occupied cell or on an index outside the board.
func (that GameState) Play(index int) GameState {
	if !that.CanPlay(index) {
		return that
	}

	squares := that.CurrentBoard()
	squares[index] = that.NextPlayer()
	position := CoordinatesOf(index)

	history := make([]Move, that.StepNumber+1, that.StepNumber+2)
	copy(history, that.History[:that.StepNumber+1])
	history = append(history, Move{Squares: squares, Position: &position})

	return GameState{
		History:    history,
		StepNumber: len(history) - 1,
		XIsNext:    !that.XIsNext,
		Reverse:    that.Reverse,
	}
}

// JumpTo makes step the current one. X always moves on even steps.
// A step outside the history leaves the state unchanged.
func (that GameState) JumpTo(step int) GameState {
	if !that.HasStep(step) {
		return that
	}

	that.StepNumber = step
	that.XIsNext = step%2 == 0

	return that
}

func (that GameState) ToggleReverse() GameState {
	that.Reverse = !that.Reverse
	return that
}

func (that GameState) HasStep(step int) bool {
	return step >= 0 && step < len(that.History)
}

func (that GameState) Winner() (WinLine, bool) {
	return CalculateWinner(that.CurrentBoard())
}

func (that GameState) Status() string {
	board := that.CurrentBoard()

	if line, won := CalculateWinner(board); won {
		return statusWinner + string(board[line[0]])
	}

	if CalculateDraw(board) {
		return statusDraw
	}

	return statusNext + string(that.NextPlayer())
}

// HighlightedCells returns the winning line's indices, or an empty slice when nobody has won.
func (that GameState) HighlightedCells() []int {
	line, won := that.Winner()
	if !won {
		return []int{}
	}

	return line[:]
}

// HistoryDescriptions labels every history entry in history order.
func (that GameState) HistoryDescriptions() []string {
	descriptions := make([]string, len(that.History))
	for step, move := range that.History {
		descriptions[step] = describeMove(step, move)
	}

	return descriptions
}

func describeMove(step int, move Move) string {
	if step == 0 || move.Position == nil {
		return gameStartDescription
	}

	return fmt.Sprintf("Go to move #%d (col: %d row: %d)", step, move.Position.Col, move.Position.Row)
}

// Game is a GameState owned by one session.
type Game struct {
	ID        string    `json:"id"`
	State     GameState `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewGame(id string) *Game {
	return &Game{
		ID:        id,
		State:     NewGameState(),
		UpdatedAt: time.Now().UTC(),
	}
}

// MoveEntry is one line of the move list.
type MoveEntry struct {
	Step        int    `json:"step"`
	Description string `json:"description"`
	Current     bool   `json:"current"`
}

// Snapshot is everything a view needs to draw a game.
type Snapshot struct {
	ID          string      `json:"id"`
	Status      string      `json:"status"`
	Board       Board       `json:"board"`
	Highlighted []int       `json:"highlighted"`
	StepNumber  int         `json:"step_number"`
	XIsNext     bool        `json:"x_is_next"`
	Reverse     bool        `json:"reverse"`
	Moves       []MoveEntry `json:"moves"`
}

func (that *Game) Snapshot() Snapshot {
	state := that.State

	descriptions := state.HistoryDescriptions()
	moves := make([]MoveEntry, len(descriptions))
	for step, description := range descriptions {
		moves[step] = MoveEntry{
			Step:        step,
			Description: description,
			Current:     step == state.StepNumber,
		}
	}

	if state.Reverse {
		slices.Reverse(moves)
	}

	return Snapshot{
		ID:          that.ID,
		Status:      state.Status(),
		Board:       state.CurrentBoard(),
		Highlighted: state.HighlightedCells(),
		StepNumber:  state.StepNumber,
		XIsNext:     state.XIsNext,
		Reverse:     state.Reverse,
		Moves:       moves,
	}
}

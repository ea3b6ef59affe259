package tictactoe

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

// MaxSize caps every board regardless of configuration.
const MaxSize = 100

// Board is an N×N grid. It is not safe for concurrent use; a match mutates it from its loop only.
type Board struct {
	size      int
	cells     [][]entity.Mark
	moveCount int
}

func NewBoard(size int) (*Board, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: %d", apperror.ErrInvalidGridSize, size)
	}

	if size > MaxSize {
		return nil, fmt.Errorf("%w: %d > %d", apperror.ErrGridSizeTooLarge, size, MaxSize)
	}

	cells := make([][]entity.Mark, size)
	for row := range cells {
		cells[row] = make([]entity.Mark, size)
	}

	return &Board{
		size:  size,
		cells: cells,
	}, nil
}

func (that *Board) Size() int {
	return that.size
}

func (that *Board) MoveCount() int {
	return that.moveCount
}

// Cell returns the mark at (row, col), MarkEmpty when out of range.
func (that *Board) Cell(row, col int) entity.Mark {
	if !that.inRange(row, col) {
		return entity.MarkEmpty
	}

	return that.cells[row][col]
}

// Snapshot returns a copy of the grid.
func (that *Board) Snapshot() [][]entity.Mark {
	snapshot := make([][]entity.Mark, that.size)
	for row := range that.cells {
		snapshot[row] = append([]entity.Mark(nil), that.cells[row]...)
	}

	return snapshot
}

// ValidateAndApply places mark at (row, col) if the cell exists and is empty.
func (that *Board) ValidateAndApply(mark entity.Mark, row, col int) bool {
	return that.Apply(mark, row, col) == nil
}

// Apply is ValidateAndApply with the rejection reason.
func (that *Board) Apply(mark entity.Mark, row, col int) error {
	if err := that.validateMove(row, col); err != nil {
		return err
	}

	that.cells[row][col] = mark
	that.moveCount++

	return nil
}

// validateMove - checks the range first so an occupied check never indexes outside the grid.
func (that *Board) validateMove(row, col int) error {
	if !that.inRange(row, col) {
		return fmt.Errorf("%w: (%d, %d)", apperror.ErrCellOutOfRange, row, col)
	}

	if !that.cells[row][col].IsEmpty() {
		return fmt.Errorf("%w: (%d, %d)", apperror.ErrCellOccupied, row, col)
	}

	return nil
}

func (that *Board) inRange(row, col int) bool {
	return row >= 0 && row < that.size && col >= 0 && col < that.size
}

// Evaluate reports the outcome of the move mark just made at (row, col).
// Only the lines through that cell are checked.
func (that *Board) Evaluate(mark entity.Mark, row, col int) entity.Outcome {
	if that.ownsRow(mark, row) || that.ownsCol(mark, col) {
		return entity.WinFor(mark)
	}

	if row == col && that.ownsMainDiagonal(mark) {
		return entity.WinFor(mark)
	}

	if row+col == that.size-1 && that.ownsAntiDiagonal(mark) {
		return entity.WinFor(mark)
	}

	if that.moveCount == that.size*that.size {
		return entity.Drawn()
	}

	return entity.Continue()
}

func (that *Board) ownsRow(mark entity.Mark, row int) bool {
	for col := range that.size {
		if that.cells[row][col] != mark {
			return false
		}
	}

	return true
}

func (that *Board) ownsCol(mark entity.Mark, col int) bool {
	for row := range that.size {
		if that.cells[row][col] != mark {
			return false
		}
	}

	return true
}

func (that *Board) ownsMainDiagonal(mark entity.Mark) bool {
	for i := range that.size {
		if that.cells[i][i] != mark {
			return false
		}
	}

	return true
}

func (that *Board) ownsAntiDiagonal(mark entity.Mark) bool {
	for i := range that.size {
		if that.cells[i][that.size-1-i] != mark {
			return false
		}
	}

	return true
}

package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gianpietrodimatteo/tictactoe-backend/internal/apperror"
	"github.com/gianpietrodimatteo/tictactoe-backend/internal/entity"
)

type GameUseCase interface {
	NewGame(ctx context.Context) (entity.Snapshot, error)
	GetGame(ctx context.Context, id string) (entity.Snapshot, error)
	DeleteGame(ctx context.Context, id string) error

	Play(ctx context.Context, id string, index int) (entity.Snapshot, error)
	JumpTo(ctx context.Context, id string, step int) (entity.Snapshot, error)
	ToggleReverse(ctx context.Context, id string) (entity.Snapshot, error)
}

type gameRepo interface {
	CreateOrUpdate(ctx context.Context, game *entity.Game) error
	GetByID(ctx context.Context, id string) (*entity.Game, error)
	DeleteByID(ctx context.Context, id string) error
}

type publisher interface {
	Publish(gameID string, snapshot entity.Snapshot)
	Close(gameID string)
}

type gameUseCase struct {
	logger    *slog.Logger
	gameRepo  gameRepo
	publisher publisher
	locks     *keyedMutex
}

func NewGameUseCase(logger *slog.Logger, gameRepo gameRepo, publisher publisher) GameUseCase {
	return &gameUseCase{
		logger: logger.With("component", "usecase"),

		gameRepo:  gameRepo,
		publisher: publisher,
		locks:     newKeyedMutex(),
	}
}

func (that *gameUseCase) NewGame(ctx context.Context) (entity.Snapshot, error) {
	game := entity.NewGame(uuid.NewString())

	if err := that.gameRepo.CreateOrUpdate(ctx, game); err != nil {
		return entity.Snapshot{}, fmt.Errorf("could not create game: %w", err)
	}

	that.logger.Info("game created", "gameID", game.ID)

	return game.Snapshot(), nil
}

func (that *gameUseCase) GetGame(ctx context.Context, id string) (entity.Snapshot, error) {
	game, err := that.gameRepo.GetByID(ctx, id)
	if err != nil {
		return entity.Snapshot{}, fmt.Errorf("failed to get game by id: %w", err)
	}

	return game.Snapshot(), nil
}

func (that *gameUseCase) DeleteGame(ctx context.Context, id string) error {
	unlock := that.locks.Lock(id)
	defer unlock()

	if err := that.gameRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}

	that.publisher.Close(id)
	that.logger.Info("game deleted", "gameID", id)

	return nil
}

// Play - an occupied cell or a finished board leaves the game as it is; nothing is saved or published.
func (that *gameUseCase) Play(ctx context.Context, id string, index int) (entity.Snapshot, error) {
	return that.apply(ctx, id, func(state entity.GameState) (entity.GameState, bool, error) {
		if !state.CanPlay(index) {
			return state, false, nil
		}

		return state.Play(index), true, nil
	})
}

func (that *gameUseCase) JumpTo(ctx context.Context, id string, step int) (entity.Snapshot, error) {
	return that.apply(ctx, id, func(state entity.GameState) (entity.GameState, bool, error) {
		if !state.HasStep(step) {
			return state, false, fmt.Errorf("%w: step %d, history has %d entries", apperror.ErrStepOutOfRange, step, len(state.History))
		}

		return state.JumpTo(step), true, nil
	})
}

func (that *gameUseCase) ToggleReverse(ctx context.Context, id string) (entity.Snapshot, error) {
	return that.apply(ctx, id, func(state entity.GameState) (entity.GameState, bool, error) {
		return state.ToggleReverse(), true, nil
	})
}

type command func(state entity.GameState) (next entity.GameState, changed bool, err error)

// apply - loads the game, runs cmd, saves and publishes the result while holding the game lock.
func (that *gameUseCase) apply(ctx context.Context, id string, cmd command) (entity.Snapshot, error) {
	unlock := that.locks.Lock(id)
	defer unlock()

	game, err := that.gameRepo.GetByID(ctx, id)
	if err != nil {
		return entity.Snapshot{}, fmt.Errorf("failed to get game by id: %w", err)
	}

	next, changed, err := cmd(game.State)
	if err != nil {
		return entity.Snapshot{}, err
	}

	if !changed {
		return game.Snapshot(), nil
	}

	game.State = next
	game.UpdatedAt = time.Now().UTC()

	if err = that.gameRepo.CreateOrUpdate(ctx, game); err != nil {
		return entity.Snapshot{}, fmt.Errorf("failed to update game: %w", err)
	}

	snapshot := game.Snapshot()
	that.publisher.Publish(game.ID, snapshot)

	that.logger.Debug("game updated", "gameID", game.ID, "step", snapshot.StepNumber, "status", snapshot.Status)

	return snapshot, nil
}

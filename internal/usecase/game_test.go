package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gianpietrodimatteo/tictactoe-backend/internal/apperror"
	"github.com/gianpietrodimatteo/tictactoe-backend/internal/broadcast"
	"github.com/gianpietrodimatteo/tictactoe-backend/internal/entity"
	"github.com/gianpietrodimatteo/tictactoe-backend/internal/repository"
	"github.com/gianpietrodimatteo/tictactoe-backend/testing/suite"
)

var errRedisDown = errors.New("redis down")

type mockGameRepo struct {
	mock.Mock
}

func (m *mockGameRepo) CreateOrUpdate(ctx context.Context, game *entity.Game) error {
	return m.Called(ctx, game).Error(0)
}

func (m *mockGameRepo) GetByID(ctx context.Context, id string) (*entity.Game, error) {
	args := m.Called(ctx, id)
	game, _ := args.Get(0).(*entity.Game)
	return game, args.Error(1)
}

func (m *mockGameRepo) DeleteByID(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(gameID string, snapshot entity.Snapshot) {
	m.Called(gameID, snapshot)
}

func (m *mockPublisher) Close(gameID string) {
	m.Called(gameID)
}

func newMockedUseCase(t *testing.T) (GameUseCase, *mockGameRepo, *mockPublisher) {
	t.Helper()

	gameRepo := &mockGameRepo{}
	pub := &mockPublisher{}
	t.Cleanup(func() {
		gameRepo.AssertExpectations(t)
		pub.AssertExpectations(t)
	})

	return NewGameUseCase(suite.NewLogger(), gameRepo, pub), gameRepo, pub
}

func gameWithMoves(id string, indices ...int) *entity.Game {
	game := entity.NewGame(id)
	for _, index := range indices {
		game.State = game.State.Play(index)
	}
	return game
}

func TestGameUseCase_NewGame(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates and stores an empty game", func(t *testing.T) {
		// Given: a repository that accepts the game
		useCase, gameRepo, _ := newMockedUseCase(t)
		gameRepo.On("CreateOrUpdate", ctx, mock.AnythingOfType("*entity.Game")).Return(nil).Once()

		// When: creating a game
		snapshot, err := useCase.NewGame(ctx)

		// Then: the snapshot shows an empty board with X to move
		require.NoError(t, err)
		assert.NotEmpty(t, snapshot.ID)
		assert.Equal(t, entity.Board{}, snapshot.Board)
		assert.Equal(t, "Next player: X", snapshot.Status)
		require.Len(t, snapshot.Moves, 1)
	})

	t.Run("Returns error if the repository fails", func(t *testing.T) {
		useCase, gameRepo, _ := newMockedUseCase(t)
		gameRepo.On("CreateOrUpdate", ctx, mock.AnythingOfType("*entity.Game")).Return(errRedisDown).Once()

		_, err := useCase.NewGame(ctx)

		require.ErrorIs(t, err, errRedisDown)
	})
}

func TestGameUseCase_Play(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid move is saved and published", func(t *testing.T) {
		// Given: a stored empty game
		useCase, gameRepo, pub := newMockedUseCase(t)
		gameRepo.On("GetByID", ctx, "g1").Return(gameWithMoves("g1"), nil).Once()
		gameRepo.On("CreateOrUpdate", ctx, mock.MatchedBy(func(game *entity.Game) bool {
			return game.ID == "g1" && game.State.CurrentBoard()[4] == entity.PlayerX
		})).Return(nil).Once()
		pub.On("Publish", "g1", mock.MatchedBy(func(snapshot entity.Snapshot) bool {
			return snapshot.StepNumber == 1
		})).Once()

		// When: X plays the centre
		snapshot, err := useCase.Play(ctx, "g1", 4)

		// Then: the centre is taken and O is next
		require.NoError(t, err)
		assert.Equal(t, entity.PlayerX, snapshot.Board[4])
		assert.Equal(t, "Next player: O", snapshot.Status)
	})

	t.Run("Occupied cell is neither saved nor published", func(t *testing.T) {
		// Given: a game where X holds the centre
		useCase, gameRepo, _ := newMockedUseCase(t)
		gameRepo.On("GetByID", ctx, "g1").Return(gameWithMoves("g1", 4), nil).Once()

		// When: O plays the centre
		snapshot, err := useCase.Play(ctx, "g1", 4)

		// Then: no error and the board is unchanged
		require.NoError(t, err)
		assert.Equal(t, 1, snapshot.StepNumber)
		assert.Equal(t, "Next player: O", snapshot.Status)
	})

	t.Run("Move after a win is ignored", func(t *testing.T) {
		useCase, gameRepo, _ := newMockedUseCase(t)
		gameRepo.On("GetByID", ctx, "g1").Return(gameWithMoves("g1", 0, 3, 1, 4, 2), nil).Once()

		snapshot, err := useCase.Play(ctx, "g1", 8)

		require.NoError(t, err)
		assert.Equal(t, "Winner: X", snapshot.Status)
		assert.Equal(t, []int{0, 1, 2}, snapshot.Highlighted)
		assert.Len(t, snapshot.Moves, 6)
	})

	t.Run("Missing game is reported", func(t *testing.T) {
		useCase, gameRepo, _ := newMockedUseCase(t)
		gameRepo.On("GetByID", ctx, "nope").Return(nil, apperror.ErrGameNotFound).Once()

		_, err := useCase.Play(ctx, "nope", 0)

		require.ErrorIs(t, err, apperror.ErrGameNotFound)
	})

	t.Run("Save failure is reported and nothing is published", func(t *testing.T) {
		useCase, gameRepo, _ := newMockedUseCase(t)
		gameRepo.On("GetByID", ctx, "g1").Return(gameWithMoves("g1"), nil).Once()
		gameRepo.On("CreateOrUpdate", ctx, mock.AnythingOfType("*entity.Game")).Return(errRedisDown).Once()

		_, err := useCase.Play(ctx, "g1", 0)

		require.ErrorIs(t, err, errRedisDown)
	})
}

func TestGameUseCase_JumpTo(t *testing.T) {
	ctx := context.Background()

	t.Run("Jump moves the current step", func(t *testing.T) {
		// Given: a game with four moves
		useCase, gameRepo, pub := newMockedUseCase(t)
		gameRepo.On("GetByID", ctx, "g1").Return(gameWithMoves("g1", 0, 1, 2, 3), nil).Once()
		gameRepo.On("CreateOrUpdate", ctx, mock.AnythingOfType("*entity.Game")).Return(nil).Once()
		pub.On("Publish", "g1", mock.AnythingOfType("entity.Snapshot")).Once()

		// When: jumping to step 1
		snapshot, err := useCase.JumpTo(ctx, "g1", 1)

		// Then: step 1 is current and the history is still listed
		require.NoError(t, err)
		assert.Equal(t, 1, snapshot.StepNumber)
		assert.False(t, snapshot.XIsNext)
		assert.Len(t, snapshot.Moves, 5)
		assert.True(t, snapshot.Moves[1].Current)
	})

	t.Run("Out of range step is rejected", func(t *testing.T) {
		useCase, gameRepo, _ := newMockedUseCase(t)
		gameRepo.On("GetByID", ctx, "g1").Return(gameWithMoves("g1", 0), nil).Once()

		_, err := useCase.JumpTo(ctx, "g1", 5)

		require.ErrorIs(t, err, apperror.ErrStepOutOfRange)
	})
}

func TestGameUseCase_DeleteGame(t *testing.T) {
	ctx := context.Background()

	t.Run("Deletes the game and closes its subscriptions", func(t *testing.T) {
		useCase, gameRepo, pub := newMockedUseCase(t)
		gameRepo.On("DeleteByID", ctx, "g1").Return(nil).Once()
		pub.On("Close", "g1").Once()

		require.NoError(t, useCase.DeleteGame(ctx, "g1"))
	})

	t.Run("Missing game is reported", func(t *testing.T) {
		useCase, gameRepo, _ := newMockedUseCase(t)
		gameRepo.On("DeleteByID", ctx, "g1").Return(apperror.ErrGameNotFound).Once()

		require.ErrorIs(t, useCase.DeleteGame(ctx, "g1"), apperror.ErrGameNotFound)
	})
}

func TestGameUseCase_Session(t *testing.T) {
	ctx := context.Background()

	// Given: the use case over the in-memory repository and a real hub
	hub := broadcast.NewHub()
	useCase := NewGameUseCase(suite.NewLogger(), repository.NewMemoryGameRepository(time.Hour), hub)

	created, err := useCase.NewGame(ctx)
	require.NoError(t, err)

	updates, unsubscribe := hub.Subscribe(ctx, created.ID)
	defer unsubscribe()

	// When: four moves are played, the game jumps to step 1 and O plays cell 5
	for _, index := range []int{0, 1, 2, 3} {
		_, err = useCase.Play(ctx, created.ID, index)
		require.NoError(t, err)
	}
	_, err = useCase.JumpTo(ctx, created.ID, 1)
	require.NoError(t, err)
	last, err := useCase.Play(ctx, created.ID, 5)
	require.NoError(t, err)

	// Then: the redo branch is gone and the subscriber converges on the last snapshot
	assert.Len(t, last.Moves, 3)
	assert.Equal(t, 2, last.StepNumber)

	select {
	case snapshot := <-updates:
		assert.Equal(t, last, snapshot)
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}

	reversed, err := useCase.ToggleReverse(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reversed.Moves[0].Step)

	stored, err := useCase.GetGame(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, reversed, stored)
}

func TestGameUseCase_ConcurrentPlays(t *testing.T) {
	ctx := context.Background()

	// Given: one game shared by many goroutines
	useCase := NewGameUseCase(suite.NewLogger(), repository.NewMemoryGameRepository(time.Hour), broadcast.NewHub())
	created, err := useCase.NewGame(ctx)
	require.NoError(t, err)

	// When: every goroutine tries the same cell
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = useCase.Play(ctx, created.ID, 4)
		}()
	}
	wg.Wait()

	// Then: exactly one move was recorded
	snapshot, err := useCase.GetGame(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, snapshot.Moves, 2)
	assert.Equal(t, entity.PlayerX, snapshot.Board[4])
}

func TestKeyedMutex(t *testing.T) {
	locks := newKeyedMutex()

	unlock := locks.Lock("a")
	assert.Equal(t, 1, locks.size())

	unlock()
	assert.Equal(t, 0, locks.size())
}

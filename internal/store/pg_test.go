package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/artfolio/chainmarket/internal/domain"
	"github.com/artfolio/chainmarket/internal/engine"
	"github.com/artfolio/chainmarket/internal/store/schema"
)

var (
	testDB      *gorm.DB
	pgContainer *postgres.PostgresContainer
)

// TestMain sets up the test database before running tests
func TestMain(m *testing.M) {
	ctx := context.Background()

	// Check if we should use an external database (for CI or local development)
	dbHost := os.Getenv("TEST_DB_HOST")
	dbPort := os.Getenv("TEST_DB_PORT")
	dbUser := os.Getenv("TEST_DB_USER")
	dbPassword := os.Getenv("TEST_DB_PASSWORD")
	dbName := os.Getenv("TEST_DB_NAME")

	var dsn string
	var err error

	if dbHost != "" {
		// Use external database
		if dbPort == "" {
			dbPort = "5432"
		}
		if dbUser == "" {
			dbUser = "postgres"
		}
		if dbPassword == "" {
			dbPassword = "postgres"
		}
		if dbName == "" {
			dbName = "test_db"
		}

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			dbHost, dbPort, dbUser, dbPassword, dbName)

		fmt.Printf("Using external database: %s:%s/%s\n", dbHost, dbPort, dbName)
	} else {
		// Start a PostgreSQL container for testing
		pgContainer, err = postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("test_db"),
			postgres.WithUsername("postgres"),
			postgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			fmt.Printf("Failed to start PostgreSQL container: %v\n", err)
			os.Exit(1)
		}

		dsn, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Printf("Failed to get connection string: %v\n", err)
			if err := pgContainer.Terminate(ctx); err != nil {
				fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
			}
			os.Exit(1)
		}

		fmt.Printf("Started PostgreSQL container\n")
	}

	// Connect to the database
	testDB, err = gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		if pgContainer != nil {
			if err := pgContainer.Terminate(ctx); err != nil {
				fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
			}
		}
		os.Exit(1)
	}

	// Initialize the journal schema
	if err := Migrate(testDB); err != nil {
		fmt.Printf("Failed to migrate database: %v\n", err)
		if pgContainer != nil {
			if err := pgContainer.Terminate(ctx); err != nil {
				fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
			}
		}
		os.Exit(1)
	}

	// Run tests
	code := m.Run()

	// Cleanup
	if pgContainer != nil {
		if err := pgContainer.Terminate(ctx); err != nil {
			fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
		}
	}

	os.Exit(code)
}

// cleanJournal truncates the journal table between tests
func cleanJournal(t *testing.T) {
	t.Helper()
	require.NoError(t, testDB.Exec("TRUNCATE TABLE command_journal RESTART IDENTITY").Error)
}

func testCommand(seq uint64) *schema.CommandJournal {
	return &schema.CommandJournal{
		CmdID:  fmt.Sprintf("01J00000000000000000SEQ%04d", seq),
		Seq:    seq,
		Height: seq / 2,
		Caller: "SP000000000000000000002Q6VF78",
		Op:     "advance_block",
		Args:   []byte(`{"blocks":1}`),
	}
}

func TestAppendAndListCommands(t *testing.T) {
	cleanJournal(t)
	ctx := context.Background()
	s := NewPGStore(testDB)

	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, s.AppendCommand(ctx, testCommand(seq)))
	}

	cmds, err := s.ListCommands(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, cmds, 5)
	for i, cmd := range cmds {
		assert.Equal(t, uint64(i+1), cmd.Seq)
		assert.Equal(t, "advance_block", cmd.Op)
		assert.JSONEq(t, `{"blocks":1}`, string(cmd.Args))
	}

	// Pagination after a given seq.
	cmds, err = s.ListCommands(ctx, 3, 0)
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, uint64(4), cmds[0].Seq)

	cmds, err = s.ListCommands(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, uint64(2), cmds[0].Seq)
	assert.Equal(t, uint64(3), cmds[1].Seq)
}

func TestAppendCommandDuplicateSeq(t *testing.T) {
	cleanJournal(t)
	ctx := context.Background()
	s := NewPGStore(testDB)

	require.NoError(t, s.AppendCommand(ctx, testCommand(1)))

	dup := testCommand(1)
	dup.CmdID = "01J00000000000000000DUPLICATE"
	require.Error(t, s.AppendCommand(ctx, dup), "seq must be unique")
}

func TestLatestSeq(t *testing.T) {
	cleanJournal(t)
	ctx := context.Background()
	s := NewPGStore(testDB)

	seq, err := s.LatestSeq(ctx)
	require.NoError(t, err)
	assert.Zero(t, seq)

	require.NoError(t, s.AppendCommand(ctx, testCommand(1)))
	require.NoError(t, s.AppendCommand(ctx, testCommand(7)))

	seq, err = s.LatestSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), seq)
}

func TestCountCommands(t *testing.T) {
	cleanJournal(t)
	ctx := context.Background()
	s := NewPGStore(testDB)

	count, err := s.CountCommands(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, s.AppendCommand(ctx, testCommand(seq)))
	}

	count, err = s.CountCommands(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestJournalRoundTrip(t *testing.T) {
	cleanJournal(t)
	ctx := context.Background()
	s := NewPGStore(testDB)
	j := NewJournal(s)

	in := engine.Command{
		ID:     "01J00000000000000000ROUNDTRIP",
		Seq:    1,
		Height: 42,
		Caller: domain.Principal("SP000000000000000000002Q6VF78"),
		Op:     "mint",
		Args:   []byte(`{"uri":"ipfs://QmRoundTrip"}`),
	}
	require.NoError(t, j.Append(ctx, in))

	out, err := LoadCommands(ctx, s)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, in.ID, out[0].ID)
	assert.Equal(t, in.Seq, out[0].Seq)
	assert.Equal(t, in.Height, out[0].Height)
	assert.Equal(t, in.Caller, out[0].Caller)
	assert.Equal(t, in.Op, out[0].Op)
	assert.JSONEq(t, string(in.Args), string(out[0].Args))
}

func TestNormalizeConnectionPoolSettings(t *testing.T) {
	open, idle, lifetime, idleTime := NormalizeConnectionPoolSettings(0, 0, 0, 0)
	assert.Equal(t, 20, open)
	assert.Equal(t, 5, idle)
	assert.Equal(t, 5*time.Minute, lifetime)
	assert.Equal(t, 10*time.Minute, idleTime)

	// Idle conns clamp to open conns.
	open, idle, _, _ = NormalizeConnectionPoolSettings(3, 10, time.Minute, time.Minute)
	assert.Equal(t, 3, open)
	assert.Equal(t, 3, idle)
}

package tickets

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/maiscreditos/creditshub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.SupportTicket{}, &models.TicketMessage{}))
	return db
}

func TestCreateTicket(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	ticket, err := svc.Create(context.Background(), "user_1", &models.TicketCreateRequest{
		Subject: "Missing credits",
		Body:    "I paid but my balance did not change.",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TicketOpen, ticket.Status)
	require.Len(t, ticket.Messages, 1)
	assert.Equal(t, models.TicketAuthorUser, ticket.Messages[0].Author)

	_, err = svc.Create(context.Background(), "user_1", &models.TicketCreateRequest{Subject: "no body"})
	assert.Error(t, err)
}

func TestReplyStatusFlow(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	ticket, err := svc.Create(ctx, "user_1", &models.TicketCreateRequest{
		Subject: "Question",
		Body:    "How do recharges work?",
	})
	require.NoError(t, err)

	// An admin reply marks the thread answered.
	answered, err := svc.Reply(ctx, ticket.ID, models.TicketAuthorAdmin, "You submit the account link after purchase.")
	require.NoError(t, err)
	assert.Equal(t, models.TicketAnswered, answered.Status)
	assert.Len(t, answered.Messages, 2)

	// A user reply reopens it.
	reopened, err := svc.Reply(ctx, ticket.ID, models.TicketAuthorUser, "And how long does it take?")
	require.NoError(t, err)
	assert.Equal(t, models.TicketOpen, reopened.Status)
	assert.Len(t, reopened.Messages, 3)
}

func TestClosedTicketRejectsReplies(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	ticket, err := svc.Create(ctx, "user_1", &models.TicketCreateRequest{
		Subject: "Done",
		Body:    "Never mind, solved it.",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Close(ctx, ticket.ID))

	_, err = svc.Reply(ctx, ticket.ID, models.TicketAuthorUser, "Actually...")
	assert.ErrorIs(t, err, ErrTicketClosed)

	assert.ErrorIs(t, svc.Close(ctx, 999), ErrTicketNotFound)
}

func TestListForUser(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	_, err := svc.Create(ctx, "user_1", &models.TicketCreateRequest{Subject: "A", Body: "a"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "user_2", &models.TicketCreateRequest{Subject: "B", Body: "b"})
	require.NoError(t, err)

	mine, err := svc.ListForUser(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "A", mine[0].Subject)

	open, err := svc.ListAll(ctx, models.TicketOpen)
	require.NoError(t, err)
	assert.Len(t, open, 2)
}

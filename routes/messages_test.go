package routes

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrimarket/database"
)

func TestMessageReadFlipIsVisibleToSender(t *testing.T) {
	a := newAPI(t)
	buyer := a.user("chadi", database.RoleConsumer, database.UserStatusAccepted)
	farmer := a.user("amal", database.RoleFarmer, database.UserStatusAccepted)
	p := a.sheep(farmer, "1000")
	buyerTok, farmerTok := a.token(buyer), a.token(farmer)

	w := a.do(http.MethodPost, "/api/messages", buyerTok, gin.H{
		"receiver_id": farmer.ID, "subject": " Ram ", "content": "Still available?", "product_id": p.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	m := decode[database.Message](t, w)
	assert.Equal(t, buyer.ID, m.SenderID)
	assert.Equal(t, "Ram", m.Subject)
	assert.False(t, m.IsRead)
	require.NotNil(t, m.Product)

	// the sender reading does not flip the flag
	w = a.do(http.MethodGet, fmt.Sprintf("/api/messages/%d", m.ID), buyerTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[database.Message](t, w).IsRead)

	w = a.do(http.MethodGet, fmt.Sprintf("/api/messages/%d", m.ID), farmerTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[database.Message](t, w).IsRead)

	w = a.do(http.MethodGet, "/api/messages?type=sent", buyerTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sent := decode[[]database.Message](t, w)
	require.Len(t, sent, 1)
	assert.True(t, sent[0].IsRead)

	w = a.do(http.MethodGet, "/api/messages?type=received", buyerTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]database.Message](t, w))
}

func TestMessageLookupErrors(t *testing.T) {
	a := newAPI(t)
	sender := a.user("chadi", database.RoleConsumer, database.UserStatusAccepted)
	receiver := a.user("amal", database.RoleFarmer, database.UserStatusAccepted)
	outsider := a.user("omar", database.RoleConsumer, database.UserStatusAccepted)
	m := database.Message{SenderID: sender.ID, ReceiverID: receiver.ID, Subject: "Hi", Content: "Hello"}
	require.NoError(t, a.db.Create(&m).Error)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/messages/abc", a.token(sender), nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, fmt.Sprintf("/api/messages/%d", m.ID), a.token(outsider), nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/messages/9999", a.token(sender), nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/messages?type=archived", a.token(sender), nil).Code)

	// only the receiver can mark read
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPut, fmt.Sprintf("/api/messages/%d/read", m.ID), a.token(sender), nil).Code)
	w := a.do(http.MethodPut, fmt.Sprintf("/api/messages/%d/read", m.ID), a.token(receiver), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[database.Message](t, w).IsRead)

	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, fmt.Sprintf("/api/messages/%d", m.ID), a.token(outsider), nil).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodDelete, fmt.Sprintf("/api/messages/%d", m.ID), a.token(receiver), nil).Code)
}

func TestCreateMessageValidation(t *testing.T) {
	a := newAPI(t)
	sender := a.user("chadi", database.RoleConsumer, database.UserStatusAccepted)
	receiver := a.user("amal", database.RoleFarmer, database.UserStatusAccepted)
	tok := a.token(sender)

	w := a.do(http.MethodPost, "/api/messages", tok, gin.H{"receiver_id": receiver.ID, "subject": "   ", "content": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []interface{}{"subject"}, decode[map[string]interface{}](t, w)["fields"])

	w = a.do(http.MethodPost, "/api/messages", tok, gin.H{"receiver_id": 9999, "subject": "Hi", "content": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Receiver not found", errorOf(t, w))

	w = a.do(http.MethodPost, "/api/messages", tok, gin.H{"receiver_id": receiver.ID, "subject": "Hi", "content": "x", "product_id": 9999})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Product not found", errorOf(t, w))

	var count int64
	require.NoError(t, a.db.Model(&database.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAdminReadsAnotherMailbox(t *testing.T) {
	a := newAPI(t)
	admin := a.user("root", database.RoleAdmin, database.UserStatusAccepted)
	sender := a.user("chadi", database.RoleConsumer, database.UserStatusAccepted)
	receiver := a.user("amal", database.RoleFarmer, database.UserStatusAccepted)
	require.NoError(t, a.db.Create(&database.Message{SenderID: sender.ID, ReceiverID: receiver.ID, Subject: "Hi", Content: "Hello"}).Error)

	w := a.do(http.MethodGet, fmt.Sprintf("/api/messages?type=received&userId=%d", receiver.ID), a.token(admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]database.Message](t, w), 1)

	// ignored for everyone else
	w = a.do(http.MethodGet, fmt.Sprintf("/api/messages?type=received&userId=%d", receiver.ID), a.token(sender), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]database.Message](t, w))
}

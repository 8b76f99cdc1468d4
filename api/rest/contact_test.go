package rest_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/kasuganosora/neighborly/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactFlow_ApproveDeliversMessage(t *testing.T) {
	s := newServer(t)
	alice, aliceTok := s.user(t, "alice@x.com")
	bob, bobTok := s.user(t, "bob@x.com", testutil.WithPhone("+1 555 0100"))

	body := map[string]interface{}{"target_id": bob.ID, "type": "phone"}
	w := s.do(http.MethodPost, "/api/contact-requests", aliceTok, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reqID := idOf(t, w, "request")
	assert.Equal(t, true, decode(t, w)["created"])

	w = s.do(http.MethodPost, "/api/contact-requests", aliceTok, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["created"])
	assert.Equal(t, reqID, idOf(t, w, "request"))

	w = s.do(http.MethodGet, "/api/contact-requests?direction=in", bobTok, nil)
	assert.Len(t, decode(t, w)["requests"], 1)

	respond := fmt.Sprintf("/api/contact-requests/%d/respond", reqID)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, respond, aliceTok, map[string]bool{"accept": true}).Code)

	w = s.do(http.MethodPost, respond, bobTok, map[string]bool{"accept": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "APPROVED", decode(t, w)["request"].(map[string]interface{})["status"])

	w = s.do(http.MethodGet, "/api/messages", aliceTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	msgs := decode(t, w)["messages"].([]interface{})
	require.Len(t, msgs, 1)
	msg := msgs[0].(map[string]interface{})
	assert.Equal(t, "Contact details shared: phone: +1 555 0100", msg["body"])
	assert.EqualValues(t, bob.ID, msg["sender_id"])
	assert.EqualValues(t, alice.ID, msg["recipient_id"])

	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, respond, bobTok, map[string]bool{"accept": false}).Code)
}

func TestContactFlow_RejectSendsNothing(t *testing.T) {
	s := newServer(t)
	_, aliceTok := s.user(t, "alice@x.com")
	bob, bobTok := s.user(t, "bob@x.com")

	w := s.do(http.MethodPost, "/api/contact-requests", aliceTok, map[string]interface{}{"target_id": bob.ID, "type": "EMAIL"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/contact-requests/%d/respond", idOf(t, w, "request")), bobTok, map[string]bool{"accept": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "REJECTED", decode(t, w)["request"].(map[string]interface{})["status"])

	w = s.do(http.MethodGet, "/api/messages", aliceTok, nil)
	assert.Empty(t, decode(t, w)["messages"])

	// A fresh request is possible once the old one is resolved.
	w = s.do(http.MethodPost, "/api/contact-requests", aliceTok, map[string]interface{}{"target_id": bob.ID, "type": "EMAIL"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestContact_Validation(t *testing.T) {
	s := newServer(t)
	me, tok := s.user(t, "me@x.com")
	other, _ := s.user(t, "other@x.com")

	w := s.do(http.MethodPost, "/api/contact-requests", tok, map[string]interface{}{"target_id": other.ID, "type": "FAX"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodPost, "/api/contact-requests", tok, map[string]interface{}{"target_id": me.ID, "type": "EMAIL"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodPost, "/api/contact-requests", tok, map[string]interface{}{"target_id": 8080, "type": "EMAIL"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodGet, "/api/messages?limit=-1", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

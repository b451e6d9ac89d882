package e2e

import (
	"context"
	"order-chat/domain/chat"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type orderChatSuite struct {
	BaseSuite
}

func TestOrderChatSuite(t *testing.T) {
	suite.Run(t, &orderChatSuite{})
}

func (s *orderChatSuite) TestCustomerAndVendorConversation() {
	t := s.T()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	customer := s.Engine(t, "e2e-customer", "customer")
	vendor := s.Engine(t, s.Config.VendorID, "vendor")
	orderID := chat.OrderID(s.Config.OrderID)
	vendorID := chat.CounterpartyID(s.Config.VendorID)

	var session chat.Session
	s.Run("Step 1: both sides resolve the same chat", func() {
		var err error
		session, err = customer.ResolveChat(ctx, orderID, vendorID)
		s.Require().NoError(err)
		again, err := vendor.ResolveChat(ctx, orderID, vendorID)
		s.Require().NoError(err)
		s.Require().Equal(session.ID, again.ID)
	})

	s.Run("Step 2: both sides go live on push and feed", func() {
		s.Require().NoError(customer.SetActiveChat(ctx, chat.OrderChat(session.ID)))
		s.Require().NoError(vendor.SetActiveChat(ctx, chat.OrderChat(session.ID)))
		for _, engine := range []interface{ Connected() []string }{customer, vendor} {
			s.Require().Eventually(func() bool {
				connected := engine.Connected()
				sort.Strings(connected)
				return len(connected) == 2
			}, 10*time.Second, 50*time.Millisecond)
		}
	})

	s.Run("Step 3: a message crosses once", func() {
		before := len(customer.Messages(session.ID))
		sent, err := vendor.Send(ctx, session.ID, "Ships tomorrow morning")
		s.Require().NoError(err)
		s.Require().Eventually(func() bool {
			messages := customer.Messages(session.ID)
			return len(messages) == before+1 && messages[len(messages)-1].ID == sent.ID
		}, 10*time.Second, 50*time.Millisecond)
	})

	s.Run("Step 4: typing reaches the other side", func() {
		s.Require().NoError(customer.SetTyping(ctx, session.ID, true))
		s.Require().Eventually(func() bool {
			typing := vendor.Typing(session.ID)
			return len(typing) == 1 && typing[0] == "e2e-customer"
		}, 10*time.Second, 50*time.Millisecond)
	})
}

package contracts

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderPlaced struct {
	BaseEvent
	OrderID string `json:"orderId"`
}

type placeOrder struct {
	BaseCommand
	Amount int `json:"amount"`
}

type getOrder struct {
	BaseRequest
}

type orderDetails struct {
	BaseResponse
}

type renamed struct {
	BaseEvent
}

func (renamed) MessageTypeName() string { return "OrderRenamed" }

type generic[T any] struct {
	BaseEvent
	Value T
}

func TestBaseMessage(t *testing.T) {
	t.Run("NewBaseMessage creates valid message", func(t *testing.T) {
		msg := NewBaseMessage()

		assert.NotEmpty(t, msg.ID)
		assert.NotZero(t, msg.Timestamp)
		assert.Empty(t, msg.CorrelationID)

		_, err := uuid.Parse(msg.ID)
		assert.NoError(t, err)
	})

	t.Run("SetCorrelationID", func(t *testing.T) {
		base := NewBaseMessage()
		corrID := uuid.New().String()
		base.SetCorrelationID(corrID)
		assert.Equal(t, corrID, base.GetCorrelationID())
	})

	t.Run("NewBaseRequest generates a request ID", func(t *testing.T) {
		req := NewBaseRequest("client-1")
		assert.NotEmpty(t, req.GetRequestID())
		assert.NotEqual(t, req.GetID(), req.GetRequestID())
		assert.Equal(t, "client-1", req.GetRequesterID())
	})

	t.Run("NewBaseResponse answers a request", func(t *testing.T) {
		resp := NewBaseResponse("req-1")
		assert.True(t, resp.IsSuccess())
		assert.Equal(t, "req-1", resp.GetRequestID())
		resp.SetRequestID("req-2")
		assert.Equal(t, "req-2", resp.GetRequestID())
	})
}

func TestTypeName(t *testing.T) {
	tests := []struct {
		name string
		msg  any
		want string
	}{
		{"pointer", &orderPlaced{}, "orderPlaced"},
		{"value", orderPlaced{}, "orderPlaced"},
		{"override", &renamed{}, "OrderRenamed"},
		{"generic instantiation", &generic[int]{}, "generic"},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeName(tt.msg))
		})
	}
}

func TestRoleMatches(t *testing.T) {
	msgs := map[Role]Message{
		RoleRequest:  &getOrder{},
		RoleCommand:  &placeOrder{},
		RoleEvent:    &orderPlaced{},
		RoleResponse: &orderDetails{},
	}

	for role, msg := range msgs {
		for _, other := range Roles() {
			assert.Equal(t, role == other, other.Matches(msg), "%s matches %T", other, msg)
		}
	}
}

func TestRoleNames(t *testing.T) {
	assert.Equal(t, "Commands", RoleCommand.Plural())
	assert.Equal(t, "Role(9)", Role(9).String())
	assert.False(t, Role(-1).Valid())

	for _, in := range []string{"command", "Commands", " COMMAND "} {
		r, err := ParseRole(in)
		require.NoError(t, err)
		assert.Equal(t, RoleCommand, r)
	}

	_, err := ParseRole("query")
	assert.Error(t, err)
}

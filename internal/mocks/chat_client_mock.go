package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"quest-server/pkg/ai"
)

// MockChatClient is a mock type for the ai.ChatClient type
type MockChatClient struct {
	mock.Mock
}

// Chat provides a mock function with given fields: ctx, messages, opts
func (_m *MockChatClient) Chat(ctx context.Context, messages []ai.Message, opts *ai.ChatOptions) (*ai.ChatResponse, error) {
	ret := _m.Called(ctx, messages, opts)

	var r0 *ai.ChatResponse
	if rf, ok := ret.Get(0).(func(context.Context, []ai.Message, *ai.ChatOptions) *ai.ChatResponse); ok {
		r0 = rf(ctx, messages, opts)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*ai.ChatResponse)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, []ai.Message, *ai.ChatOptions) error); ok {
		r1 = rf(ctx, messages, opts)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockChatClient creates a new instance of MockChatClient. It also registers a testing interface on the mock.
// The first argument is typically a *testing.T value.
func NewMockChatClient(t interface {
	mock.TestingT
	Helper()
}) *MockChatClient {
	m := &MockChatClient{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ ai.ChatClient = (*MockChatClient)(nil)

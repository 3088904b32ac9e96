package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/pave-study/pkg/errors"
)

func TestAskValidatesHistory(t *testing.T) {
	svc := NewService(Config{}, &stubClassifier{}, &stubDispatcher{}, newTestLogger())
	cases := []struct {
		name    string
		history []HistoryMessage
	}{
		{name: "empty history"},
		{name: "last from model", history: []HistoryMessage{userMessage("oi"), {Role: RoleModel, Parts: []Part{{Text: "olá"}}}}},
		{name: "blank user text", history: []HistoryMessage{{Role: RoleUser, Parts: []Part{{Text: "  "}}}}},
		{name: "no parts", history: []HistoryMessage{{Role: RoleUser}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Ask(context.Background(), AskRequest{History: tc.history})
			require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
		})
	}
}

func TestAskRejectsModelOutsideAllowlist(t *testing.T) {
	svc := NewService(Config{AllowedModels: []string{"gpt-4o-mini"}}, &stubClassifier{}, &stubDispatcher{}, newTestLogger())
	_, err := svc.Ask(context.Background(), AskRequest{History: []HistoryMessage{userMessage("oi")}, ModelName: "gpt-5"})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
}

func TestAskRoutesAndExecutes(t *testing.T) {
	var (
		gotHistory []HistoryMessage
		gotLatest  string
		gotModel   string
		deadline   bool
	)
	router := &stubClassifier{classifyFn: func(ctx context.Context, history []HistoryMessage, latest string) (RouterDecision, error) {
		gotHistory = history
		gotLatest = latest
		gotModel = modelFrom(ctx, "default")
		_, deadline = ctx.Deadline()
		return RouterDecision{Intent: IntentInfo}, nil
	}}
	dispatcher := &stubDispatcher{executeFn: func(_ context.Context, decision RouterDecision, userQuery string, history []HistoryMessage) ResponsePayload {
		require.Equal(t, IntentInfo, decision.Intent)
		require.Equal(t, "o que é o pave?", userQuery)
		require.Len(t, history, 2)
		return newPayload("info")
	}}
	svc := NewService(Config{AllowedModels: []string{"GPT-4o-mini"}, RequestTimeout: time.Minute}, router, dispatcher, newTestLogger())

	history := []HistoryMessage{{Role: RoleModel, Parts: []Part{{Text: "Olá!"}}}, userMessage("o que é o pave?")}
	payload, err := svc.Ask(context.Background(), AskRequest{History: history, ModelName: "gpt-4o-mini"})
	require.NoError(t, err)
	require.Equal(t, "info", *payload.Commentary)
	require.Len(t, gotHistory, 1)
	require.Equal(t, "o que é o pave?", gotLatest)
	require.Equal(t, "gpt-4o-mini", gotModel)
	require.True(t, deadline)
}

func TestAskRouterFailureIsLLMError(t *testing.T) {
	router := &stubClassifier{classifyFn: func(context.Context, []HistoryMessage, string) (RouterDecision, error) {
		return RouterDecision{}, errors.New("network")
	}}
	svc := NewService(Config{}, router, &stubDispatcher{}, newTestLogger())

	_, err := svc.Ask(context.Background(), AskRequest{History: []HistoryMessage{userMessage("oi")}})
	require.True(t, apperrors.IsCode(err, apperrors.CodeLLM))
}

type stubClassifier struct {
	classifyFn func(ctx context.Context, history []HistoryMessage, latest string) (RouterDecision, error)
}

func (s *stubClassifier) Classify(ctx context.Context, history []HistoryMessage, latest string) (RouterDecision, error) {
	if s.classifyFn != nil {
		return s.classifyFn(ctx, history, latest)
	}
	return RouterDecision{Intent: IntentUnknown}, nil
}

type stubDispatcher struct {
	executeFn func(ctx context.Context, decision RouterDecision, userQuery string, history []HistoryMessage) ResponsePayload
}

func (s *stubDispatcher) Execute(ctx context.Context, decision RouterDecision, userQuery string, history []HistoryMessage) ResponsePayload {
	if s.executeFn != nil {
		return s.executeFn(ctx, decision, userQuery, history)
	}
	return newPayload("")
}

package validator

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/NeuralTrust/ReplyGuard/pkg/policy"
)

type stubClassifier struct {
	scores map[string]float64
	err    error
}

func (s stubClassifier) Score(_ context.Context, _ string, _ []string) (map[string]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.scores, nil
}

type stubSource struct {
	policy *policy.ContentPolicy
}

func (s stubSource) Fetch(_ context.Context) (*policy.ContentPolicy, error) {
	return s.policy, nil
}

func newTestStore(t *testing.T, p *policy.ContentPolicy) *policy.Store {
	t.Helper()
	store := policy.NewStore(stubSource{policy: p}, logrus.New(), policy.StoreOpts{})
	t.Cleanup(store.Shutdown)
	return store
}

func compiledPolicy(t *testing.T, p policy.ContentPolicy) *policy.ContentPolicy {
	t.Helper()
	if p.Version == 0 {
		p.Version = 2
	}
	require.NoError(t, p.Compile())
	return &p
}

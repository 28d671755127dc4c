package weightproof

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/verdant-network/walletnode/model"
)

// Mock is a testify mock of ValidatorI.
type Mock struct {
	mock.Mock
}

func (m *Mock) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	args := m.Called(ctx, checkLiveness)
	return args.Int(0), args.String(1), args.Error(2)
}

func (m *Mock) ValidateWeightProof(ctx context.Context, proof *model.WeightProof, localSES []*model.SubEpochSummary) (*ValidationResult, error) {
	args := m.Called(ctx, proof, localSES)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*ValidationResult), args.Error(1)
}

package fund

import (
	"SlaEscrow/internal/calculator"
	"SlaEscrow/internal/model"
)

// RequireCollateral fails with ErrInsufficientCollateral unless the
// provider pool covers leverage times the user pool.
func RequireCollateral(ag *model.Agreement) error {
	ok, err := calculator.Collateralized(ag.ProviderPool, ag.UserPool, ag.Leverage)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrInsufficientCollateral.Wrapf("provider pool %d < %s x user pool %d", ag.ProviderPool, ag.Leverage, ag.UserPool)
	}
	return nil
}

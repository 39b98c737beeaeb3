package biz

import (
	"credit-service/internal/clock"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	clock.New,
	NewCreditConfig,
	NewCreditUseCase,
	NewGuestQuotaUseCase,
	NewPromotionUseCase,
	NewCheckoutUseCase, // 组合 UseCase
)

package dto

import (
	"github.com/go-playground/validator/v10"

	"rota-planner/backend/internal/model"
)

// RegisterValidators 注册自定义 binding 校验标签
func RegisterValidators(v *validator.Validate) error {
	rules := map[string][]string{
		"availability":       {model.AvailabilityGreen, model.AvailabilityYellow, model.AvailabilityRed},
		"trade_decision":     {"accept", "decline"},
		"fiscal_year_status": model.FiscalYearStatuses,
		"event_category":     model.EventCategories,
		"trade_status": {
			model.TradeProposed, model.TradePeerAccepted, model.TradePeerDeclined,
			model.TradeAdminApproved, model.TradeAdminDenied, model.TradeCancelled,
		},
	}
	for tag, allowed := range rules {
		if err := v.RegisterValidation(tag, oneOf(allowed)); err != nil {
			return err
		}
	}
	return nil
}

func oneOf(allowed []string) validator.Func {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(fl validator.FieldLevel) bool {
		_, ok := set[fl.Field().String()]
		return ok
	}
}

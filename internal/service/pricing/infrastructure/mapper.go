// internal/service/pricing/infrastructure/mapper.go
package infrastructure

import "atlas/internal/service/pricing/domain"

// ToDiscountModel 把领域模型转换为数据库模型。
// 新建时只写入商品/变体级的适用目标，分类目标由目录维护工具直接落库。
func ToDiscountModel(d *domain.Discount) *DiscountModel {
	model := &DiscountModel{
		Title:                       d.Title,
		Mode:                        d.Mode,
		Type:                        d.Type,
		ValueType:                   string(d.ValueType),
		Value:                       d.Value,
		ValueLimitAmount:            d.ValueLimitAmount,
		Entitle:                     string(d.Entitle),
		Prerequisite:                string(d.Prerequisite),
		PrerequisiteValue:           d.PrerequisiteValue,
		CombinesWithProductDiscount: d.CombinesWithProductDiscount,
		CombinesWithOrderDiscount:   d.CombinesWithOrderDiscount,
		UsageLimit:                  d.UsageLimit,
		Usage:                       d.Usage,
		OnePerCustomer:              d.OnePerCustomer,
		RuleDefinition:              d.RuleDefinition,
		Active:                      d.Active,
		StartOn:                     d.StartOn,
		EndOn:                       d.EndOn,
		Void:                        d.Void,
	}
	model.ID = d.ID
	for id := range d.EntitledProductIDs {
		model.Entitlements = append(model.Entitlements, DiscountEntitlementModel{
			TargetType: entitlementTargetProduct, TargetID: id,
		})
	}
	for id := range d.EntitledVariantIDs {
		model.Entitlements = append(model.Entitlements, DiscountEntitlementModel{
			TargetType: entitlementTargetVariant, TargetID: id,
		})
	}
	return model
}

// ToDomainDiscount 把数据库模型转换为领域模型。
// categoryVariantIDs 是该折扣的分类目标展开后的变体集合，
// 会被并入 EntitledVariantIDs，引擎侧只做集合比较。
func ToDomainDiscount(model *DiscountModel, categoryVariantIDs []uint) *domain.Discount {
	if model == nil {
		return nil
	}
	d := &domain.Discount{
		ID:                          model.ID,
		Title:                       model.Title,
		Mode:                        model.Mode,
		Type:                        model.Type,
		ValueType:                   domain.ValueType(model.ValueType),
		Value:                       model.Value,
		ValueLimitAmount:            model.ValueLimitAmount,
		Entitle:                     domain.Entitle(model.Entitle),
		Prerequisite:                domain.Prerequisite(model.Prerequisite),
		PrerequisiteValue:           model.PrerequisiteValue,
		CombinesWithProductDiscount: model.CombinesWithProductDiscount,
		CombinesWithOrderDiscount:   model.CombinesWithOrderDiscount,
		UsageLimit:                  model.UsageLimit,
		Usage:                       model.Usage,
		OnePerCustomer:              model.OnePerCustomer,
		RuleDefinition:              model.RuleDefinition,
		Active:                      model.Active,
		StartOn:                     model.StartOn,
		EndOn:                       model.EndOn,
		Void:                        model.Void,
		EntitledProductIDs:          map[uint]struct{}{},
		EntitledVariantIDs:          map[uint]struct{}{},
	}
	for _, e := range model.Entitlements {
		switch e.TargetType {
		case entitlementTargetProduct:
			d.EntitledProductIDs[e.TargetID] = struct{}{}
		case entitlementTargetVariant:
			d.EntitledVariantIDs[e.TargetID] = struct{}{}
		}
	}
	for _, id := range categoryVariantIDs {
		d.EntitledVariantIDs[id] = struct{}{}
	}
	return d
}

// internal/service/pricing/infrastructure/gorm_model.go
package infrastructure

import (
	"time"

	"atlas/internal/service/pricing/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DiscountModel 对应数据库中的 discounts 表。
type DiscountModel struct {
	gorm.Model
	Title                       string           `gorm:"size:255;uniqueIndex"`
	Mode                        domain.Mode      `gorm:"size:16;index:idx_discount_catalog"`
	Type                        domain.Type      `gorm:"size:16;index:idx_discount_catalog"`
	ValueType                   string           `gorm:"size:16"`
	Value                       decimal.Decimal  `gorm:"type:decimal(18,2)"`
	ValueLimitAmount            *decimal.Decimal `gorm:"type:decimal(18,2)"`
	Entitle                     string           `gorm:"size:16"`
	Prerequisite                string           `gorm:"size:20"`
	PrerequisiteValue           decimal.Decimal  `gorm:"type:decimal(18,2)"`
	CombinesWithProductDiscount bool
	CombinesWithOrderDiscount   bool
	UsageLimit                  *int
	Usage                       int
	OnePerCustomer              bool
	RuleDefinition              string `gorm:"type:text"`
	Active                      bool
	StartOn                     time.Time
	EndOn                       *time.Time
	Void                        bool

	Entitlements []DiscountEntitlementModel `gorm:"foreignKey:DiscountID"`
}

func (DiscountModel) TableName() string {
	return "discounts"
}

// DiscountEntitlementModel 记录折扣适用范围的一个目标(商品/变体/分类)。
type DiscountEntitlementModel struct {
	ID         uint   `gorm:"primaryKey"`
	DiscountID uint   `gorm:"index"`
	TargetType string `gorm:"size:16"`
	TargetID   uint
}

func (DiscountEntitlementModel) TableName() string {
	return "discount_entitlements"
}

const (
	entitlementTargetProduct  = "PRODUCT"
	entitlementTargetVariant  = "VARIANT"
	entitlementTargetCategory = "CATEGORY"
)

package model

import (
	"time"
)

// Shop shop model
type Shop struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement;comment:商铺ID" json:"id"`
	Name      string    `gorm:"type:varchar(128);not null;comment:商铺名称" json:"name"`
	TypeID    uint64    `gorm:"type:bigint unsigned;not null;index;comment:商铺类型ID" json:"type_id"`
	Images    *string   `gorm:"type:varchar(1024);comment:商铺图片，逗号分隔" json:"images,omitempty"`
	Area      *string   `gorm:"type:varchar(128);comment:商圈" json:"area,omitempty"`
	Address   string    `gorm:"type:varchar(255);not null;comment:地址" json:"address"`
	X         float64   `gorm:"type:double;comment:经度" json:"x"`
	Y         float64   `gorm:"type:double;comment:纬度" json:"y"`
	AvgPrice  int64     `gorm:"type:bigint unsigned;comment:均价（分）" json:"avg_price"`
	Sold      int       `gorm:"type:int unsigned;not null;default:0;comment:销量" json:"sold"`
	Comments  int       `gorm:"type:int unsigned;not null;default:0;comment:评论数" json:"comments"`
	Score     int       `gorm:"type:int unsigned;not null;default:0;comment:评分（1-50）" json:"score"`
	OpenHours *string   `gorm:"type:varchar(32);comment:营业时间" json:"open_hours,omitempty"`
	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:创建时间" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP;comment:更新时间" json:"updated_at"`
}

// TableName set name
func (Shop) TableName() string {
	return "shops"
}

// Package types 定义服务端与客户端共享的领域词汇与传输结构：
// 记录分类、字段表、附件类型以及 REST 接口的请求/响应体.
package types

import (
	"fmt"
	"strings"
)

// Category 记录所属的房源池，封闭枚举.
type Category uint8

const (
	CategoryWallet Category = iota // 自营钱包房源
	CategoryRD                     // RD 合作房源
	CategoryShared                 // 共享房源
	categoryCount
)

// CategoryConfig 分类的静态配置.
type CategoryConfig struct {
	Name        string // 线上名称（查询参数与存储值）
	Label       string // 展示名称
	Description string
}

// categoryTable 以枚举值为下标，新增分类必须同时补齐此表.
var categoryTable = [...]CategoryConfig{
	CategoryWallet: {Name: "wallet", Label: "Wallet", Description: "properties held in the own wallet"},
	CategoryRD:     {Name: "rd", Label: "RD", Description: "properties sourced through RD partners"},
	CategoryShared: {Name: "shared", Label: "Shared", Description: "properties shared by other brokers"},
}

// 表长度与枚举数量不一致时编译失败.
var (
	_ [len(categoryTable) - int(categoryCount)]struct{}
	_ [int(categoryCount) - len(categoryTable)]struct{}
)

// Categories 返回全部分类，按声明顺序.
func Categories() []Category {
	out := make([]Category, 0, categoryCount)
	for c := Category(0); c < categoryCount; c++ {
		out = append(out, c)
	}

	return out
}

// ParseCategory 解析线上名称，大小写不敏感.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for c := Category(0); c < categoryCount; c++ {
		if categoryTable[c].Name == s {
			return c, nil
		}
	}

	return 0, fmt.Errorf("unknown category %q", s)
}

// Valid 报告是否为已声明的分类.
func (c Category) Valid() bool { return c < categoryCount }

// Config 返回分类配置；未知分类返回零值与 false.
func (c Category) Config() (CategoryConfig, bool) {
	if !c.Valid() {
		return CategoryConfig{}, false
	}

	return categoryTable[c], true
}

// String 返回线上名称.
func (c Category) String() string {
	if cfg, ok := c.Config(); ok {
		return cfg.Name
	}

	return fmt.Sprintf("category(%d)", uint8(c))
}

// Label 返回展示名称.
func (c Category) Label() string {
	cfg, _ := c.Config()

	return cfg.Label
}

// MarshalText 实现 encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", uint8(c))
	}

	return []byte(c.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}

	*c = parsed

	return nil
}

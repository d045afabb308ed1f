package service

import (
	"regexp"
	"strconv"
)

// DefaultAxisCount 规格文本解析不出轴数时的回退值.
// 策略名: default-to-3-axes-on-unparseable-spec.
// 回退不是错误, 调用方负责记日志.
const DefaultAxisCount = 3

var axisPattern = regexp.MustCompile(`(?i)(\d+)\s*-\s*axis`)

// AxisRequirement 轴数解析结果
type AxisRequirement struct {
	Axes        int  `json:"axes"`
	UsedDefault bool `json:"used_default"`
}

// ParseAxisRequirement 从自由文本规格提取轴数, 如 "3-axis milling" → 3.
// 匹配不到或数值非正时回退到 DefaultAxisCount, 不返回错误.
func ParseAxisRequirement(specText string) AxisRequirement {
	m := axisPattern.FindStringSubmatch(specText)
	if m == nil {
		return AxisRequirement{Axes: DefaultAxisCount, UsedDefault: true}
	}
	axes, err := strconv.Atoi(m[1])
	if err != nil || axes <= 0 {
		return AxisRequirement{Axes: DefaultAxisCount, UsedDefault: true}
	}
	return AxisRequirement{Axes: axes}
}

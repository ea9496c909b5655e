package scoring

import (
	"strings"
	"unicode/utf8"
)

// DefaultDecompositionThreshold 达到该分数的消息需要任务分解
const DefaultDecompositionThreshold = 50

// Approach 任务分解方式
type Approach string

const (
	ApproachProductDevelopment Approach = "product_development"
	ApproachResearchAnalysis   Approach = "research_analysis"
	ApproachDesignDevelopment  Approach = "design_development"
	ApproachMarketingCampaign  Approach = "marketing_campaign"
	ApproachGeneralProject     Approach = "general_project"
)

// Complexity 复杂度评估结果
type Complexity struct {
	Score              int      `json:"score"`
	NeedsDecomposition bool     `json:"needs_decomposition"`
	Approach           Approach `json:"suggested_approach"`
}

// AnalyzeComplexity 使用默认阈值评估消息复杂度
func AnalyzeComplexity(text string) Complexity {
	return AnalyzeComplexityWithThreshold(text, DefaultDecompositionThreshold)
}

// AnalyzeComplexityWithThreshold 评估消息复杂度，score >= threshold 时需要分解
func AnalyzeComplexityWithThreshold(text string, threshold int) Complexity {
	score := ComplexityScore(text)
	return Complexity{
		Score:              score,
		NeedsDecomposition: score >= threshold,
		Approach:           SuggestApproach(text),
	}
}

// ComplexityScore 计算复杂度分数，各类指标分数相加
func ComplexityScore(text string) int {
	lower := strings.ToLower(text)
	score := 10*countMatches(lower, multiStepPhrases) +
		15*countMatches(lower, domainKeywords) +
		20*countMatches(lower, comprehensiveKeywords) +
		15*countMatches(lower, projectKeywords)

	// 长度按字符计
	length := utf8.RuneCountInString(text)
	if length > 200 {
		score += 10
	}
	if length > 500 {
		score += 20
	}
	return score
}

// SuggestApproach 按固定顺序匹配关键词组合，未命中时为通用项目
func SuggestApproach(text string) Approach {
	lower := strings.ToLower(text)
	has := func(s string) bool { return strings.Contains(lower, s) }

	switch {
	case has("产品") && has("开发"):
		return ApproachProductDevelopment
	case has("研究") || has("分析"):
		return ApproachResearchAnalysis
	case has("设计") && has("开发"):
		return ApproachDesignDevelopment
	case has("营销") || has("推广"):
		return ApproachMarketingCampaign
	default:
		return ApproachGeneralProject
	}
}

// countMatches 统计列表中出现在 text 里的不同关键词个数
func countMatches(text string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(text, k) {
			n++
		}
	}
	return n
}

package scoring

import (
	"slices"
	"strings"
)

// Candidate 参与选择的智能体，只需要能力标签
type Candidate struct {
	ID           string
	Capabilities []string
}

// Breakdown 单个候选的得分明细
type Breakdown struct {
	Keyword    int `json:"keyword"`
	Capability int `json:"capability"`
	History    int `json:"history"`
}

// Total 总分
func (b Breakdown) Total() int {
	return b.Keyword + b.Capability + b.History
}

// Score 计算候选对消息的匹配分
func Score(capabilities []string, text string) Breakdown {
	lower := strings.ToLower(text)
	return Breakdown{
		Keyword:    KeywordScore(capabilities, lower),
		Capability: CapabilityScore(capabilities, lower),
		History:    HistoryScore(capabilities),
	}
}

// KeywordScore 每个能力的每个命中关键词 +10
func KeywordScore(capabilities []string, lowerText string) int {
	score := 0
	for _, c := range capabilities {
		score += 10 * countMatches(lowerText, capabilityKeywords[c])
	}
	return score
}

// CapabilityScore 每个命中的请求类别，持有对应能力 +20
func CapabilityScore(capabilities []string, lowerText string) int {
	score := 0
	for _, cl := range classifiers {
		if !containsAny(lowerText, cl.keywords) {
			continue
		}
		for _, c := range cl.capabilities {
			if slices.Contains(capabilities, c) {
				score += 20
				break
			}
		}
	}
	return score
}

// HistoryScore 经验分的静态近似：能力数 × 2
func HistoryScore(capabilities []string) int {
	return 2 * len(capabilities)
}

// IsAnalysisRequest 是否为分析类请求
func IsAnalysisRequest(text string) bool { return classify(text, "analysis") }

// IsTechnicalRequest 是否为技术类请求
func IsTechnicalRequest(text string) bool { return classify(text, "technical") }

// IsCreativeRequest 是否为创意类请求
func IsCreativeRequest(text string) bool { return classify(text, "creative") }

// IsBusinessRequest 是否为商业类请求
func IsBusinessRequest(text string) bool { return classify(text, "business") }

// SelectBest 返回得分最高的候选下标，同分时取名册中靠前者。
// 候选为空时 ok 为 false。
func SelectBest(candidates []Candidate, text string) (index int, ok bool) {
	best, bestScore := -1, 0
	for i, c := range candidates {
		s := Score(c.Capabilities, text).Total()
		if best < 0 || s > bestScore {
			best, bestScore = i, s
		}
	}
	return best, best >= 0
}

func classify(text, name string) bool {
	lower := strings.ToLower(text)
	for _, cl := range classifiers {
		if cl.name == name {
			return containsAny(lower, cl.keywords)
		}
	}
	return false
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

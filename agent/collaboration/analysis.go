package collaboration

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	baseConfidence = 0.5
	confidenceStep = 0.1
	minConfidence  = 0.1
	maxConfidence  = 1.0

	// PlaceholderConfidence 生成立场失败时的置信度
	PlaceholderConfidence = minConfidence

	defaultScore = 5
	minScore     = 1
	maxScore     = 10
)

var (
	hedgingMarkers   = []string{"可能", "也许", "或许", "不确定", "大概", "似乎", "视情况"}
	assertiveMarkers = []string{"肯定", "一定", "必须", "确信", "明确", "显然", "毫无疑问"}
	// 果断用语的否定形式按含糊用语计
	negatedAssertive = []string{"不一定", "不肯定", "不确信", "不明确", "不必须", "未必"}

	positiveSentiment = []string{"认可", "赞同", "支持", "优秀", "满意", "可取"}
	negativeSentiment = []string{"反对", "担心", "不足", "风险", "欠缺", "质疑"}

	scorePattern = regexp.MustCompile(`(\d+)\s*分`)
)

// AntonymPair 一组对立表述
type AntonymPair struct {
	Pro string
	Con string
}

// DefaultAntonymPairs 冲突检测使用的对立词
var DefaultAntonymPairs = []AntonymPair{
	{"支持", "反对"},
	{"同意", "不同意"},
	{"赞成", "反对"},
	{"可行", "不可行"},
	{"优点", "缺点"},
	{"增加", "减少"},
	{"乐观", "悲观"},
	{"必要", "不必要"},
}

// Confidence 根据语气词估计立场的置信度：从 0.5 起，
// 每个果断用语 +0.1，每个含糊用语 -0.1，结果限制在 [0.1, 1.0]。
// "不一定" 这类否定形式先从文本中去掉，再统计果断用语。
func Confidence(text string) float64 {
	assertive := text
	for _, w := range negatedAssertive {
		assertive = strings.ReplaceAll(assertive, w, "")
	}
	c := baseConfidence
	c += confidenceStep * float64(countPresent(assertive, assertiveMarkers))
	c -= confidenceStep * float64(countPresent(text, hedgingMarkers)+countPresent(text, negatedAssertive))
	return clampFloat(c, minConfidence, maxConfidence)
}

// ConflictScore 两段文本在对立词组上的分歧比例。
// 一组对立词只在双方各执一端时计入。
func ConflictScore(a, b string, pairs []AntonymPair) float64 {
	if len(pairs) == 0 {
		return 0
	}
	split := 0
	for _, p := range pairs {
		aPro, aCon := sides(a, p)
		bPro, bCon := sides(b, p)
		if (aPro && bCon) || (aCon && bPro) {
			split++
		}
	}
	return float64(split) / float64(len(pairs))
}

// sides 判断文本是否包含对立词的正反两端。
// 反向词包含正向词时（同意/不同意），先去掉反向词再检查正向词。
func sides(text string, p AntonymPair) (pro, con bool) {
	con = strings.Contains(text, p.Con)
	rest := text
	if strings.Contains(p.Con, p.Pro) {
		rest = strings.ReplaceAll(text, p.Con, "")
	}
	pro = strings.Contains(rest, p.Pro)
	return pro, con
}

// ParseScore 从评价文本中解析 1-10 分。取最后一个 "N分"，
// 跳过 "满分N分" 与 "N分制" 这类量表说明；
// 没有可用分数时以 5 分为基准，每个正面词 +1，每个负面词 -1。
func ParseScore(text string) int {
	matches := scorePattern.FindAllStringSubmatchIndex(text, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		if isScaleNote(text, m[0], m[1]) {
			continue
		}
		if n, err := strconv.Atoi(text[m[2]:m[3]]); err == nil {
			return clampInt(n, minScore, maxScore)
		}
	}
	score := defaultScore + countPresent(text, positiveSentiment) - countPresent(text, negativeSentiment)
	return clampInt(score, minScore, maxScore)
}

// isScaleNote 判断 text[start:end] 处的 "N分" 是否在说明量表而非打分
func isScaleNote(text string, start, end int) bool {
	before := strings.TrimRight(text[:start], " ")
	for _, p := range []string{"满分", "满分为", "满分是", "总分", "总分为"} {
		if strings.HasSuffix(before, p) {
			return true
		}
	}
	return strings.HasPrefix(text[end:], "制")
}

func countPresent(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package scoring

import (
	"sort"
	"strings"
)

// topicKeywords 表中出现过的主题词，按首次出现顺序去重
var topicKeywords = buildTopicKeywords()

func buildTopicKeywords() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(words []string) {
		for _, w := range words {
			if !seen[w] {
				seen[w] = true
				out = append(out, w)
			}
		}
	}
	add(domainKeywords)
	add(projectKeywords)

	caps := make([]string, 0, len(capabilityKeywords))
	for c := range capabilityKeywords {
		caps = append(caps, c)
	}
	sort.Strings(caps)
	for _, c := range caps {
		add(capabilityKeywords[c])
	}
	for _, cl := range classifiers {
		add(cl.keywords)
	}
	return out
}

// Keywords 返回消息中命中的主题词，顺序固定。
// 连接词与程度词不计入，它们不能代表话题。
func Keywords(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, w := range topicKeywords {
		if strings.Contains(lower, w) {
			out = append(out, w)
		}
	}
	return out
}

package scoring

// 复杂度指标
var (
	multiStepPhrases      = []string{"步骤", "然后", "接下来", "第一", "第二", "最后"}
	domainKeywords        = []string{"设计", "开发", "测试", "分析", "研究", "营销"}
	comprehensiveKeywords = []string{"完整的", "全面的", "详细的", "系统的", "端到端", "整体"}
	projectKeywords       = []string{"项目", "方案", "计划", "策略", "系统", "平台"}
)

// capabilityKeywords 能力标签对应的关键词，每命中一个 +10
var capabilityKeywords = map[string][]string{
	"data_analysis":       {"数据", "分析", "图表", "统计", "报表", "可视化", "预测", "模型"},
	"research":            {"搜索", "查找", "研究", "信息", "调研", "文献", "市场", "趋势"},
	"coding":              {"代码", "编程", "脚本", "函数", "算法", "架构", "系统", "开发", "技术"},
	"legal_review":        {"法律", "合规", "风险", "合同", "条款", "法规", "政策"},
	"financial_modeling":  {"财务", "预算", "成本", "投资", "收益", "现金流", "估值"},
	"ui_ux_design":        {"设计", "界面", "用户体验", "交互", "原型", "视觉", "品牌"},
	"behavioral_analysis": {"心理", "行为", "用户", "情感", "决策", "动机"},
	"product_strategy":    {"产品", "需求", "功能", "用户", "市场", "竞品", "路径"},
	"marketing_strategy":  {"营销", "推广", "品牌", "客户", "渠道", "转化", "获客"},
	"project_management":  {"项目", "管理", "计划", "协调", "进度", "团队", "资源"},
	"business_strategy":   {"战略", "商业", "运营", "流程", "优化", "变革"},
}

// classifier 请求类别判断：命中任一关键词即属于该类，
// 持有 capabilities 中任一能力的智能体获得 +20
type classifier struct {
	name         string
	keywords     []string
	capabilities []string
}

var classifiers = []classifier{
	{
		name:         "analysis",
		keywords:     []string{"分析", "数据", "统计", "报告", "趋势", "对比"},
		capabilities: []string{"data_analysis", "business_intelligence"},
	},
	{
		name:         "technical",
		keywords:     []string{"代码", "编程", "开发", "系统", "架构", "技术", "算法"},
		capabilities: []string{"coding", "system_architecture"},
	},
	{
		name:         "creative",
		keywords:     []string{"设计", "创意", "界面", "视觉", "品牌", "用户体验"},
		capabilities: []string{"ui_ux_design", "creative_strategy"},
	},
	{
		name:         "business",
		keywords:     []string{"商业", "战略", "运营", "管理", "流程", "优化"},
		capabilities: []string{"business_strategy", "operations_optimization"},
	},
}

package service

import (
	"fmt"
	"strings"
)

// companyQueryTemplate is the web-search query used for per-company news. The
// keyword pile steers the agent toward concrete events instead of price recaps.
const companyQueryTemplate = `%s (%s) breaking news leak rumor product roadmap earnings guidance SEC filing investigation lawsuit antitrust regulatory supply chain recall partnership acquisition competitor product launch "last day"`

// BuildCompanyQuery returns the search query for a single company.
func BuildCompanyQuery(companyName, ticker string) string {
	return fmt.Sprintf(companyQueryTemplate, companyName, ticker)
}

// BuildNewsSearchPrompt builds the news retrieval prompt. The model is asked
// to run a web search and emit a JSON array restricted to the target date.
func BuildNewsSearchPrompt(query, targetDate, tzName string, maxResults int) string {
	return fmt.Sprintf(`你是一个面向投资者的"美股新闻检索器"。请使用 web search 工具搜索，并**只返回**在以下日期发布的新闻：

目标日期（严格遵守，只要这一天）：%s（时区语境：%s）

检索主题：%s

筛选要求（非常重要）：
1) **只要"具体新进展/爆料/公告/监管/供应链/产品路线图/竞争对手动作/核心技术突破/市场观点变化"**。
2) **排除**：泛泛的"估值高/便宜""年初展望""仅复述股价涨跌/收盘价/盘中波动"但没有新事件的文章。
3) 如果同一事件有多篇重复报道，只保留信息量最大的 1 篇。

输出要求：
- 返回 %d 条，按"信息量/影响力"排序
- **必须输出有效 JSON 数组**，不要输出任何解释文字
- 每条包含字段：
  - title
  - content（<=200字，突出"发生了什么 + 可能影响"，不要只写股价表现）
  - url
  - source
  - published_date（YYYY-MM-DD；必须等于 %s。如果网页未给出，请尽量从页面中推断；推断不了则不要返回该条）
`, targetDate, tzName, query, maxResults, targetDate)
}

// BuildIndustryQueriesPrompt asks the model to produce industry-level search
// queries that deliberately avoid the company name and ticker.
func BuildIndustryQueriesPrompt(companyName, ticker, mainIndustry string, subIndustries []string, targetDate, tzName string, maxQueries int) string {
	sub := joinSubIndustries(subIndustries)
	if mainIndustry == "" {
		mainIndustry = "Unknown"
	}
	if sub == "" {
		sub = "Unknown"
	}
	return fmt.Sprintf(`You are a professional public equities investor.
Generate %d web search queries to find MAJOR industry/competitor/supply-chain/regulatory/technology-breakthrough news
that could affect %s (%s) on %s (timezone context: %s).

Company context:
- Main industry: %s
- Sub-industries (if any): %s

Rules (critical):
1) Do NOT include the company name "%s" nor the ticker "%s" in the queries unless absolutely necessary.
2) Focus on: competitors moves, key suppliers/components, channel checks/demand signals, pricing, recalls, export controls,
   regulation/antitrust, standards, major product launches by peers, M&A, investigations, sanctions.
3) Prefer concise English queries that work well for web search.
4) Output ONLY a valid JSON array of strings. No explanation.
`, maxQueries, companyName, ticker, targetDate, tzName, mainIndustry, sub, companyName, ticker)
}

// BuildRelevancePrompt asks the model to rank industry-level candidates by
// likely impact on the company. Candidate lines are pre-formatted and indexed
// from zero.
func BuildRelevancePrompt(companyName, ticker, mainIndustry string, subIndustries []string, candidateLines []string, topK int) string {
	sub := joinSubIndustries(subIndustries)
	if mainIndustry == "" {
		mainIndustry = "Unknown"
	}
	if sub == "" {
		sub = "Unknown"
	}
	return fmt.Sprintf(`You are an experienced investor building an "industry context" section.
Select the items that are most likely to impact %s (%s) within 6-12 months.

Company profile (high-level):
- Main industry: %s
- Sub-industries: %s

Candidate news items (may NOT mention the company; that's OK):
%s

Selection rules (critical):
1) Prefer concrete new developments (regulation, supply chain disruption, major competitor action, tech breakthrough, investigations, sanctions).
2) Avoid generic "stock up/down", "year outlook" with no new event.
3) Choose up to %d items. Rank by impact.

Output format (ONLY valid JSON array, no explanation):
Each element: {"index": <int>, "relevance_score": <0-100>, "why": "<short chinese reason>" }
`, companyName, ticker, mainIndustry, sub, strings.Join(candidateLines, "\n"), topK)
}

// summaryRetryRules are appended to the summary prompt when the first reply
// was vague or lacked citation markers.
const summaryRetryRules = "7) 必须从清单中挑出至少 2 条最具体的“事件/进展”（例如诉讼/监管/供应链/产品计划/安全事件），分别点出影响并引用。\n" +
	"8) 每句话都必须包含引用编号；不要输出“没有显著公司事件”。"

// BuildSummaryPrompt builds the cited investor-summary prompt. referenceLines
// are numbered 1..itemCount and are the only material the model may cite.
func BuildSummaryPrompt(ticker, companyName, targetDate string, referenceLines []string, itemCount int, extraRules string) string {
	return fmt.Sprintf(`请用中文输出 %s（%s）在 %s 这一天的“投资者摘要”（2-4 句话），要求：

1) 只基于下面提供的新闻清单，不要编造。
2) 重点写“发生了什么 + 可能影响（基本面/竞争格局/监管/供应链/需求/利润率等）”。
3) **每句话**必须至少包含 1 个引用编号，格式必须是 [数字]，例如：[1] 或 [2][5]。
4) 引用编号只能引用下面清单中的条目序号（1..%d）。
5) 不要输出空泛的“没有显著公司事件/主要是观点”作为整段结论；即使信息偏观点，也要指出**最具体**的 1-2 条内容是什么，并引用。
6) 严格不要加任何前缀（如“好的/以下是摘要/摘要：”）。
%s

新闻清单（仅供引用）：
%s
`, ticker, companyName, targetDate, itemCount, extraRules, strings.Join(referenceLines, "\n"))
}

// BuildSubIndustryPrompt asks the model to classify a company into 1-3
// sub-industry labels, comma separated, with no surrounding prose.
func BuildSubIndustryPrompt(ticker, companyName, mainIndustry string) string {
	return fmt.Sprintf(`请根据以下公司信息，判断该公司属于哪些细分行业（子行业）。

公司信息：
- 股票代码: %s
- 公司名称: %s
- 大类行业: %s

请从以下细分行业类别中选择最相关的1-3个（用中文回答，用逗号分隔）：
- 芯片半导体
- 软件云服务
- 人工智能
- 硬件设备
- 电动汽车
- 自动驾驶
- 生物医药
- 医疗设备
- 银行
- 金融科技
- 零售
- 电商
- 社交媒体
- 流媒体

如果以上类别都不合适，请根据公司业务特点，提供一个简洁的中文细分行业名称（1-3个，用逗号分隔）。

请直接输出细分行业名称，不要加任何前缀或解释。例如：芯片半导体,人工智能`, ticker, companyName, mainIndustry)
}

// joinSubIndustries keeps the first three non-empty labels.
func joinSubIndustries(subIndustries []string) string {
	kept := make([]string, 0, 3)
	for _, s := range subIndustries {
		if s == "" {
			continue
		}
		kept = append(kept, s)
		if len(kept) == 3 {
			break
		}
	}
	return strings.Join(kept, ", ")
}

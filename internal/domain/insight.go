package domain

// InsightGroup 是按某个维度归组后的违规集合，
// Severity 等于成员中最严重的级别，成员顺序保持评估器的输出顺序。
type InsightGroup struct {
	Severity   Severity    `json:"severity"`
	Violations []Violation `json:"violations"`
}

// Insights 是四个维度的归组视图。
// daily 以日期 (YYYY-MM-DD) 为 key，resource 以资源 ID 为 key，
// weekly 以 ISO 周标签为 key，monthly 只有字面量 "month" 一个 key。
type Insights struct {
	Daily    map[string]*InsightGroup `json:"daily"`
	Resource map[int64]*InsightGroup  `json:"resource"`
	Weekly   map[string]*InsightGroup `json:"weekly"`
	Monthly  map[string]*InsightGroup `json:"monthly"`
}

// MonthKey 是月度视图中唯一的 key
const MonthKey = "month"

package config

// GetDefaultJudgeTemplate returns the default verifier prompt for open-ended answers.
// Fields: History, Question, Reference, Candidate.
func GetDefaultJudgeTemplate() string {
	return `你是一名专业的评估专家，需根据以下四个核心要素来对「预测答案」进行质量评估：

- **对话历史**（上下文信息）
- **当前问题**（用户提出的具体请求）
- **优秀答案**（经过审核的高质量参考答案）
- **预测答案**（待评估的答案）

### ⭐ 评分标准：
- **满分**：满分100分，表示「预测答案」质量高，与「优秀答案」相当或接近，满足用户需求；
- **扣分**：根据「预测答案」存在的问题---幻觉、遗漏、错误或无法满足用户需求等，进行相应的扣分；

> 注意：「优秀答案」已通过严格审核，其质量被认为是高标准的，可作为判断基准。

请按照以下结构输出你的评估结果：

---

### 📜 对话历史（按时间顺序排列，从最早到最新）
` + "```" + `
{{.History}}
` + "```" + `

### ❓ 当前问题
` + "```" + `
{{.Question}}
` + "```" + `

### ✅ 优秀答案（参考答案）
` + "```" + `
assistant：{{.Reference}}
` + "```" + `

### 🤖 预测答案（待评估答案）
` + "```" + `
assistant：{{.Candidate}}
` + "```" + `

---

### 📊 评估分析

[在此处进行逐项对比分析]

---

### 📌 预测答案评估分数

\boxed{预测答案评估分数}

---`
}

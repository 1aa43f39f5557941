// Package fixtures 提供核验引擎测试的预置数据工厂。
package fixtures

import (
	"time"

	"github.com/veriflow-ai/veriflow/types"
)

// TextRequest 返回一条中等优先级的文本核验请求
func TextRequest() *types.VerificationRequest {
	return types.NewVerificationRequest(
		"The Eiffel Tower was completed in 1889.",
		types.ContentKindText,
		types.RequestMetadata{Language: "en"},
		types.PriorityMedium,
	)
}

// SocialRequest 返回带社交平台元数据的请求
func SocialRequest() *types.VerificationRequest {
	return types.NewVerificationRequest(
		"Breaking: scientists confirm chocolate cures all diseases!",
		types.ContentKindText,
		types.RequestMetadata{
			Language: "en",
			Platform: "twitter",
			Tags:     []string{"viral"},
		},
		types.PriorityHigh,
	)
}

// Response 构造一条指定裁定的 Agent 响应
func Response(agentID string, verdict types.Verdict, confidence float64) *types.AgentResponse {
	return &types.AgentResponse{
		AgentID:    agentID,
		Verdict:    verdict,
		Confidence: confidence,
		Reasoning:  "fixture reasoning",
		Latency:    50 * time.Millisecond,
		Timestamp:  time.Now().UTC(),
	}
}

// ResponseWithEvidence 构造携带证据的 Agent 响应
func ResponseWithEvidence(agentID string, verdict types.Verdict, confidence float64, evidence ...types.Evidence) *types.AgentResponse {
	resp := Response(agentID, verdict, confidence)
	resp.Evidence = evidence
	return resp
}

// SourceEvidence 构造一条 source 类型证据
func SourceEvidence(title string, reliability float64) types.Evidence {
	now := time.Now().UTC()
	return types.Evidence{
		Type:        types.EvidenceSource,
		Title:       title,
		Description: "fixture evidence",
		URL:         "https://example.org/" + title,
		Reliability: reliability,
		Timestamp:   &now,
	}
}

// CompletedExecution 构造一条已完成的工作流执行记录
func CompletedExecution(requestID string, responses ...*types.AgentResponse) *types.WorkflowExecution {
	now := time.Now().UTC()
	results := make(map[string]*types.AgentResponse, len(responses))
	steps := make([]types.WorkflowStep, 0, len(responses))
	for _, r := range responses {
		results[r.AgentID] = r
		steps = append(steps, types.WorkflowStep{AgentID: r.AgentID, MaxRetries: 2})
	}
	return &types.WorkflowExecution{
		ID:          "wf-" + requestID,
		RequestID:   requestID,
		Steps:       steps,
		Status:      types.WorkflowCompleted,
		StartedAt:   now.Add(-time.Second),
		CompletedAt: &now,
		Results:     results,
		Errors:      map[string]string{},
	}
}
